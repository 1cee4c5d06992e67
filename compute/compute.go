// Package compute is the public API of the device execution layer.
//
// The package exposes the engine/queue/stream/event model used to run
// compute kernels on a device:
//   - Engine: one device bound to one execution context, with kernel caches
//   - Queue: a wrapped native command queue
//   - Stream: in-order asynchronous submission bound to a queue
//   - Event: consumable completion token for one submission
//   - Memory: polymorphic device-memory handle (buffer or unified address)
//
// Example:
//
//	queue, err := compute.NewQueue()
//	engine, err := compute.EngineFromQueue(queue)
//	stream, err := engine.NewStream(queue)
//	kernel, err := engine.CompileKernel("scale", src, [3]uint32{256, 1, 1})
//	ev, err := compute.Submit(stream, kernel, args, compute.GlobalRange(n, 1, 1))
//	err = ev.Wait()
package compute

import (
	"github.com/00mjk/oneDNN/internal/compute"
)

// Engine binds one device to one execution context.
type Engine = compute.Engine

// EngineKind distinguishes the device classes an engine can be bound to.
type EngineKind = compute.EngineKind

// Engine kinds.
const (
	CPU EngineKind = compute.CPU
	GPU EngineKind = compute.GPU
)

// Queue wraps a native device command queue.
type Queue = compute.Queue

// Stream is an in-order asynchronous submission channel bound to a queue.
type Stream = compute.Stream

// Event is the consumable completion token of one submission.
type Event = compute.Event

// Memory is a polymorphic device-memory handle.
type Memory = compute.Memory

// MemoryKind selects the backing representation of a Memory handle.
type MemoryKind = compute.MemoryKind

// Memory kinds.
const (
	BufferKind  MemoryKind = compute.BufferKind
	UnifiedKind MemoryKind = compute.UnifiedKind
)

// Kernel is a compiled device kernel.
type Kernel = compute.Kernel

// Arg is one kernel argument.
type Arg = compute.Arg

// ArgList is an ordered kernel argument list.
type ArgList = compute.ArgList

// Range is the launch geometry of one submission.
type Range = compute.Range

// StagingPool reuses transient device buffers across dispatches.
type StagingPool = compute.StagingPool

// Constructors and free functions.
var (
	NewEngine       = compute.NewEngine
	EngineFromQueue = compute.EngineFromQueue
	NewQueue        = compute.NewQueue
	NewHostQueue    = compute.NewHostQueue
	WrapQueue       = compute.WrapQueue
	WrapBuffer      = compute.WrapBuffer
	WrapUnified     = compute.WrapUnified
	MemoryArg       = compute.MemoryArg
	NullArg         = compute.NullArg
	ScalarArg       = compute.ScalarArg
	Uint32Arg       = compute.Uint32Arg
	Float32Arg      = compute.Float32Arg
	GlobalRange     = compute.GlobalRange
	Submit          = compute.Submit
	Available       = compute.Available
)
