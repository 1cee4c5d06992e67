package compute

import (
	"encoding/binary"
	"math"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"

	"github.com/00mjk/oneDNN/internal/status"
)

// Kernel is a precompiled device kernel bound to an engine's pipeline
// cache. local is the workgroup size the kernel was compiled with; it is
// the default local range for launches that specify a global range only.
type Kernel struct {
	name     string
	pipeline *wgpu.ComputePipeline
	local    [3]uint32
}

// Name returns the kernel's cache name.
func (k *Kernel) Name() string { return k.name }

type argKind int

const (
	argMemory argKind = iota
	argScalar
)

// Arg is one entry of a kernel argument list: either a memory-handle
// reference with read/write intent or a scalar byte blob. Argument order
// must match the kernel's declared signature order: memory arguments take
// the storage binding slots in order, scalars are packed, in order, into
// the parameter block bound after the last memory slot.
type Arg struct {
	kind   argKind
	mem    *Memory
	write  bool
	scalar []byte
}

// MemoryArg references a memory handle. write marks the kernel's intent so
// unified-address backings can be resynchronized on completion.
func MemoryArg(m *Memory, write bool) Arg {
	return Arg{kind: argMemory, mem: m, write: write}
}

// NullArg is an empty memory slot; a null binding is substituted so
// kernels may declare optional memory arguments.
func NullArg() Arg {
	return Arg{kind: argMemory}
}

// ScalarArg carries raw scalar bytes. The protocol recognizes widths of
// 1, 2, 4 and 8 bytes only.
func ScalarArg(raw []byte) Arg {
	return Arg{kind: argScalar, scalar: raw}
}

// Uint32Arg is a 4-byte scalar argument.
func Uint32Arg(v uint32) Arg {
	raw := make([]byte, 4)
	binary.LittleEndian.PutUint32(raw, v)
	return Arg{kind: argScalar, scalar: raw}
}

// Float32Arg is a 4-byte scalar argument.
func Float32Arg(v float32) Arg {
	return Uint32Arg(math.Float32bits(v))
}

// ArgList is an ordered kernel argument list.
type ArgList []Arg

// Range is the launch geometry: a global work-item range and an optional
// local (workgroup) range. A zero-extent global range is a legal no-op.
type Range struct {
	Global [3]uint32
	Local  *[3]uint32
}

// GlobalRange builds a global-only launch range.
func GlobalRange(x, y, z uint32) Range {
	return Range{Global: [3]uint32{x, y, z}}
}

// IsZero reports whether any global dimension is zero.
func (r Range) IsZero() bool {
	return r.Global[0] == 0 || r.Global[1] == 0 || r.Global[2] == 0
}

// packScalars packs the scalar arguments, in argument order, into one
// parameter block. Each scalar is aligned to its own width and the block
// is padded to 16 bytes. A width outside {1,2,4,8} is a hard failure: the
// binding protocol recognizes only the four canonical widths.
func packScalars(args ArgList) ([]byte, error) {
	var block []byte
	for i, a := range args {
		if a.kind != argScalar {
			continue
		}
		w := len(a.scalar)
		switch w {
		case 1, 2, 4, 8:
		default:
			return nil, status.Errf(status.UnsupportedArgumentWidth, "compute.Submit",
				"argument %d has %d-byte width, want 1, 2, 4 or 8", i, w)
		}
		for len(block)%w != 0 {
			block = append(block, 0)
		}
		block = append(block, a.scalar...)
	}
	if block == nil {
		return nil, nil
	}
	for len(block)%16 != 0 {
		block = append(block, 0)
	}
	return block, nil
}

// Submit binds the argument list to the kernel's slots and enqueues one
// asynchronous launch on the stream. It never blocks: host-side binding
// errors surface synchronously, device-side failures only when the
// returned event (or the stream) is waited on. deps order the launch after
// previously returned events, possibly from other streams of the same
// engine.
func Submit(s *Stream, k *Kernel, args ArgList, r Range, deps ...*Event) (*Event, error) {
	e := s.engine

	// A zero-extent launch is a complete no-op, but still yields a token.
	if r.IsZero() {
		return completedEvent(e), nil
	}

	if e.kind != GPU || e.device == nil {
		return nil, status.Errf(status.Unimplemented, "compute.Submit", "kernel dispatch on %s engine", e.kind)
	}
	for _, dep := range deps {
		if dep == nil || dep.engine != e {
			return nil, status.Errf(status.InvalidArgument, "compute.Submit", "dependency token from a different engine")
		}
	}

	params, err := packScalars(args)
	if err != nil {
		return nil, err
	}

	// Resolve memory arguments to device bindings in argument order.
	var (
		entries    []wgpu.BindGroupEntry
		transients []*wgpu.Buffer
		writebacks []func() error
		binding    uint32
	)
	release := func() {
		for _, b := range transients {
			b.Release()
		}
	}
	for _, a := range args {
		if a.kind != argMemory {
			continue
		}
		m := a.mem
		if m == nil {
			entries = append(entries, wgpu.BufferBindingEntry(binding, e.nullBuffer(), 0, 4))
			binding++
			continue
		}
		// Zero-extent regions are legal for operands a degenerate launch
		// never touches; bind the placeholder, as for a nil slot.
		if m.size == 0 {
			entries = append(entries, wgpu.BufferBindingEntry(binding, e.nullBuffer(), 0, 4))
			binding++
			continue
		}
		// Storage binding sizes are 4-byte granular; 2-byte element types
		// can leave the extent short of that.
		extent := alignUp4(uint64(m.offset + m.size))
		switch m.kind {
		case BufferKind:
			entries = append(entries, wgpu.BufferBindingEntry(binding, m.backing.buf, 0, extent))
		case UnifiedKind:
			// No unified addressing in the runtime: stage the host region
			// through a transient device buffer and, for written operands,
			// schedule the writeback that makes the pointer coherent at the
			// next synchronization point.
			host := m.hostExtent()
			transient := e.uploadBuffer(host, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
			transients = append(transients, transient)
			entries = append(entries, wgpu.BufferBindingEntry(binding, transient, 0, extent))
			if a.write {
				// Only the handle's region is resynchronized; bytes before
				// the offset stay the caller's and must not be reverted to
				// their submission-time snapshot.
				src := transient
				off := uint64(m.offset)
				region := host[m.offset:]
				writebacks = append(writebacks, func() error {
					data, rerr := e.readRegion(src, off, uint64(len(region)))
					if rerr != nil {
						return rerr
					}
					copy(region, data)
					return nil
				})
			}
		default:
			release()
			return nil, status.Errf(status.InvalidArgument, "compute.Submit", "unknown backing kind")
		}
		binding++
	}

	if params != nil {
		pbuf := e.uploadBuffer(params, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
		transients = append(transients, pbuf)
		entries = append(entries, wgpu.BufferBindingEntry(binding, pbuf, 0, uint64(len(params))))
	}

	layout := k.pipeline.GetBindGroupLayout(0)
	bindGroup := e.device.CreateBindGroupSimple(layout, entries)

	local := k.local
	if r.Local != nil {
		local = *r.Local
	}
	for i := range local {
		if local[i] == 0 {
			local[i] = 1
		}
	}

	encoder := e.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(
		(r.Global[0]+local[0]-1)/local[0],
		(r.Global[1]+local[1]-1)/local[1],
		(r.Global[2]+local[2]-1)/local[2],
	)
	pass.End()
	cmd := encoder.Finish(nil)
	bindGroup.Release()

	ev := newEvent(s)
	// Submission order fixes both queue order and the completion-action
	// order, so register the writebacks before handing off the task.
	for _, wb := range writebacks {
		s.deferCompletion(wb)
	}
	if len(transients) > 0 {
		s.deferCompletion(func() error {
			release()
			return nil
		})
	}
	s.enqueue(&task{cmd: cmd, deps: deps, ev: ev})

	e.log.Debug("kernel submitted",
		zap.String("kernel", k.name),
		zap.Uint32s("global", r.Global[:]),
	)
	return ev, nil
}
