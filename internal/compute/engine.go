package compute

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"

	"github.com/00mjk/oneDNN/internal/status"
)

// EngineKind distinguishes the device classes an engine can be bound to.
type EngineKind int

// Engine kinds.
const (
	CPU EngineKind = iota
	GPU
)

// String returns a human-readable kind name.
func (k EngineKind) String() string {
	switch k {
	case CPU:
		return "cpu"
	case GPU:
		return "gpu"
	default:
		return "unknown"
	}
}

// Engine binds one device to one execution context. A GPU engine owns (or
// shares) a native device; a CPU engine carries no device and exists so
// that kind checks fail with Unimplemented instead of silently falling
// back to a host path.
type Engine struct {
	kind   EngineKind
	device *wgpu.Device
	queue  *wgpu.Queue // staging queue for map/unmap and fences
	info   wgpu.AdapterInfoGo

	// Kernel compilation caches, shared by every primitive built on this
	// engine.
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex

	pool *StagingPool

	nullOnce sync.Once
	nullBuf  *wgpu.Buffer // substituted for nil memory slots

	// Runtime objects owned by NewEngine; EngineFromQueue adopts the
	// caller's and leaves these nil.
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	ownsDev  bool

	log *zap.Logger
}

// NewEngine creates an engine for the index-th device of the given kind.
// The runtime exposes a single adapter, so any index other than 0 fails
// with InvalidArgument.
func NewEngine(kind EngineKind, index int) (e *Engine, err error) {
	if index != 0 {
		return nil, status.Errf(status.InvalidArgument, "compute.NewEngine", "invalid device index: %d", index)
	}
	if kind == CPU {
		return &Engine{kind: CPU, log: Verbose()}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = status.Errf(status.RuntimeError, "compute.NewEngine", "native runtime not available: %v", r)
		}
	}()

	instance, _ := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, status.Wrap(status.RuntimeError, "compute.NewEngine", "failed to request adapter", adapterErr)
	}
	var info wgpu.AdapterInfoGo
	if infoPtr, _ := adapter.GetInfo(); infoPtr != nil {
		info = *infoPtr
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, status.Wrap(status.RuntimeError, "compute.NewEngine", "failed to request device", deviceErr)
	}

	e = &Engine{
		kind:      GPU,
		device:    device,
		queue:     device.GetQueue(),
		info:      info,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		instance:  instance,
		adapter:   adapter,
		ownsDev:   true,
		log:       Verbose(),
	}
	e.pool = NewStagingPool(device)
	e.log.Debug("engine created", zap.String("kind", e.kind.String()), zap.String("device", info.Device))
	return e, nil
}

// EngineFromQueue creates an engine bound to the queue's device and
// context. The queue stays caller-owned; releasing the engine does not
// destroy the device.
func EngineFromQueue(q *Queue) (*Engine, error) {
	if q == nil {
		return nil, status.Errf(status.InvalidArgument, "compute.EngineFromQueue", "nil queue")
	}
	if q.kind == CPU {
		return &Engine{kind: CPU, log: Verbose()}, nil
	}
	e := &Engine{
		kind:      GPU,
		device:    q.device,
		queue:     q.queue,
		info:      q.info,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
		log:       Verbose(),
	}
	e.pool = NewStagingPool(q.device)
	return e, nil
}

// Kind reports the engine's device kind.
func (e *Engine) Kind() EngineKind { return e.kind }

// Device returns the native device, nil for CPU engines.
func (e *Engine) Device() *wgpu.Device { return e.device }

// Pool returns the engine's staging-buffer pool.
func (e *Engine) Pool() *StagingPool { return e.pool }

// NewStream binds an existing native queue to a new stream. The queue must
// belong to the same context as the engine.
func (e *Engine) NewStream(q *Queue) (*Stream, error) {
	if q == nil {
		return nil, status.Errf(status.InvalidArgument, "engine.NewStream", "nil queue")
	}
	if q.device != e.device {
		return nil, status.Errf(status.InvalidArgument, "engine.NewStream", "queue context does not match engine context")
	}
	return newStream(e, q), nil
}

// CompileKernel compiles WGSL source into a dispatchable kernel. Shader
// modules and pipelines are cached by name, so recompiling the same kernel
// is cheap. Compilation failures in the native runtime surface as
// RuntimeError.
func (e *Engine) CompileKernel(name, source string, local [3]uint32) (k *Kernel, err error) {
	if e.kind != GPU || e.device == nil {
		return nil, status.Errf(status.Unimplemented, "engine.CompileKernel", "kernel compilation on %s engine", e.kind)
	}

	defer func() {
		if r := recover(); r != nil {
			k = nil
			err = status.Errf(status.RuntimeError, "engine.CompileKernel", "kernel %q: %v", name, r)
		}
	}()

	e.mu.RLock()
	pipeline, ok := e.pipelines[name]
	e.mu.RUnlock()
	if ok {
		return &Kernel{name: name, pipeline: pipeline, local: local}, nil
	}

	shader := e.device.CreateShaderModuleWGSL(source)
	if shader == nil {
		return nil, status.Errf(status.RuntimeError, "engine.CompileKernel", "kernel %q: shader compilation failed", name)
	}
	pipeline = e.device.CreateComputePipelineSimple(nil, shader, "main")
	if pipeline == nil {
		shader.Release()
		return nil, status.Errf(status.RuntimeError, "engine.CompileKernel", "kernel %q: pipeline creation failed", name)
	}

	e.mu.Lock()
	e.shaders[name] = shader
	e.pipelines[name] = pipeline
	e.mu.Unlock()

	e.log.Debug("kernel compiled", zap.String("kernel", name))
	return &Kernel{name: name, pipeline: pipeline, local: local}, nil
}

// nullBuffer returns the engine's shared placeholder buffer, bound in
// place of nil memory arguments so kernels may declare optional slots. It
// is also the copy source of the stream fence, so it carries CopySrc.
func (e *Engine) nullBuffer() *wgpu.Buffer {
	e.nullOnce.Do(func() {
		e.nullBuf = e.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
			Size:  4,
		})
	})
	return e.nullBuf
}

// Release frees the engine's caches and, for engines that own their
// device, the runtime objects. Engines adopted from a caller queue leave
// the device untouched.
func (e *Engine) Release() {
	e.mu.Lock()
	for _, p := range e.pipelines {
		p.Release()
	}
	e.pipelines = nil
	for _, s := range e.shaders {
		s.Release()
	}
	e.shaders = nil
	e.mu.Unlock()

	if e.nullBuf != nil {
		e.nullBuf.Release()
		e.nullBuf = nil
	}
	if e.pool != nil {
		e.pool.Clear()
		e.pool = nil
	}
	if e.ownsDev {
		if e.queue != nil {
			e.queue.Release()
			e.queue = nil
		}
		if e.device != nil {
			e.device.Release()
			e.device = nil
		}
		if e.adapter != nil {
			e.adapter.Release()
			e.adapter = nil
		}
		if e.instance != nil {
			e.instance.Release()
			e.instance = nil
		}
	}
}
