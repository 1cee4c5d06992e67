package compute

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gogpu/gputypes"

	"github.com/00mjk/oneDNN/internal/status"
)

// Queue wraps a native device command queue together with the device that
// owns it. The caller owns the queue: this layer only wraps queues it is
// given and never creates one behind the caller's back.
type Queue struct {
	kind   EngineKind
	device *wgpu.Device
	queue  *wgpu.Queue
	info   wgpu.AdapterInfoGo

	// Set when NewQueue constructed the runtime objects, so Release can
	// tear them down. Wrapped queues leave these nil.
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
}

// NewQueue initializes the device runtime and returns an in-order GPU
// command queue. Returns an error if no compatible adapter is present.
func NewQueue() (q *Queue, err error) {
	// The native runtime panics when its shared library is missing.
	defer func() {
		if r := recover(); r != nil {
			q = nil
			err = status.Errf(status.RuntimeError, "compute.NewQueue", "native runtime not available: %v", r)
		}
	}()

	instance, _ := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, status.Wrap(status.RuntimeError, "compute.NewQueue", "failed to request adapter", adapterErr)
	}

	var info wgpu.AdapterInfoGo
	if infoPtr, _ := adapter.GetInfo(); infoPtr != nil {
		info = *infoPtr
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, status.Wrap(status.RuntimeError, "compute.NewQueue", "failed to request device", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, status.Errf(status.RuntimeError, "compute.NewQueue", "failed to get device queue")
	}

	return &Queue{
		kind:     GPU,
		device:   device,
		queue:    queue,
		info:     info,
		instance: instance,
		adapter:  adapter,
	}, nil
}

// NewHostQueue returns a queue bound to the host (CPU) device. Kernel
// dispatch through a host queue is unimplemented in this layer; the queue
// exists so that callers hit the documented Unimplemented path instead of a
// silent fallback.
func NewHostQueue() *Queue {
	return &Queue{kind: CPU}
}

// WrapQueue wraps a caller-owned native queue and its device. The caller
// keeps ownership; Release on the returned Queue does not destroy them.
func WrapQueue(device *wgpu.Device, queue *wgpu.Queue, info wgpu.AdapterInfoGo) (*Queue, error) {
	if device == nil || queue == nil {
		return nil, status.Errf(status.InvalidArgument, "compute.WrapQueue", "nil device or queue")
	}
	return &Queue{kind: GPU, device: device, queue: queue, info: info}, nil
}

// DeviceKind reports the kind of the device the queue belongs to.
func (q *Queue) DeviceKind() EngineKind { return q.kind }

// Device returns the native device owning the queue, nil for host queues.
func (q *Queue) Device() *wgpu.Device { return q.device }

// Native returns the underlying command queue, nil for host queues.
func (q *Queue) Native() *wgpu.Queue { return q.queue }

// String describes the queue's device for diagnostics.
func (q *Queue) String() string {
	if q.kind == CPU {
		return "queue(host)"
	}
	return fmt.Sprintf("queue(%s %s)", q.info.Vendor, q.info.Device)
}

// Release tears down runtime objects owned by this queue. Wrapped queues
// release nothing.
func (q *Queue) Release() {
	if q.queue != nil && q.instance != nil {
		q.queue.Release()
		q.queue = nil
	}
	if q.device != nil && q.instance != nil {
		q.device.Release()
		q.device = nil
	}
	if q.adapter != nil {
		q.adapter.Release()
		q.adapter = nil
	}
	if q.instance != nil {
		q.instance.Release()
		q.instance = nil
	}
}

// Available reports whether a compute-capable adapter is present. Device
// tests use this to skip when running without a GPU.
func Available() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance, _ := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}
