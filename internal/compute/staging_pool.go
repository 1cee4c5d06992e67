package compute

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// maxPooled caps how many idle buffers a pool keeps per usage class.
const maxPooled = 32

// pooledBuffer records the allocation parameters a pooled buffer was
// created with, so Acquire can match on them.
type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// StagingPool reuses transient device buffers (readback staging, fences,
// unified-address upload targets) to avoid per-dispatch allocation. Buffers
// are keyed by usage flags; a pooled buffer satisfies a request when its
// size is at least the requested size.
type StagingPool struct {
	device *wgpu.Device

	mu    sync.Mutex
	idle  map[gputypes.BufferUsage][]*pooledBuffer
	hits  uint64
	total uint64
}

// NewStagingPool creates a pool allocating from the given device.
func NewStagingPool(device *wgpu.Device) *StagingPool {
	return &StagingPool{
		device: device,
		idle:   make(map[gputypes.BufferUsage][]*pooledBuffer),
	}
}

// Acquire returns a buffer with the given usage and at least size bytes,
// reusing an idle one when possible.
func (p *StagingPool) Acquire(size uint64, usage gputypes.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	pool := p.idle[usage]
	for i, pb := range pool {
		if pb.size >= size {
			p.idle[usage] = append(pool[:i], pool[i+1:]...)
			p.hits++
			p.mu.Unlock()
			return pb.buffer
		}
	}
	p.total++
	p.mu.Unlock()

	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// Recycle returns a buffer to the pool. Full pools release the buffer
// immediately.
func (p *StagingPool) Recycle(buffer *wgpu.Buffer, size uint64, usage gputypes.BufferUsage) {
	p.mu.Lock()
	if len(p.idle[usage]) >= maxPooled {
		p.mu.Unlock()
		buffer.Release()
		return
	}
	p.idle[usage] = append(p.idle[usage], &pooledBuffer{buffer: buffer, size: size})
	p.mu.Unlock()
}

// Stats reports total allocations and pool hits.
func (p *StagingPool) Stats() (allocated, hits uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total, p.hits
}

// Clear releases every idle buffer. Called when the owning engine is
// released.
func (p *StagingPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for usage, pool := range p.idle {
		for _, pb := range pool {
			pb.buffer.Release()
		}
		delete(p.idle, usage)
	}
}
