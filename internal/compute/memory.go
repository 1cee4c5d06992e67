package compute

import (
	"sync/atomic"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gogpu/gputypes"

	"github.com/00mjk/oneDNN/internal/status"
)

// MemoryKind selects the backing representation of a Memory handle. The
// kind is fixed at construction and is the single source of truth every
// accessor and the dispatcher branch on.
type MemoryKind int

// Memory kinds.
const (
	// BufferKind backs the handle with an opaque managed buffer object.
	BufferKind MemoryKind = iota
	// UnifiedKind backs the handle with a raw unified-address pointer.
	UnifiedKind
)

// String returns a human-readable kind name.
func (k MemoryKind) String() string {
	switch k {
	case BufferKind:
		return "buffer"
	case UnifiedKind:
		return "unified"
	default:
		return "unknown"
	}
}

// backingBuffer is the reference-counted backing object shared between a
// buffer-backed Memory handle and the caller's buffer. The native buffer
// is released when the last holder drops its reference, and only if the
// backing owns it; wrapped caller buffers are never destroyed here.
type backingBuffer struct {
	buf   *wgpu.Buffer
	refs  atomic.Int32
	owned bool
}

func newBackingBuffer(buf *wgpu.Buffer, owned bool) *backingBuffer {
	b := &backingBuffer{buf: buf, owned: owned}
	b.refs.Store(1)
	return b
}

func (b *backingBuffer) addRef() { b.refs.Add(1) }

func (b *backingBuffer) release() {
	if b.refs.Add(-1) == 0 && b.owned && b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Memory is a polymorphic device-memory handle: a contiguous
// device-addressable region backed either by a managed buffer object or by
// a raw unified-address pointer. Offsets are byte offsets, recorded at
// construction and applied at dereference time; the backing object's
// identity never absorbs them. The handle is an untyped byte view; element
// types are the caller's business.
type Memory struct {
	engine *Engine
	kind   MemoryKind
	size   int64 // byte extent of the region
	offset int64 // byte offset into the backing

	backing *backingBuffer // BufferKind only

	// UnifiedKind only. Non-owning: the pointed-to memory belongs to the
	// caller, and outliving it is a caller error.
	ptr unsafe.Pointer

	mapped []byte // live host mapping, nil when unmapped
}

// WrapBuffer wraps a caller-owned buffer object as a buffer-backed handle
// covering size bytes starting at byte offset. The backing is shared, not
// copied: its lifetime is that of the longest holder.
func WrapBuffer(e *Engine, size, offset int64, buf *wgpu.Buffer) (*Memory, error) {
	if buf == nil {
		return nil, status.Errf(status.InvalidArgument, "compute.WrapBuffer", "nil buffer object")
	}
	if size < 0 || offset < 0 {
		return nil, status.Errf(status.InvalidArgument, "compute.WrapBuffer", "negative size or offset")
	}
	return &Memory{
		engine:  e,
		kind:    BufferKind,
		size:    size,
		offset:  offset,
		backing: newBackingBuffer(buf, false),
	}, nil
}

// WrapUnified wraps a raw unified-address pointer as a handle covering
// size bytes starting at byte offset. The handle records the address only;
// the pointed-to memory stays caller-owned and must outlive every
// operation using the handle.
func WrapUnified(e *Engine, size, offset int64, ptr unsafe.Pointer) (*Memory, error) {
	if ptr == nil {
		return nil, status.Errf(status.InvalidArgument, "compute.WrapUnified", "nil pointer")
	}
	if size < 0 || offset < 0 {
		return nil, status.Errf(status.InvalidArgument, "compute.WrapUnified", "negative size or offset")
	}
	return &Memory{engine: e, kind: UnifiedKind, size: size, offset: offset, ptr: ptr}, nil
}

// Kind reports the backing kind.
func (m *Memory) Kind() MemoryKind { return m.kind }

// Size returns the byte extent of the region.
func (m *Memory) Size() int64 { return m.size }

// ByteOffset returns the construction-time byte offset into the backing.
func (m *Memory) ByteOffset() int64 { return m.offset }

// BaseOffset returns the context-wide base every access must be expressed
// relative to. This runtime uses absolute addresses, so it is always 0;
// the accessor stays in the contract so argument binding can compute one
// effective offset without branching on the runtime's address model.
func (m *Memory) BaseOffset() int64 { return 0 }

// EffectiveOffset is the byte offset a kernel must add to the bound
// backing's base address to reach the region.
func (m *Memory) EffectiveOffset() int64 { return m.BaseOffset() + m.offset }

// Backing returns the managed buffer object. Calling it on a
// unified-address handle is an API misuse and fails with WrongBackendKind.
func (m *Memory) Backing() (*wgpu.Buffer, error) {
	if m.kind != BufferKind {
		return nil, status.Errf(status.WrongBackendKind, "memory.Backing", "handle is %s-backed", m.kind)
	}
	return m.backing.buf, nil
}

// SetBacking rebinds the handle to a new buffer object, re-wrapped as an
// untyped byte view so the handle stays reusable for any element type. The
// previous backing's reference is dropped.
func (m *Memory) SetBacking(buf *wgpu.Buffer) error {
	if m.kind != BufferKind {
		return status.Errf(status.WrongBackendKind, "memory.SetBacking", "handle is %s-backed", m.kind)
	}
	if buf == nil {
		return status.Errf(status.InvalidArgument, "memory.SetBacking", "nil buffer object")
	}
	old := m.backing
	m.backing = newBackingBuffer(buf, false)
	old.release()
	return nil
}

// UnifiedPtr returns the raw unified-address pointer. Calling it on a
// buffer-backed handle fails with WrongBackendKind.
func (m *Memory) UnifiedPtr() (unsafe.Pointer, error) {
	if m.kind != UnifiedKind {
		return nil, status.Errf(status.WrongBackendKind, "memory.UnifiedPtr", "handle is %s-backed", m.kind)
	}
	return m.ptr, nil
}

// Retain adds a reference to the backing object (buffer-backed handles
// only; unified handles never own their memory, so this is a no-op).
func (m *Memory) Retain() {
	if m.kind == BufferKind {
		m.backing.addRef()
	}
}

// Release drops the handle's reference to its backing object. The handle
// must not be used afterwards.
func (m *Memory) Release() {
	if m.kind == BufferKind && m.backing != nil {
		m.backing.release()
		m.backing = nil
	}
	m.ptr = nil
}

// Map acquires host visibility for the region. The returned bytes are
// coherent for host reads and writes until the paired Unmap resynchronizes
// the device view. Map and Unmap must be paired; a forgotten Unmap leaks
// the mapping, nothing is auto-released.
//
// Unified handles are already host visible, so mapping is a view over the
// caller's memory. Buffer handles stage through a readback copy and block
// until the device has produced the bytes.
func (m *Memory) Map() ([]byte, error) {
	if m.mapped != nil {
		return nil, status.Errf(status.InvalidArgument, "memory.Map", "region is already mapped")
	}
	switch m.kind {
	case UnifiedKind:
		m.mapped = unsafe.Slice((*byte)(unsafe.Pointer(uintptr(m.ptr)+uintptr(m.offset))), m.size)
		return m.mapped, nil
	case BufferKind:
		data, err := m.engine.readRegion(m.backing.buf, uint64(m.offset), uint64(m.size))
		if err != nil {
			return nil, err
		}
		m.mapped = data
		return data, nil
	default:
		return nil, status.Errf(status.InvalidArgument, "memory.Map", "unknown backing kind")
	}
}

// Unmap ends a host mapping started by Map. For buffer handles the
// (possibly modified) bytes are written back so the device view is
// resynchronized. ptr must be the slice Map returned.
func (m *Memory) Unmap(ptr []byte) error {
	if m.mapped == nil || (len(ptr) > 0 && len(m.mapped) > 0 && &ptr[0] != &m.mapped[0]) {
		return status.Errf(status.InvalidArgument, "memory.Unmap", "pointer is not the live mapping")
	}
	defer func() { m.mapped = nil }()

	if m.kind == UnifiedKind {
		return nil // caller memory, already coherent
	}
	return m.engine.writeRegion(m.backing.buf, uint64(m.offset), ptr)
}

// hostExtent views the unified backing from its base address through the
// end of the region (dispatch upload path). The byte offset stays with the
// handle and is applied by the kernel, exactly as in the buffer case.
func (m *Memory) hostExtent() []byte {
	return unsafe.Slice((*byte)(m.ptr), m.offset+m.size)
}

// alignUp4 rounds n up to the 4-byte granularity device copies require.
func alignUp4(n uint64) uint64 { return (n + 3) &^ 3 }

// readRegion copies size bytes at offset out of a device buffer through a
// pooled staging buffer, blocking until the bytes are host visible. Device
// copies are 4-byte granular, so the region is read through the enclosing
// aligned window and sliced out.
func (e *Engine) readRegion(src *wgpu.Buffer, offset, size uint64) ([]byte, error) {
	alignedOff := offset &^ 3
	pad := offset - alignedOff
	aligned := alignUp4(pad + size)
	staging := e.pool.Acquire(aligned, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	defer e.pool.Recycle(staging, aligned, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)

	encoder := e.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, alignedOff, staging, 0, aligned)
	cmd := encoder.Finish(nil)
	e.queue.Submit(cmd)

	if err := staging.MapAsync(e.device, wgpu.MapModeRead, 0, aligned); err != nil {
		return nil, status.Wrap(status.RuntimeError, "engine.readRegion", "failed to map staging buffer", err)
	}
	mapped := staging.GetMappedRange(0, aligned)
	result := make([]byte, size)
	copy(result, unsafe.Slice((*byte)(mapped), aligned)[pad:])
	staging.Unmap()
	return result, nil
}

// writeRegion uploads bytes into a device buffer at offset through a
// transient mapped-at-creation buffer. A region that is not 4-byte aligned
// on both ends is widened to the enclosing aligned window with a
// read-modify-write, so the neighbouring bytes survive.
func (e *Engine) writeRegion(dst *wgpu.Buffer, offset uint64, data []byte) error {
	size := uint64(len(data))
	if size == 0 {
		return nil
	}
	alignedOff := offset &^ 3
	pad := offset - alignedOff
	aligned := alignUp4(pad + size)

	window := data
	if pad != 0 || aligned != size {
		cur, err := e.readRegion(dst, alignedOff, aligned)
		if err != nil {
			return err
		}
		copy(cur[pad:], data)
		window = cur
	}

	upload := e.uploadBuffer(window, gputypes.BufferUsageCopySrc)
	defer upload.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(upload, 0, dst, alignedOff, aligned)
	cmd := encoder.Finish(nil)
	e.queue.Submit(cmd)
	return nil
}

// uploadBuffer creates a device buffer pre-filled with data.
func (e *Engine) uploadBuffer(data []byte, usage gputypes.BufferUsage) *wgpu.Buffer {
	size := alignUp4(uint64(len(data)))
	buffer := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := buffer.GetMappedRange(0, size)
	copy(unsafe.Slice((*byte)(mapped), size), data)
	buffer.Unmap()
	return buffer
}
