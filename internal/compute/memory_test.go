package compute

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/00mjk/oneDNN/internal/status"
)

func hostEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(CPU, 0)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestWrapUnifiedValidation(t *testing.T) {
	e := hostEngine(t)

	if _, err := WrapUnified(e, 16, 0, nil); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("nil pointer: got %v, want InvalidArgument", err)
	}

	data := make([]byte, 16)
	if _, err := WrapUnified(e, -1, 0, unsafe.Pointer(&data[0])); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("negative size: got %v, want InvalidArgument", err)
	}
	if _, err := WrapUnified(e, 8, -4, unsafe.Pointer(&data[0])); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("negative offset: got %v, want InvalidArgument", err)
	}
}

func TestWrapBufferValidation(t *testing.T) {
	e := hostEngine(t)

	if _, err := WrapBuffer(e, 16, 0, nil); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("nil buffer: got %v, want InvalidArgument", err)
	}
}

func TestKindAccessorsMismatch(t *testing.T) {
	e := hostEngine(t)
	data := make([]byte, 16)
	m, err := WrapUnified(e, 16, 0, unsafe.Pointer(&data[0]))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()

	if m.Kind() != UnifiedKind {
		t.Fatalf("Kind = %v, want unified", m.Kind())
	}

	// The buffer accessor on a unified handle is an API misuse.
	if _, err := m.Backing(); !errors.Is(err, status.ErrWrongBackendKind) {
		t.Errorf("Backing: got %v, want WrongBackendKind", err)
	}
	if err := m.SetBacking(nil); !errors.Is(err, status.ErrWrongBackendKind) {
		t.Errorf("SetBacking: got %v, want WrongBackendKind", err)
	}

	p, err := m.UnifiedPtr()
	if err != nil {
		t.Fatalf("UnifiedPtr: %v", err)
	}
	if p != unsafe.Pointer(&data[0]) {
		t.Error("UnifiedPtr does not return the wrapped address")
	}
}

func TestOffsets(t *testing.T) {
	e := hostEngine(t)
	data := make([]byte, 64)
	m, err := WrapUnified(e, 32, 16, unsafe.Pointer(&data[0]))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()

	if m.BaseOffset() != 0 {
		t.Errorf("BaseOffset = %d, want 0", m.BaseOffset())
	}
	if m.EffectiveOffset() != 16 {
		t.Errorf("EffectiveOffset = %d, want 16", m.EffectiveOffset())
	}
	if m.Size() != 32 || m.ByteOffset() != 16 {
		t.Errorf("Size/ByteOffset = %d/%d, want 32/16", m.Size(), m.ByteOffset())
	}
}

func TestUnifiedMapUnmap(t *testing.T) {
	e := hostEngine(t)
	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i)
	}
	m, err := WrapUnified(e, 16, 8, unsafe.Pointer(&data[0]))
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()

	mapped, err := m.Map()
	if err != nil {
		t.Fatal(err)
	}
	if len(mapped) != 16 {
		t.Fatalf("mapped %d bytes, want 16", len(mapped))
	}
	// The mapping views the caller's memory at the handle's offset.
	if mapped[0] != 8 {
		t.Errorf("mapped[0] = %d, want 8", mapped[0])
	}
	mapped[0] = 0xFF

	// Mapping twice without an Unmap is a misuse.
	if _, err := m.Map(); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("double Map: got %v, want InvalidArgument", err)
	}

	// Unmap must be handed the slice Map returned.
	other := make([]byte, 16)
	if err := m.Unmap(other); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("foreign Unmap: got %v, want InvalidArgument", err)
	}

	if err := m.Unmap(mapped); err != nil {
		t.Fatalf("Unmap: %v", err)
	}
	if data[8] != 0xFF {
		t.Error("write through mapping not visible in caller memory")
	}

	// Unmap without a live mapping is a misuse.
	if err := m.Unmap(mapped); !errors.Is(err, status.ErrInvalidArgument) {
		t.Errorf("stale Unmap: got %v, want InvalidArgument", err)
	}
}

func TestRetainRelease(t *testing.T) {
	e := hostEngine(t)
	data := make([]byte, 8)
	m, err := WrapUnified(e, 8, 0, unsafe.Pointer(&data[0]))
	if err != nil {
		t.Fatal(err)
	}

	// Unified handles never own their memory; Retain/Release are no-ops
	// that must not panic.
	m.Retain()
	m.Release()
}

func TestAlignUp4(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 1: 4, 2: 4, 3: 4, 4: 4, 5: 8, 62: 64}
	for in, want := range cases {
		if got := alignUp4(in); got != want {
			t.Errorf("alignUp4(%d) = %d, want %d", in, got, want)
		}
	}
}
