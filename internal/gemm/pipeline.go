package gemm

import (
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"go.uber.org/zap"

	"github.com/00mjk/oneDNN/internal/compute"
	"github.com/00mjk/oneDNN/internal/status"
)

// Operand is one matrix argument of a pipeline execution: either a device
// buffer object or a unified-address region. Exactly one backing is set.
type Operand struct {
	// Buffer object backing (buffer variant).
	Buffer *wgpu.Buffer

	// Unified-address backing (unified variant). Len is the region's byte
	// extent, validated against the operand's storage requirement.
	Ptr unsafe.Pointer
	Len int64
}

// unified reports whether the operand carries a unified-address backing.
func (o Operand) unified() bool { return o.Ptr != nil }

// Params is one column-major matrix-multiply request:
// C = alpha * op(A) * op(B) + beta * C. Offsets are element offsets into
// each operand's backing.
type Params struct {
	TransA, TransB byte
	M, N, K        int64
	Alpha          float32
	A              Operand
	OffA, LDA      int64
	B              Operand
	OffB, LDB      int64
	Beta           float32
	C              Operand
	OffC, LDC      int64
	Kind           ElementKind
}

// Execute runs one matrix multiply on the queue's device and blocks until
// the result is observable: buffer operands hold it in the buffer, unified
// operands in the caller's memory. Validation failures surface before any
// device work is issued; a queue bound to a host device fails with
// Unimplemented.
func Execute(q *compute.Queue, p Params) error {
	const op = "gemm.Execute"

	desc, err := newOpDesc(op, p.TransA, p.TransB, p.M, p.N, p.K, p.LDA, p.LDB, p.LDC, p.Alpha, p.Beta, p.Kind)
	if err != nil {
		return err
	}
	// Offsets travel to the kernel as 32-bit element counts, like the
	// dimensions checked in newOpDesc.
	for _, off := range []int64{p.OffA, p.OffB, p.OffC} {
		if off < 0 {
			return status.Errf(status.InvalidArgument, op, "negative element offset")
		}
		if off > math.MaxUint32 {
			return status.Errf(status.InvalidArgument, op, "element offset %d exceeds the supported range", off)
		}
	}

	engine, err := compute.EngineFromQueue(q)
	if err != nil {
		return err
	}
	defer engine.Release()
	if engine.Kind() != compute.GPU {
		return status.Errf(status.Unimplemented, op, "matrix multiply on %s engine", engine.Kind())
	}

	stream, err := engine.NewStream(q)
	if err != nil {
		return err
	}
	defer stream.Release()

	pd, err := NewPrimitiveDesc(engine, desc)
	if err != nil {
		return err
	}
	da, db, dc := pd.MemDescs()

	ma, err := wrapOperand(engine, op, "a", p.A, p.OffA, da)
	if err != nil {
		return err
	}
	defer ma.Release()
	mb, err := wrapOperand(engine, op, "b", p.B, p.OffB, db)
	if err != nil {
		return err
	}
	defer mb.Release()
	mc, err := wrapOperand(engine, op, "c", p.C, p.OffC, dc)
	if err != nil {
		return err
	}
	defer mc.Release()

	prim, err := NewPrimitive(pd)
	if err != nil {
		return err
	}
	defer prim.Release()

	compute.Verbose().Debug("gemm",
		zap.String("kind", desc.Kind.String()),
		zap.Int64s("mnk", []int64{desc.M, desc.N, desc.K}),
	)

	if _, err := prim.Execute(stream, ma, mb, mc); err != nil {
		return err
	}
	return stream.Wait()
}

// wrapOperand turns an operand into a memory handle covering the storage
// extent its descriptor requires, at the given element offset.
func wrapOperand(e *compute.Engine, op, name string, o Operand, off int64, d MemDesc) (*compute.Memory, error) {
	byteOff := off * d.Kind.Size()
	byteSize := d.ByteSize()

	if o.unified() {
		if o.Len < byteOff+byteSize {
			return nil, status.Errf(status.InvalidArgument, op,
				"operand %s: region of %d bytes cannot hold %d bytes at offset %d", name, o.Len, byteSize, byteOff)
		}
		return compute.WrapUnified(e, byteSize, byteOff, o.Ptr)
	}
	if o.Buffer == nil {
		return nil, status.Errf(status.InvalidArgument, op, "operand %s: no backing", name)
	}
	return compute.WrapBuffer(e, byteSize, byteOff, o.Buffer)
}
