package gemm

import (
	"math"

	"github.com/00mjk/oneDNN/internal/status"
)

// ElementKind selects the matrix element type.
type ElementKind int

// Element kinds.
const (
	F32 ElementKind = iota
	F16
)

// Size returns the element width in bytes.
func (k ElementKind) Size() int64 {
	if k == F16 {
		return 2
	}
	return 4
}

// String returns the data-type name.
func (k ElementKind) String() string {
	if k == F16 {
		return "f16"
	}
	return "f32"
}

// parseTrans maps a transpose flag character to its boolean. 'n'/'N' is
// no-transpose, 't'/'T' and 'c'/'C' are transpose (elements are real, so
// conjugation is the identity). Anything else is rejected.
func parseTrans(op string, c byte) (bool, error) {
	switch c {
	case 'n', 'N':
		return false, nil
	case 't', 'T', 'c', 'C':
		return true, nil
	default:
		return false, status.Errf(status.InvalidArgument, op, "invalid transpose flag %q", string(c))
	}
}

// OpDesc is the validated, column-major description of one matrix-multiply
// operation: C = alpha * op(A) * op(B) + beta * C, with A op'd to m x k,
// B op'd to k x n and C m x n.
type OpDesc struct {
	TransA, TransB bool
	M, N, K        int64
	LDA, LDB, LDC  int64
	Alpha, Beta    float32
	Kind           ElementKind
}

// newOpDesc validates dimensions and leading strides against the
// column-major storage rules and builds the operation descriptor.
func newOpDesc(op string, transa, transb byte, m, n, k, lda, ldb, ldc int64, alpha, beta float32, kind ElementKind) (OpDesc, error) {
	ta, err := parseTrans(op, transa)
	if err != nil {
		return OpDesc{}, err
	}
	tb, err := parseTrans(op, transb)
	if err != nil {
		return OpDesc{}, err
	}
	if m < 0 || n < 0 || k < 0 {
		return OpDesc{}, status.Errf(status.InvalidArgument, op, "negative dimension: m=%d n=%d k=%d", m, n, k)
	}

	// Minimum leading dimension is the stored row count of each operand.
	minLDA := max64(1, m)
	if ta {
		minLDA = max64(1, k)
	}
	minLDB := max64(1, k)
	if tb {
		minLDB = max64(1, n)
	}
	minLDC := max64(1, m)
	if lda < minLDA {
		return OpDesc{}, status.Errf(status.InvalidArgument, op, "lda=%d below minimum %d", lda, minLDA)
	}
	if ldb < minLDB {
		return OpDesc{}, status.Errf(status.InvalidArgument, op, "ldb=%d below minimum %d", ldb, minLDB)
	}
	if ldc < minLDC {
		return OpDesc{}, status.Errf(status.InvalidArgument, op, "ldc=%d below minimum %d", ldc, minLDC)
	}

	// Kernel parameters travel as 32-bit values.
	for _, v := range []int64{m, n, k, lda, ldb, ldc} {
		if v > math.MaxUint32 {
			return OpDesc{}, status.Errf(status.InvalidArgument, op, "dimension %d exceeds the supported range", v)
		}
	}

	return OpDesc{
		TransA: ta, TransB: tb,
		M: m, N: n, K: k,
		LDA: lda, LDB: ldb, LDC: ldc,
		Alpha: alpha, Beta: beta,
		Kind: kind,
	}, nil
}

// MemDesc describes the storage extent of one column-major operand.
type MemDesc struct {
	Rows, Cols int64 // logical stored shape
	LD         int64 // leading dimension in elements
	Kind       ElementKind
}

// ByteSize returns the byte extent a backing must cover for the operand:
// LD elements per column times the column count. A degenerate operand
// (either stored dimension zero) is never addressed, so it needs no
// backing at all.
func (d MemDesc) ByteSize() int64 {
	if d.Rows == 0 || d.Cols == 0 {
		return 0
	}
	return d.LD * d.Cols * d.Kind.Size()
}

// memDescs derives the storage descriptors of A, B and C from the
// operation descriptor.
func (o OpDesc) memDescs() (a, b, c MemDesc) {
	aRows, aCols := o.M, o.K
	if o.TransA {
		aRows, aCols = o.K, o.M
	}
	bRows, bCols := o.K, o.N
	if o.TransB {
		bRows, bCols = o.N, o.K
	}
	a = MemDesc{Rows: aRows, Cols: aCols, LD: o.LDA, Kind: o.Kind}
	b = MemDesc{Rows: bRows, Cols: bCols, LD: o.LDB, Kind: o.Kind}
	c = MemDesc{Rows: o.M, Cols: o.N, LD: o.LDC, Kind: o.Kind}
	return a, b, c
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
