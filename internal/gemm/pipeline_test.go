package gemm

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/00mjk/oneDNN/internal/compute"
	"github.com/00mjk/oneDNN/internal/status"
)

func f32Region(s []float32) Operand {
	return Operand{Ptr: unsafe.Pointer(&s[0]), Len: int64(len(s)) * 4}
}

func validParams() Params {
	a := make([]float32, 4)
	b := make([]float32, 4)
	c := make([]float32, 4)
	return Params{
		TransA: 'n', TransB: 'n',
		M: 2, N: 2, K: 2,
		Alpha: 1,
		A: f32Region(a), LDA: 2,
		B: f32Region(b), LDB: 2,
		C: f32Region(c), LDC: 2,
		Kind: F32,
	}
}

func TestExecuteValidatesBeforeDispatch(t *testing.T) {
	q := compute.NewHostQueue()

	p := validParams()
	p.TransA = 'q'
	assert.ErrorIs(t, Execute(q, p), status.ErrInvalidArgument)

	p = validParams()
	p.LDA = 1
	assert.ErrorIs(t, Execute(q, p), status.ErrInvalidArgument)

	p = validParams()
	p.OffC = -1
	assert.ErrorIs(t, Execute(q, p), status.ErrInvalidArgument)

	// Offsets are 32-bit on the device, like the dimensions.
	p = validParams()
	p.OffA = math.MaxUint32 + 1
	assert.ErrorIs(t, Execute(q, p), status.ErrInvalidArgument)
}

func TestExecuteOnHostQueue(t *testing.T) {
	// A host-device queue reaches the engine check and stops there; no
	// operand is wrapped and no work is issued.
	err := Execute(compute.NewHostQueue(), validParams())
	assert.ErrorIs(t, err, status.ErrUnimplemented)
}

func TestExecuteNilQueue(t *testing.T) {
	assert.ErrorIs(t, Execute(nil, validParams()), status.ErrInvalidArgument)
}

func TestOperandUnified(t *testing.T) {
	s := []float32{1}
	assert.True(t, f32Region(s).unified())
	assert.False(t, Operand{}.unified())
}
