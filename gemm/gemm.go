// Package gemm is the public matrix-multiply API of the device execution
// layer. Every entry point computes
//
//	C = alpha * op(A) * op(B) + beta * C
//
// over row-major matrices, where op applies the per-operand transpose
// flag ('n'/'N' none, 't'/'T'/'c'/'C' transpose). op(A) is m x k, op(B)
// is k x n and C is m x n; leading dimensions are element strides between
// consecutive rows.
//
// The buffer variants take device buffer objects plus per-operand element
// offsets. The unified variants take host slices; the result is visible in
// the C slice when the call returns.
//
// Calls block until the result is observable. A queue bound to a host
// device fails with Unimplemented.
package gemm

import (
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/00mjk/oneDNN/compute"
	"github.com/00mjk/oneDNN/internal/gemm"
)

// rowMajor normalizes a row-major request to the column-major form the
// kernels consume: a row-major matrix is its own transpose viewed
// column-major, so swapping the A and B operands (with their flags,
// offsets and strides) and the m/n extents computes C transposed, which
// is row-major C.
func rowMajor(p gemm.Params) gemm.Params {
	p.TransA, p.TransB = p.TransB, p.TransA
	p.M, p.N = p.N, p.M
	p.A, p.B = p.B, p.A
	p.OffA, p.OffB = p.OffB, p.OffA
	p.LDA, p.LDB = p.LDB, p.LDA
	return p
}

// F32 multiplies f32 matrices held in device buffer objects.
func F32(q *compute.Queue, transA, transB byte, m, n, k int64, alpha float32,
	a *wgpu.Buffer, offA, ldA int64,
	b *wgpu.Buffer, offB, ldB int64,
	beta float32, c *wgpu.Buffer, offC, ldC int64) error {
	return gemm.Execute(q, rowMajor(gemm.Params{
		TransA: transA, TransB: transB,
		M: m, N: n, K: k,
		Alpha: alpha, Beta: beta,
		A: gemm.Operand{Buffer: a}, OffA: offA, LDA: ldA,
		B: gemm.Operand{Buffer: b}, OffB: offB, LDB: ldB,
		C: gemm.Operand{Buffer: c}, OffC: offC, LDC: ldC,
		Kind: gemm.F32,
	}))
}

// F16 multiplies f16 matrices held in device buffer objects. Buffers hold
// IEEE binary16 elements; accumulation is f32.
func F16(q *compute.Queue, transA, transB byte, m, n, k int64, alpha float32,
	a *wgpu.Buffer, offA, ldA int64,
	b *wgpu.Buffer, offB, ldB int64,
	beta float32, c *wgpu.Buffer, offC, ldC int64) error {
	return gemm.Execute(q, rowMajor(gemm.Params{
		TransA: transA, TransB: transB,
		M: m, N: n, K: k,
		Alpha: alpha, Beta: beta,
		A: gemm.Operand{Buffer: a}, OffA: offA, LDA: ldA,
		B: gemm.Operand{Buffer: b}, OffB: offB, LDB: ldB,
		C: gemm.Operand{Buffer: c}, OffC: offC, LDC: ldC,
		Kind: gemm.F16,
	}))
}

// F32Unified multiplies f32 matrices held in host memory. The result is in
// c when the call returns.
func F32Unified(q *compute.Queue, transA, transB byte, m, n, k int64, alpha float32,
	a []float32, ldA int64,
	b []float32, ldB int64,
	beta float32, c []float32, ldC int64) error {
	return gemm.Execute(q, rowMajor(gemm.Params{
		TransA: transA, TransB: transB,
		M: m, N: n, K: k,
		Alpha: alpha, Beta: beta,
		A: f32Operand(a), LDA: ldA,
		B: f32Operand(b), LDB: ldB,
		C: f32Operand(c), LDC: ldC,
		Kind: gemm.F32,
	}))
}

// F16Unified multiplies f16 matrices held in host memory as IEEE binary16
// bit patterns. The result is in c when the call returns; accumulation is
// f32.
func F16Unified(q *compute.Queue, transA, transB byte, m, n, k int64, alpha float32,
	a []uint16, ldA int64,
	b []uint16, ldB int64,
	beta float32, c []uint16, ldC int64) error {
	return gemm.Execute(q, rowMajor(gemm.Params{
		TransA: transA, TransB: transB,
		M: m, N: n, K: k,
		Alpha: alpha, Beta: beta,
		A: f16Operand(a), LDA: ldA,
		B: f16Operand(b), LDB: ldB,
		C: f16Operand(c), LDC: ldC,
		Kind: gemm.F16,
	}))
}

// zeroRegion stands in for empty slices so degenerate shapes (k == 0, a
// zero-extent operand) still carry a valid unified address.
var zeroRegion byte

func f32Operand(s []float32) gemm.Operand {
	if len(s) == 0 {
		return gemm.Operand{Ptr: unsafe.Pointer(&zeroRegion)}
	}
	return gemm.Operand{Ptr: unsafe.Pointer(&s[0]), Len: int64(len(s)) * 4}
}

func f16Operand(s []uint16) gemm.Operand {
	if len(s) == 0 {
		return gemm.Operand{Ptr: unsafe.Pointer(&zeroRegion)}
	}
	return gemm.Operand{Ptr: unsafe.Pointer(&s[0]), Len: int64(len(s)) * 2}
}

// Params mirrors the internal request form for callers composing
// operations directly (column-major, element offsets on every operand).
type Params = gemm.Params

// Operand is one matrix argument of a Params request.
type Operand = gemm.Operand

// ElementKind selects the matrix element type of a Params request.
type ElementKind = gemm.ElementKind

// Element kinds.
const (
	KindF32 ElementKind = gemm.F32
	KindF16 ElementKind = gemm.F16
)

// Execute runs one column-major request as described by Params.
var Execute = gemm.Execute
