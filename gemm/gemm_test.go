package gemm

import (
	"math"
	"math/rand"
	"testing"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"gonum.org/v1/gonum/mat"

	"github.com/00mjk/oneDNN/compute"
	"github.com/00mjk/oneDNN/internal/float16"
	igemm "github.com/00mjk/oneDNN/internal/gemm"
)

func TestRowMajorNormalization(t *testing.T) {
	p := igemm.Params{
		TransA: 't', TransB: 'n',
		M: 3, N: 5, K: 7,
		OffA: 11, OffB: 13, OffC: 17,
		LDA: 19, LDB: 23, LDC: 29,
	}
	n := rowMajor(p)

	// A and B trade places with their flags, offsets and strides; C and
	// its parameters stay put.
	if n.TransA != 'n' || n.TransB != 't' {
		t.Errorf("flags = %q %q", string(n.TransA), string(n.TransB))
	}
	if n.M != 5 || n.N != 3 || n.K != 7 {
		t.Errorf("dims = %d %d %d", n.M, n.N, n.K)
	}
	if n.OffA != 13 || n.OffB != 11 || n.OffC != 17 {
		t.Errorf("offsets = %d %d %d", n.OffA, n.OffB, n.OffC)
	}
	if n.LDA != 23 || n.LDB != 19 || n.LDC != 29 {
		t.Errorf("strides = %d %d %d", n.LDA, n.LDB, n.LDC)
	}
}

func deviceQueue(t *testing.T) *compute.Queue {
	t.Helper()
	if !compute.Available() {
		t.Skip("no compute adapter available")
	}
	q, err := compute.NewQueue()
	if err != nil {
		t.Skipf("device runtime unavailable: %v", err)
	}
	t.Cleanup(q.Release)
	return q
}

// reference computes alpha*op(A)*op(B) + beta*C over row-major data.
func reference(transA, transB byte, m, n, k int, alpha float32, a, b []float32, beta float32, c []float32) []float32 {
	opd := func(trans byte, rows, cols int, data []float32) mat.Matrix {
		d64 := make([]float64, len(data))
		for i, v := range data {
			d64[i] = float64(v)
		}
		if trans == 'n' || trans == 'N' {
			return mat.NewDense(rows, cols, d64)
		}
		return mat.NewDense(cols, rows, d64).T()
	}

	var prod mat.Dense
	prod.Mul(opd(transA, m, k, a), opd(transB, k, n, b))

	out := make([]float32, len(c))
	copy(out, c)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			acc := alpha * float32(prod.At(i, j))
			if beta != 0 {
				acc += beta * out[i*n+j]
			}
			out[i*n+j] = acc
		}
	}
	return out
}

func randSlice(rng *rand.Rand, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(rng.NormFloat64())
	}
	return s
}

func TestF32Unified(t *testing.T) {
	q := deviceQueue(t)
	rng := rand.New(rand.NewSource(1))

	cases := []struct {
		transA, transB byte
		alpha, beta    float32
	}{
		{'n', 'n', 1, 0},
		{'t', 'n', 2, 0},
		{'n', 'T', 1, 1},
		{'c', 'C', -0.5, 3},
	}
	const m, n, k = 7, 5, 9
	for _, tc := range cases {
		a := randSlice(rng, m*k)
		b := randSlice(rng, k*n)
		c := randSlice(rng, m*n)
		want := reference(tc.transA, tc.transB, m, n, k, tc.alpha, a, b, tc.beta, c)

		// Row-major strides: row stride of the stored operand.
		lda := int64(k)
		if tc.transA != 'n' {
			lda = m
		}
		ldb := int64(n)
		if tc.transB != 'n' && tc.transB != 'N' {
			ldb = k
		}
		err := F32Unified(q, tc.transA, tc.transB, m, n, k, tc.alpha, a, lda, b, ldb, tc.beta, c, n)
		if err != nil {
			t.Fatalf("%c%c: %v", tc.transA, tc.transB, err)
		}
		for i := range want {
			if math.Abs(float64(c[i]-want[i])) > 1e-4 {
				t.Fatalf("%c%c: c[%d] = %v, want %v", tc.transA, tc.transB, i, c[i], want[i])
			}
		}
	}
}

func TestF32UnifiedIdentity(t *testing.T) {
	q := deviceQueue(t)

	// I * X = X.
	const n = 4
	a := make([]float32, n*n)
	for i := 0; i < n; i++ {
		a[i*n+i] = 1
	}
	b := []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	c := make([]float32, n*n)

	if err := F32Unified(q, 'n', 'n', n, n, n, 1, a, n, b, n, 0, c, n); err != nil {
		t.Fatal(err)
	}
	for i := range b {
		if c[i] != b[i] {
			t.Errorf("c[%d] = %v, want %v", i, c[i], b[i])
		}
	}
}

func TestF32UnifiedShortRegion(t *testing.T) {
	q := deviceQueue(t)

	a := make([]float32, 3) // needs 4 for a 2x2
	b := make([]float32, 4)
	c := make([]float32, 4)
	err := F32Unified(q, 'n', 'n', 2, 2, 2, 1, a, 2, b, 2, 0, c, 2)
	if err == nil {
		t.Fatal("short region accepted")
	}
}

func TestF32UnifiedDegenerate(t *testing.T) {
	q := deviceQueue(t)

	// k == 0 with beta scales C in place and reads neither A nor B.
	c := []float32{2, 4, 6, 8}
	if err := F32Unified(q, 'n', 'n', 2, 2, 0, 1, nil, 1, nil, 2, 0.5, c, 2); err != nil {
		t.Fatal(err)
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if c[i] != want {
			t.Errorf("c[%d] = %v, want %v", i, c[i], want)
		}
	}

	// m == 0 is a complete no-op.
	if err := F32Unified(q, 'n', 'n', 0, 2, 2, 1, nil, 2, make([]float32, 4), 2, 0, nil, 2); err != nil {
		t.Fatal(err)
	}
}

func TestF16Unified(t *testing.T) {
	q := deviceQueue(t)
	rng := rand.New(rand.NewSource(2))

	const m, n, k = 4, 6, 8
	a32 := randSlice(rng, m*k)
	b32 := randSlice(rng, k*n)
	c32 := make([]float32, m*n)

	a := float16.ToUint16(a32)
	b := float16.ToUint16(b32)
	c := float16.ToUint16(c32)

	// The reference works over the f16-quantized inputs so only the
	// accumulation and output rounding differ.
	want := reference('n', 'n', m, n, k, 1, float16.FromUint16(a), float16.FromUint16(b), 0, c32)

	if err := F16Unified(q, 'n', 'n', m, n, k, 1, a, k, b, n, 0, c, n); err != nil {
		t.Fatal(err)
	}
	got := float16.FromUint16(c)
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 5e-2 {
			t.Errorf("c[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

// uploadF32 creates a storage buffer holding vals.
func uploadF32(t *testing.T, q *compute.Queue, vals []float32) *wgpu.Buffer {
	t.Helper()
	size := uint64(len(vals) * 4)
	buf := q.Device().CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := buf.GetMappedRange(0, size)
	copy(unsafe.Slice((*byte)(mapped), size), unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), size))
	buf.Unmap()
	t.Cleanup(buf.Release)
	return buf
}

func readF32(t *testing.T, q *compute.Queue, buf *wgpu.Buffer, off, n int) []float32 {
	t.Helper()
	e, err := compute.EngineFromQueue(q)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Release()
	m, err := compute.WrapBuffer(e, int64(n*4), int64(off*4), buf)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Release()
	mapped, err := m.Map()
	if err != nil {
		t.Fatal(err)
	}
	out := make([]float32, n)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), len(mapped)), mapped)
	if err := m.Unmap(mapped); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestF32Buffers(t *testing.T) {
	q := deviceQueue(t)
	rng := rand.New(rand.NewSource(3))

	const m, n, k = 5, 4, 3
	const offA, offC = 2, 6
	a := randSlice(rng, m*k)
	b := randSlice(rng, k*n)
	c := make([]float32, m*n)
	want := reference('n', 'n', m, n, k, 1.5, a, b, 0, c)

	// A and C sit at element offsets inside larger buffers.
	aBuf := uploadF32(t, q, append(make([]float32, offA), a...))
	bBuf := uploadF32(t, q, b)
	cBuf := uploadF32(t, q, make([]float32, offC+m*n))

	err := F32(q, 'n', 'n', m, n, k, 1.5, aBuf, offA, k, bBuf, 0, n, 0, cBuf, offC, n)
	if err != nil {
		t.Fatal(err)
	}

	got := readF32(t, q, cBuf, offC, m*n)
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-4 {
			t.Fatalf("c[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestF16Buffers(t *testing.T) {
	q := deviceQueue(t)
	rng := rand.New(rand.NewSource(4))

	const m, n, k = 3, 3, 4
	a32 := randSlice(rng, m*k)
	b32 := randSlice(rng, k*n)

	a := float16.Encode(a32)
	b := float16.Encode(b32)
	c := make([]byte, m*n*2)

	upload := func(raw []byte) *wgpu.Buffer {
		size := uint64(len(raw)+3) &^ 3
		buf := q.Device().CreateBuffer(&wgpu.BufferDescriptor{
			Usage:            gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
			Size:             size,
			MappedAtCreation: wgpu.True,
		})
		mapped := buf.GetMappedRange(0, size)
		copy(unsafe.Slice((*byte)(mapped), size), raw)
		buf.Unmap()
		t.Cleanup(buf.Release)
		return buf
	}
	aBuf := upload(a)
	bBuf := upload(b)
	cBuf := upload(c)

	err := F16(q, 'n', 'n', m, n, k, 1, aBuf, 0, k, bBuf, 0, n, 0, cBuf, 0, n)
	if err != nil {
		t.Skipf("f16 kernels unsupported on this device: %v", err)
	}

	want := reference('n', 'n', m, n, k, 1,
		float16.Decode(a), float16.Decode(b), 0, make([]float32, m*n))

	e, eErr := compute.EngineFromQueue(q)
	if eErr != nil {
		t.Fatal(eErr)
	}
	defer e.Release()
	mem, mErr := compute.WrapBuffer(e, int64(len(c)), 0, cBuf)
	if mErr != nil {
		t.Fatal(mErr)
	}
	defer mem.Release()
	mapped, mapErr := mem.Map()
	if mapErr != nil {
		t.Fatal(mapErr)
	}
	got := float16.Decode(mapped)
	_ = mem.Unmap(mapped)

	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 5e-2 {
			t.Errorf("c[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
