package gemm

// Matrix-multiply kernels, one per element type. Operands are column-major
// with element offsets and leading dimensions carried in the parameter
// block, so one compiled pipeline serves every shape and sub-view.
//
// Index arms are explicit if/else: both operands are in bounds only on the
// taken side, so a select() would read out of range.

const gemmF32Source = `
struct Params {
    offa: u32,
    offb: u32,
    offc: u32,
    m: u32,
    n: u32,
    k: u32,
    lda: u32,
    ldb: u32,
    ldc: u32,
    transa: u32,
    transb: u32,
    alpha: f32,
    beta: f32,
}

@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read_write> c: array<f32>;
@group(0) @binding(3) var<uniform> p: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    let j = gid.y;
    if (i >= p.m || j >= p.n) {
        return;
    }

    var acc: f32 = 0.0;
    for (var l: u32 = 0u; l < p.k; l = l + 1u) {
        var ai: u32;
        if (p.transa != 0u) {
            ai = p.offa + l + i * p.lda;
        } else {
            ai = p.offa + i + l * p.lda;
        }
        var bi: u32;
        if (p.transb != 0u) {
            bi = p.offb + j + l * p.ldb;
        } else {
            bi = p.offb + l + j * p.ldb;
        }
        acc = acc + a[ai] * b[bi];
    }

    let ci = p.offc + i + j * p.ldc;
    if (p.beta == 0.0) {
        c[ci] = p.alpha * acc;
    } else {
        c[ci] = p.alpha * acc + p.beta * c[ci];
    }
}
`

// f16 operands, f32 accumulation. Requires shader-f16 device support;
// compilation fails with RuntimeError on devices without it.
const gemmF16Source = `
enable f16;

struct Params {
    offa: u32,
    offb: u32,
    offc: u32,
    m: u32,
    n: u32,
    k: u32,
    lda: u32,
    ldb: u32,
    ldc: u32,
    transa: u32,
    transb: u32,
    alpha: f32,
    beta: f32,
}

@group(0) @binding(0) var<storage, read> a: array<f16>;
@group(0) @binding(1) var<storage, read> b: array<f16>;
@group(0) @binding(2) var<storage, read_write> c: array<f16>;
@group(0) @binding(3) var<uniform> p: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let i = gid.x;
    let j = gid.y;
    if (i >= p.m || j >= p.n) {
        return;
    }

    var acc: f32 = 0.0;
    for (var l: u32 = 0u; l < p.k; l = l + 1u) {
        var ai: u32;
        if (p.transa != 0u) {
            ai = p.offa + l + i * p.lda;
        } else {
            ai = p.offa + i + l * p.lda;
        }
        var bi: u32;
        if (p.transb != 0u) {
            bi = p.offb + j + l * p.ldb;
        } else {
            bi = p.offb + l + j * p.ldb;
        }
        acc = acc + f32(a[ai]) * f32(b[bi]);
    }

    let ci = p.offc + i + j * p.ldc;
    if (p.beta == 0.0) {
        c[ci] = f16(p.alpha * acc);
    } else {
        c[ci] = f16(p.alpha * acc + p.beta * f32(c[ci]));
    }
}
`

// workgroup size both kernels are compiled with.
var gemmLocal = [3]uint32{16, 16, 1}

// shaderFor returns the cache name and source of the kernel serving the
// element type.
func shaderFor(kind ElementKind) (name, source string) {
	if kind == F16 {
		return "gemm_f16", gemmF16Source
	}
	return "gemm_f32", gemmF32Source
}
