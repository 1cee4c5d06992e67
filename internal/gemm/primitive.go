package gemm

import (
	"github.com/00mjk/oneDNN/internal/compute"
	"github.com/00mjk/oneDNN/internal/status"
)

// PrimitiveDesc pairs a validated operation descriptor with the engine it
// will run on and the storage descriptors of its operands.
type PrimitiveDesc struct {
	engine *compute.Engine
	op     OpDesc
	a      MemDesc
	b      MemDesc
	c      MemDesc
}

// NewPrimitiveDesc derives operand storage descriptors from the operation
// and binds it to an engine.
func NewPrimitiveDesc(e *compute.Engine, op OpDesc) (*PrimitiveDesc, error) {
	if e == nil {
		return nil, status.Errf(status.InvalidArgument, "gemm.NewPrimitiveDesc", "nil engine")
	}
	pd := &PrimitiveDesc{engine: e, op: op}
	pd.a, pd.b, pd.c = op.memDescs()
	return pd, nil
}

// Op returns the operation descriptor.
func (pd *PrimitiveDesc) Op() OpDesc { return pd.op }

// MemDescs returns the storage descriptors of A, B and C.
func (pd *PrimitiveDesc) MemDescs() (a, b, c MemDesc) { return pd.a, pd.b, pd.c }

// Primitive is a compiled, executable matrix multiply. The compiled kernel
// lives in the engine's cache, so creating a primitive for an already-seen
// element type does not recompile.
type Primitive struct {
	desc   *PrimitiveDesc
	kernel *compute.Kernel
}

// NewPrimitive compiles (or fetches from cache) the kernel serving the
// descriptor's element type.
func NewPrimitive(pd *PrimitiveDesc) (*Primitive, error) {
	name, source := shaderFor(pd.op.Kind)
	kernel, err := pd.engine.CompileKernel(name, source, gemmLocal)
	if err != nil {
		return nil, err
	}
	return &Primitive{desc: pd, kernel: kernel}, nil
}

// Execute submits the multiply on the stream over the three operand
// handles and returns its completion token. Offsets recorded on the
// handles are converted to element offsets and travel in the parameter
// block; the handles themselves are bound from their base. The submission
// is asynchronous.
func (p *Primitive) Execute(s *compute.Stream, a, b, c *compute.Memory) (*compute.Event, error) {
	op := p.desc.op
	elem := op.Kind.Size()

	args := compute.ArgList{
		compute.MemoryArg(a, false),
		compute.MemoryArg(b, false),
		compute.MemoryArg(c, true),
		compute.Uint32Arg(uint32(a.EffectiveOffset() / elem)),
		compute.Uint32Arg(uint32(b.EffectiveOffset() / elem)),
		compute.Uint32Arg(uint32(c.EffectiveOffset() / elem)),
		compute.Uint32Arg(uint32(op.M)),
		compute.Uint32Arg(uint32(op.N)),
		compute.Uint32Arg(uint32(op.K)),
		compute.Uint32Arg(uint32(op.LDA)),
		compute.Uint32Arg(uint32(op.LDB)),
		compute.Uint32Arg(uint32(op.LDC)),
		compute.Uint32Arg(boolArg(op.TransA)),
		compute.Uint32Arg(boolArg(op.TransB)),
		compute.Float32Arg(op.Alpha),
		compute.Float32Arg(op.Beta),
	}

	r := compute.GlobalRange(uint32(op.M), uint32(op.N), 1)
	return compute.Submit(s, p.kernel, args, r)
}

// Release drops the primitive's kernel reference. The compiled pipeline
// stays in the engine cache for reuse.
func (p *Primitive) Release() {
	p.kernel = nil
}

func boolArg(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
