package compute

import (
	"sync"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// Kernel computes an output vector from its input vectors. Kernels are pure:
// they never modify their inputs and always return a freshly allocated
// vector owned by the caller.
type Kernel func(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error)

type kernelKey struct {
	unary  UnaryOpKind
	binary BinOpKind
	kind   datatype.Kind // KindInvalid matches any input kind
}

// Registry maps operations to kernels. Kernels may be registered for a
// single input kind to replace the generic implementation of an operation
// for that kind only.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	kernels map[kernelKey]Kernel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[kernelKey]Kernel)}
}

var defaultRegistry = newDefaultRegistry()

// DefaultRegistry returns the shared registry of scalar kernels.
func DefaultRegistry() *Registry { return defaultRegistry }

func newDefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterUnary(UnaryOpKindNot, datatype.KindInvalid, Not)
	r.RegisterUnary(UnaryOpKindNeg, datatype.KindInvalid, Negate)
	r.RegisterUnary(UnaryOpKindIsNull, datatype.KindInvalid, IsNull)
	r.RegisterUnary(UnaryOpKindIsNotNull, datatype.KindInvalid, IsNotNull)

	for _, op := range []BinOpKind{BinOpKindAdd, BinOpKindSub, BinOpKindMul, BinOpKindDiv, BinOpKindMod} {
		r.RegisterBinary(op, datatype.KindInvalid, arithmeticKernel(op))
	}
	for _, op := range []BinOpKind{BinOpKindEq, BinOpKindNeq, BinOpKindGt, BinOpKindGte, BinOpKindLt, BinOpKindLte} {
		r.RegisterBinary(op, datatype.KindInvalid, comparisonKernel(op))
	}
	r.RegisterBinary(BinOpKindAnd, datatype.KindInvalid, And)
	r.RegisterBinary(BinOpKindOr, datatype.KindInvalid, Or)
	r.RegisterBinary(BinOpKindXor, datatype.KindInvalid, Xor)
	r.RegisterBinary(BinOpKindMatchStr, datatype.KindInvalid, Contains)
	r.RegisterBinary(BinOpKindNotMatchStr, datatype.KindInvalid, NotContains)
	return r
}

// Clone returns a copy of r that can be modified independently.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := NewRegistry()
	for k, v := range r.kernels {
		out.kernels[k] = v
	}
	return out
}

// RegisterUnary registers k for op over inputs of the given kind. Use
// [datatype.KindInvalid] to register a kernel for every kind.
func (r *Registry) RegisterUnary(op UnaryOpKind, kind datatype.Kind, k Kernel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernels[kernelKey{unary: op, kind: kind}] = k
}

// RegisterBinary registers k for op over left inputs of the given kind.
func (r *Registry) RegisterBinary(op BinOpKind, kind datatype.Kind, k Kernel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kernels[kernelKey{binary: op, kind: kind}] = k
}

// Unary returns the kernel for op over inputs of kind.
func (r *Registry) Unary(op UnaryOpKind, kind datatype.Kind) (Kernel, error) {
	return r.lookup(kernelKey{unary: op, kind: kind}, op.String())
}

// Binary returns the kernel for op over left inputs of kind.
func (r *Registry) Binary(op BinOpKind, kind datatype.Kind) (Kernel, error) {
	return r.lookup(kernelKey{binary: op, kind: kind}, op.String())
}

func (r *Registry) lookup(key kernelKey, name string) (Kernel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if k, ok := r.kernels[key]; ok {
		return k, nil
	}
	kind := key.kind
	key.kind = datatype.KindInvalid
	if k, ok := r.kernels[key]; ok {
		return k, nil
	}
	return nil, errs.Newf(errs.ErrNotImplemented, "no kernel registered for %s over %s", name, kind)
}
