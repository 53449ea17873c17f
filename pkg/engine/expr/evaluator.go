package expr

import (
	"fmt"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/compute"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// Evaluator computes expressions over batches using the kernels of a
// [compute.Registry].
type Evaluator struct {
	Registry  *compute.Registry
	Allocator *memory.Allocator
}

// NewEvaluator returns an evaluator allocating from alloc. Nil arguments
// select the default allocator and registry.
func NewEvaluator(alloc *memory.Allocator, registry *compute.Registry) *Evaluator {
	if alloc == nil {
		alloc = memory.DefaultAllocator()
	}
	if registry == nil {
		registry = compute.DefaultRegistry()
	}
	return &Evaluator{Registry: registry, Allocator: alloc}
}

// Evaluate computes e over every row of input. The result is a freshly
// allocated vector of e.Type() and e.Nullable() with input.NumRows()
// elements, owned by the caller. Evaluate never modifies input.
func (ev *Evaluator) Evaluate(e Expression, input *columnar.Batch) (*columnar.Vector, error) {
	vec, owned, err := ev.eval(e, input)
	if err != nil {
		return nil, err
	}
	if !owned {
		if vec, err = vec.Clone(ev.Allocator); err != nil {
			return nil, err
		}
	}
	if vec.Nullable() != e.Nullable() {
		if err := vec.SetNullable(e.Nullable()); err != nil {
			vec.Release()
			return nil, fmt.Errorf("evaluating %s: %w", e, err)
		}
	}
	return vec, nil
}

// eval returns the result of e and whether the caller owns it. Column
// references evaluate to the input column itself.
func (ev *Evaluator) eval(e Expression, input *columnar.Batch) (*columnar.Vector, bool, error) {
	switch e := e.(type) {
	case *ColumnExpr:
		if e.Index < 0 || e.Index >= input.NumCols() {
			return nil, false, errs.Newf(errs.ErrSchemaMismatch, "column %s (#%d) out of range for %s", e, e.Index, input.Schema())
		}
		col := input.Column(e.Index)
		if col.Type() != e.typ {
			return nil, false, errs.Newf(errs.ErrSchemaMismatch, "column %s has type %s, expected %s", e, col.Type(), e.typ)
		}
		return col, false, nil

	case *LiteralExpr:
		vec, err := compute.Broadcast(ev.Allocator, e.Value, input.NumRows())
		return vec, true, err

	case *UnaryExpr:
		left, release, err := ev.evalOperand(e.Left, input)
		if err != nil {
			return nil, false, err
		}
		defer release()

		kernel, err := ev.Registry.Unary(e.Op, left.Type().Kind)
		if err != nil {
			return nil, false, err
		}
		vec, err := kernel(ev.Allocator, left)
		return vec, true, err

	case *BinaryExpr:
		left, releaseLeft, err := ev.evalOperand(e.Left, input)
		if err != nil {
			return nil, false, err
		}
		defer releaseLeft()

		if e.re != nil {
			vec, err := compute.MatchRegexp(ev.Allocator, left, e.re, e.Op == compute.BinOpKindNotMatchRe)
			return vec, true, err
		}

		right, releaseRight, err := ev.evalOperand(e.Right, input)
		if err != nil {
			return nil, false, err
		}
		defer releaseRight()

		kernel, err := ev.Registry.Binary(e.Op, left.Type().Kind)
		if err != nil {
			return nil, false, err
		}
		vec, err := kernel(ev.Allocator, left, right)
		return vec, true, err

	case *CastExpr:
		left, release, err := ev.evalOperand(e.Left, input)
		if err != nil {
			return nil, false, err
		}
		defer release()

		vec, err := compute.Cast(ev.Allocator, left, e.To)
		return vec, true, err
	}

	return nil, false, errs.Newf(errs.ErrNotImplemented, "unknown expression %T", e)
}

func (ev *Evaluator) evalOperand(e Expression, input *columnar.Batch) (*columnar.Vector, func(), error) {
	vec, owned, err := ev.eval(e, input)
	if err != nil {
		return nil, nil, err
	}
	if !owned {
		return vec, func() {}, nil
	}
	return vec, vec.Release, nil
}
