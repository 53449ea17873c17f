package executor

import (
	"context"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/compute"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/engine/expr"
	"github.com/grafana/vexec/pkg/errs"
)

// Filter keeps the rows of its input for which a predicate is true. Rows
// where the predicate is false or null are dropped. Column types and
// nullability are preserved.
type Filter struct {
	lifecycle
	child     Operator
	predicate expr.Expression

	res       Resources
	evaluator *expr.Evaluator
	selection []int
}

var _ Operator = (*Filter)(nil)

// NewFilter returns a filter over child. predicate must be of type Bool.
func NewFilter(child Operator, predicate expr.Expression) (*Filter, error) {
	if predicate.Type() != datatype.Bool {
		return nil, errs.Newf(errs.ErrTypeMismatch, "filter predicate %s has type %s, expected BOOL", predicate, predicate.Type())
	}
	return &Filter{
		lifecycle: newLifecycle("filter", child),
		child:     child,
		predicate: predicate,
	}, nil
}

// Schema implements [Operator].
func (f *Filter) Schema() *columnar.Schema { return f.child.Schema() }

// Open implements [Operator].
func (f *Filter) Open(ctx context.Context) error {
	if err := f.open(ctx); err != nil {
		return err
	}
	if err := expr.Bind(f.predicate, f.child.Schema()); err != nil {
		return f.initError("predicate %s: %v", f.predicate, err)
	}
	f.res = ResourcesFromContext(ctx)
	f.evaluator = f.res.evaluator()
	return nil
}

// Next implements [Operator]. A batch whose rows are all dropped is returned
// as a batch with zero rows.
func (f *Filter) Next(ctx context.Context) (*columnar.Batch, error) {
	if err := f.next(); err != nil {
		return nil, err
	}
	batch, err := f.child.Next(ctx)
	if err != nil {
		return nil, err
	}

	mask, err := f.evaluator.Evaluate(f.predicate, batch)
	if err != nil {
		batch.Release()
		return nil, err
	}
	f.selection, err = compute.Selection(mask, f.selection)
	mask.Release()
	if err != nil {
		batch.Release()
		return nil, err
	}

	if len(f.selection) == batch.NumRows() {
		return batch, nil
	}
	defer batch.Release()
	return takeRows(f.res, f.Schema(), batch, f.selection)
}

// Close implements [Operator].
func (f *Filter) Close() error {
	_, err := f.close()
	return err
}

// takeRows returns a new batch holding the given rows of batch.
func takeRows(res Resources, schema *columnar.Schema, batch *columnar.Batch, rows []int) (*columnar.Batch, error) {
	out, err := res.newBatch(schema, len(rows))
	if err != nil {
		return nil, err
	}
	for i, col := range batch.Columns() {
		if err := compute.TakeInto(out.Column(i), col, rows); err != nil {
			out.Release()
			return nil, err
		}
	}
	if err := out.SetNumRows(len(rows)); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}
