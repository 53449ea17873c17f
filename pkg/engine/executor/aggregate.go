package executor

import (
	"context"
	"fmt"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/engine/expr"
	"github.com/grafana/vexec/pkg/errs"
)

// Aggregation describes one output column of an [Aggregate].
type Aggregation struct {
	Func AggregateFunc
	// Expr is the aggregated expression. It is ignored by AggCountRows and
	// may be nil there.
	Expr expr.Expression
	Name string
}

func (a Aggregation) String() string {
	if a.Expr == nil {
		return fmt.Sprintf("%s()", a.Func)
	}
	return fmt.Sprintf("%s(%s)", a.Func, a.Expr)
}

// AggregateOptions configures an [Aggregate].
type AggregateOptions struct {
	// BatchSize is the maximum number of groups per output batch. Zero
	// selects the batch size of the pipeline resources.
	BatchSize int

	// StableOrder emits groups in the order their keys were first seen.
	// Otherwise the order is unspecified.
	StableOrder bool
}

// Aggregate groups the rows of its input by a tuple of key expressions and
// computes aggregate functions per group. It is a blocking operator: the
// input is fully drained by the first call to Next.
//
// Output batches hold the key columns followed by one column per
// aggregation. Rows whose keys are null form a group of their own. Without
// key expressions, Aggregate produces exactly one row, even for an empty
// input.
type Aggregate struct {
	lifecycle
	child  Operator
	keys   []NamedExpr
	aggs   []Aggregation
	opts   AggregateOptions
	schema *columnar.Schema

	res       Resources
	evaluator *expr.Evaluator

	built  bool
	groups *keyIndex
	accs   []accumulator
	order  []int
	pos    int
}

var _ Operator = (*Aggregate)(nil)

// NewAggregate returns an aggregation of child grouped by keys.
func NewAggregate(child Operator, keys []NamedExpr, aggs []Aggregation, opts AggregateOptions) (*Aggregate, error) {
	fields := make([]columnar.Field, 0, len(keys)+len(aggs))
	for _, k := range keys {
		fields = append(fields, columnar.Field{Name: k.Name, Type: k.Expr.Type(), Nullable: k.Expr.Nullable()})
	}
	for _, a := range aggs {
		var in datatype.Type
		switch {
		case a.Expr != nil:
			in = a.Expr.Type()
		case a.Func != AggCountRows:
			return nil, errs.Newf(errs.ErrTypeMismatch, "aggregation %s requires an expression", a.Name)
		}
		t, nullable, err := aggregateResult(a.Func, in)
		if err != nil {
			return nil, fmt.Errorf("aggregation %s: %w", a.Name, err)
		}
		fields = append(fields, columnar.Field{Name: a.Name, Type: t, Nullable: nullable})
	}
	schema, err := columnar.NewSchema(fields...)
	if err != nil {
		return nil, err
	}

	return &Aggregate{
		lifecycle: newLifecycle("aggregate", child),
		child:     child,
		keys:      keys,
		aggs:      aggs,
		opts:      opts,
		schema:    schema,
	}, nil
}

// Schema implements [Operator].
func (a *Aggregate) Schema() *columnar.Schema { return a.schema }

// Open implements [Operator].
func (a *Aggregate) Open(ctx context.Context) error {
	if err := a.open(ctx); err != nil {
		return err
	}
	for _, k := range a.keys {
		if err := expr.Bind(k.Expr, a.child.Schema()); err != nil {
			return a.initError("group key %s: %v", k.Name, err)
		}
	}
	for _, agg := range a.aggs {
		if agg.Expr == nil {
			continue
		}
		if err := expr.Bind(agg.Expr, a.child.Schema()); err != nil {
			return a.initError("aggregation %s: %v", agg.Name, err)
		}
	}

	a.res = ResourcesFromContext(ctx)
	a.evaluator = a.res.evaluator()
	if a.opts.BatchSize <= 0 {
		a.opts.BatchSize = a.res.BatchSize
	}
	a.opts.StableOrder = a.opts.StableOrder || a.res.StableGroupOrder
	a.groups = newKeyIndex()
	a.accs = make([]accumulator, len(a.aggs))
	for i, agg := range a.aggs {
		var in datatype.Type
		if agg.Expr != nil {
			in = agg.Expr.Type()
		}
		a.accs[i] = newAccumulator(agg.Func, in, a.schema.Field(len(a.keys)+i).Type)
	}
	return nil
}

// Next implements [Operator].
func (a *Aggregate) Next(ctx context.Context) (*columnar.Batch, error) {
	if err := a.next(); err != nil {
		return nil, err
	}
	if !a.built {
		if err := a.build(ctx); err != nil {
			return nil, err
		}
		a.built = true
	}
	if a.pos >= len(a.order) {
		return nil, EOF
	}

	n := min(a.opts.BatchSize, len(a.order)-a.pos)
	out, err := a.res.newBatch(a.schema, n)
	if err != nil {
		return nil, err
	}
	for _, id := range a.order[a.pos : a.pos+n] {
		if err := a.appendGroup(out, id); err != nil {
			out.Release()
			return nil, err
		}
	}
	if err := out.SetNumRows(n); err != nil {
		out.Release()
		return nil, err
	}
	a.pos += n
	return out, nil
}

func (a *Aggregate) appendGroup(out *columnar.Batch, id int) error {
	for i, v := range a.groups.Key(id) {
		if err := out.Column(i).Append(v); err != nil {
			return err
		}
	}
	for i, acc := range a.accs {
		if err := out.Column(len(a.keys) + i).Append(acc.result(id)); err != nil {
			return err
		}
	}
	return nil
}

// build drains the child into the group table and fixes the emission order.
func (a *Aggregate) build(ctx context.Context) error {
	if len(a.keys) == 0 {
		a.groups.Insert(nil)
		a.growAccumulators()
	}

	var (
		keys     = newKeyReader(len(a.keys))
		keyCols  = make([]*columnar.Vector, len(a.keys))
		aggCols  = make([]*columnar.Vector, len(a.aggs))
		groupIDs []int
	)
	release := func() {
		for i, c := range keyCols {
			c.Release()
			keyCols[i] = nil
		}
		for i, c := range aggCols {
			c.Release()
			aggCols[i] = nil
		}
	}
	defer release()

	err := drain(ctx, a.child, func(batch *columnar.Batch) error {
		release()
		for i, k := range a.keys {
			vec, err := a.evaluator.Evaluate(k.Expr, batch)
			if err != nil {
				return err
			}
			keyCols[i] = vec
		}
		for i, agg := range a.aggs {
			if agg.Expr == nil {
				continue
			}
			vec, err := a.evaluator.Evaluate(agg.Expr, batch)
			if err != nil {
				return err
			}
			aggCols[i] = vec
		}

		groupIDs = groupIDs[:0]
		keys.Reset(keyCols)
		for row := range batch.NumRows() {
			key, _, err := keys.Row(row)
			if err != nil {
				return err
			}
			id, added := a.groups.Insert(key)
			if added {
				a.growAccumulators()
			}
			groupIDs = append(groupIDs, id)
		}

		for i, acc := range a.accs {
			if err := acc.update(groupIDs, aggCols[i]); err != nil {
				return fmt.Errorf("aggregation %s: %w", a.aggs[i].Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	a.order = make([]int, 0, a.groups.Len())
	if a.opts.StableOrder {
		for id := range a.groups.Len() {
			a.order = append(a.order, id)
		}
	} else {
		a.groups.Iter(func(id int) bool {
			a.order = append(a.order, id)
			return true
		})
	}
	return nil
}

func (a *Aggregate) growAccumulators() {
	for _, acc := range a.accs {
		acc.grow(a.groups.Len())
	}
}

// Close implements [Operator].
func (a *Aggregate) Close() error {
	first, err := a.close()
	if first {
		a.groups = nil
		a.accs = nil
		a.order = nil
	}
	return err
}
