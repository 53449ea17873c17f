package executor

import (
	"context"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/engine/expr"
)

// NamedExpr is an expression together with the name of the column it
// produces.
type NamedExpr struct {
	Name string
	Expr expr.Expression
}

// Project computes a list of expressions over each input batch. Every input
// batch produces exactly one output batch with the same number of rows.
type Project struct {
	lifecycle
	child  Operator
	exprs  []NamedExpr
	schema *columnar.Schema

	evaluator *expr.Evaluator
}

var _ Operator = (*Project)(nil)

// NewProject returns a projection of child. The output schema has one field
// per expression, named after it and typed by it.
func NewProject(child Operator, exprs []NamedExpr) (*Project, error) {
	fields := make([]columnar.Field, len(exprs))
	for i, e := range exprs {
		fields[i] = columnar.Field{Name: e.Name, Type: e.Expr.Type(), Nullable: e.Expr.Nullable()}
	}
	schema, err := columnar.NewSchema(fields...)
	if err != nil {
		return nil, err
	}
	return &Project{
		lifecycle: newLifecycle("project", child),
		child:     child,
		exprs:     exprs,
		schema:    schema,
	}, nil
}

// Schema implements [Operator].
func (p *Project) Schema() *columnar.Schema { return p.schema }

// Open implements [Operator].
func (p *Project) Open(ctx context.Context) error {
	if err := p.open(ctx); err != nil {
		return err
	}
	for _, e := range p.exprs {
		if err := expr.Bind(e.Expr, p.child.Schema()); err != nil {
			return p.initError("expression %s: %v", e.Name, err)
		}
	}
	p.evaluator = ResourcesFromContext(ctx).evaluator()
	return nil
}

// Next implements [Operator].
func (p *Project) Next(ctx context.Context) (*columnar.Batch, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	batch, err := p.child.Next(ctx)
	if err != nil {
		return nil, err
	}
	defer batch.Release()

	cols := make([]*columnar.Vector, len(p.exprs))
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}
	for i, e := range p.exprs {
		vec, err := p.evaluator.Evaluate(e.Expr, batch)
		if err != nil {
			release()
			return nil, err
		}
		cols[i] = vec
	}

	out, err := columnar.NewBatchFromVectors(p.schema, batch.NumRows(), cols)
	if err != nil {
		release()
		return nil, err
	}
	return out, nil
}

// Close implements [Operator].
func (p *Project) Close() error {
	_, err := p.close()
	return err
}
