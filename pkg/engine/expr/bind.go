package expr

import (
	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/errs"
)

// Walk calls fn for e and every expression below it in depth-first order.
// Walk stops early if fn returns false.
func Walk(e Expression, fn func(Expression) bool) bool {
	if !fn(e) {
		return false
	}
	switch e := e.(type) {
	case *UnaryExpr:
		return Walk(e.Left, fn)
	case *BinaryExpr:
		return Walk(e.Left, fn) && Walk(e.Right, fn)
	case *CastExpr:
		return Walk(e.Left, fn)
	}
	return true
}

// Bind checks that every column referenced by e exists in schema with the
// type the expression was built for. A column that was nullable when e was
// built may be bound to a non-nullable field, but not the reverse.
func Bind(e Expression, schema *columnar.Schema) error {
	var err error
	Walk(e, func(e Expression) bool {
		col, ok := e.(*ColumnExpr)
		if !ok {
			return true
		}
		if col.Index < 0 || col.Index >= schema.NumFields() {
			err = errs.Newf(errs.ErrSchemaMismatch, "column %s (#%d) out of range for %s", col, col.Index, schema)
			return false
		}
		f := schema.Field(col.Index)
		switch {
		case f.Type != col.typ:
			err = errs.Newf(errs.ErrSchemaMismatch, "column %s has type %s in input, expected %s", col, f.Type, col.typ)
		case f.Nullable && !col.nullable:
			err = errs.Newf(errs.ErrSchemaMismatch, "column %s is nullable in input but was bound as NOT NULL", col)
		}
		return err == nil
	})
	return err
}
