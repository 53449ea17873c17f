// Package expr defines typed expressions over columnar batches and the
// evaluator that computes them.
//
// Expressions are type-checked when they are constructed: an ill-typed
// expression cannot be built, so evaluation never needs per-row type
// checks.
package expr

import (
	"fmt"

	"github.com/grafana/regexp"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/compute"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
)

// ExpressionKind represents the kind of an expression.
type ExpressionKind uint32

const (
	_ ExpressionKind = iota // zero-value is an invalid kind

	ExprKindColumn
	ExprKindLiteral
	ExprKindUnary
	ExprKindBinary
	ExprKindCast
)

// String returns the string representation of the [ExpressionKind].
func (k ExpressionKind) String() string {
	switch k {
	case ExprKindColumn:
		return "ColumnExpression"
	case ExprKindLiteral:
		return "LiteralExpression"
	case ExprKindUnary:
		return "UnaryExpression"
	case ExprKindBinary:
		return "BinaryExpression"
	case ExprKindCast:
		return "CastExpression"
	default:
		panic(fmt.Sprintf("unknown expression kind %d", k))
	}
}

// Expression is the common interface for all expressions.
type Expression interface {
	fmt.Stringer

	// Kind returns the kind of the expression.
	Kind() ExpressionKind

	// Type returns the type of the values the expression evaluates to.
	Type() datatype.Type

	// Nullable reports whether evaluating the expression may produce nulls.
	Nullable() bool

	isExpr()
}

// ColumnExpr references a column of the input batch by position.
type ColumnExpr struct {
	Index int
	Name  string

	typ      datatype.Type
	nullable bool
}

// NewColumn returns an expression referencing column i of schema. The
// expression takes its type and nullability from the schema field.
func NewColumn(schema *columnar.Schema, i int) (*ColumnExpr, error) {
	if i < 0 || i >= schema.NumFields() {
		return nil, errs.Newf(errs.ErrOutOfBounds, "column %d out of range [0, %d)", i, schema.NumFields())
	}
	f := schema.Field(i)
	return &ColumnExpr{Index: i, Name: f.Name, typ: f.Type, nullable: f.Nullable}, nil
}

// ColumnByName returns an expression referencing the column of schema with
// the given name.
func ColumnByName(schema *columnar.Schema, name string) (*ColumnExpr, error) {
	i, ok := schema.IndexOf(name)
	if !ok {
		return nil, errs.Newf(errs.ErrSchemaMismatch, "column %q not found in %s", name, schema)
	}
	return NewColumn(schema, i)
}

func (*ColumnExpr) isExpr() {}

// Kind implements [Expression].
func (*ColumnExpr) Kind() ExpressionKind { return ExprKindColumn }

// Type implements [Expression].
func (e *ColumnExpr) Type() datatype.Type { return e.typ }

// Nullable implements [Expression].
func (e *ColumnExpr) Nullable() bool { return e.nullable }

func (e *ColumnExpr) String() string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("#%d", e.Index)
}

// LiteralExpr is a constant value.
type LiteralExpr struct {
	Value datatype.Value
}

// NewLiteral returns a literal expression. A null value yields a nullable
// literal of the value's type.
func NewLiteral(value datatype.Value) *LiteralExpr {
	return &LiteralExpr{Value: value}
}

func (*LiteralExpr) isExpr() {}

// Kind implements [Expression].
func (*LiteralExpr) Kind() ExpressionKind { return ExprKindLiteral }

// Type implements [Expression].
func (e *LiteralExpr) Type() datatype.Type { return e.Value.Type() }

// Nullable implements [Expression].
func (e *LiteralExpr) Nullable() bool { return e.Value.IsNull() }

func (e *LiteralExpr) String() string { return e.Value.String() }

// UnaryExpr applies a unary operation to an expression.
type UnaryExpr struct {
	Op   compute.UnaryOpKind
	Left Expression

	typ      datatype.Type
	nullable bool
}

// NewUnary returns an expression applying op to left. NewUnary returns
// [errs.ErrTypeMismatch] if op is not defined for the type of left.
func NewUnary(op compute.UnaryOpKind, left Expression) (*UnaryExpr, error) {
	typ, nullable, err := compute.UnaryResult(op, left.Type(), left.Nullable())
	if err != nil {
		return nil, fmt.Errorf("%s(%s): %w", op, left, err)
	}
	return &UnaryExpr{Op: op, Left: left, typ: typ, nullable: nullable}, nil
}

func (*UnaryExpr) isExpr() {}

// Kind implements [Expression].
func (*UnaryExpr) Kind() ExpressionKind { return ExprKindUnary }

// Type implements [Expression].
func (e *UnaryExpr) Type() datatype.Type { return e.typ }

// Nullable implements [Expression].
func (e *UnaryExpr) Nullable() bool { return e.nullable }

func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.Left)
}

// BinaryExpr applies a binary operation to two expressions.
type BinaryExpr struct {
	Left, Right Expression
	Op          compute.BinOpKind

	typ      datatype.Type
	nullable bool
	re       *regexp.Regexp
}

// NewBinary returns an expression applying op to left and right. Both sides
// must have the same type; there is no implicit conversion.
//
// Regular expression matches require right to be a non-null VarBinary
// literal holding a valid pattern, which is compiled once here.
func NewBinary(op compute.BinOpKind, left, right Expression) (*BinaryExpr, error) {
	typ, nullable, err := compute.BinaryResult(op, left.Type(), right.Type(), left.Nullable(), right.Nullable())
	if err != nil {
		return nil, fmt.Errorf("%s(%s, %s): %w", op, left, right, err)
	}
	e := &BinaryExpr{Left: left, Right: right, Op: op, typ: typ, nullable: nullable}

	if op == compute.BinOpKindMatchRe || op == compute.BinOpKindNotMatchRe {
		lit, ok := right.(*LiteralExpr)
		if !ok || lit.Value.IsNull() {
			return nil, errs.Newf(errs.ErrTypeMismatch, "%s expects a non-null pattern literal, got %s", op, right)
		}
		e.re, err = regexp.Compile(string(lit.Value.Bytes()))
		if err != nil {
			return nil, errs.Newf(errs.ErrTypeMismatch, "invalid regular expression %q: %v", lit.Value.Bytes(), err)
		}
	}
	return e, nil
}

func (*BinaryExpr) isExpr() {}

// Kind implements [Expression].
func (*BinaryExpr) Kind() ExpressionKind { return ExprKindBinary }

// Type implements [Expression].
func (e *BinaryExpr) Type() datatype.Type { return e.typ }

// Nullable implements [Expression].
func (e *BinaryExpr) Nullable() bool { return e.nullable }

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s(%s, %s)", e.Op, e.Left, e.Right)
}

// CastExpr converts an expression to another type.
type CastExpr struct {
	To   datatype.Type
	Left Expression

	nullable bool
}

// NewCast returns an expression converting left to type to.
func NewCast(to datatype.Type, left Expression) (*CastExpr, error) {
	nullable, err := compute.CastResult(left.Type(), to, left.Nullable())
	if err != nil {
		return nil, fmt.Errorf("CAST(%s AS %s): %w", left, to, err)
	}
	return &CastExpr{To: to, Left: left, nullable: nullable}, nil
}

func (*CastExpr) isExpr() {}

// Kind implements [Expression].
func (*CastExpr) Kind() ExpressionKind { return ExprKindCast }

// Type implements [Expression].
func (e *CastExpr) Type() datatype.Type { return e.To }

// Nullable implements [Expression].
func (e *CastExpr) Nullable() bool { return e.nullable }

func (e *CastExpr) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", e.Left, e.To)
}
