package compute

import (
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
)

// UnaryResult returns the type and nullability of applying op to an operand
// of type t. UnaryResult returns [errs.ErrTypeMismatch] if op is not defined
// for t.
func UnaryResult(op UnaryOpKind, t datatype.Type, nullable bool) (datatype.Type, bool, error) {
	switch op {
	case UnaryOpKindNot:
		if t != datatype.Bool {
			return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "%s expects BOOL, got %s", op, t)
		}
		return datatype.Bool, nullable, nil
	case UnaryOpKindNeg:
		if !t.IsNumeric() {
			return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "%s expects a numeric operand, got %s", op, t)
		}
		return t, nullable, nil
	case UnaryOpKindIsNull, UnaryOpKindIsNotNull:
		return datatype.Bool, false, nil
	}
	return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "unsupported unary operation %s", op)
}

// BinaryResult returns the type and nullability of applying op to operands
// of types left and right. Operands must share a type; there is no implicit
// widening.
func BinaryResult(op BinOpKind, left, right datatype.Type, leftNullable, rightNullable bool) (datatype.Type, bool, error) {
	nullable := leftNullable || rightNullable

	switch {
	case op.IsArithmetic():
		if !left.IsNumeric() || left != right {
			return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "%s expects two numeric operands of the same type, got %s and %s", op, left, right)
		}
		if left.IsInteger() && (op == BinOpKindDiv || op == BinOpKindMod) {
			// Division by zero yields null.
			nullable = true
		}
		return left, nullable, nil

	case op.IsComparison():
		if !left.Valid() || left != right {
			return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "%s expects two operands of the same type, got %s and %s", op, left, right)
		}
		return datatype.Bool, nullable, nil

	case op.IsLogical():
		if left != datatype.Bool || right != datatype.Bool {
			return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "%s expects two BOOL operands, got %s and %s", op, left, right)
		}
		return datatype.Bool, nullable, nil

	case op.IsMatch():
		if !left.IsBinary() || right != datatype.VarBinary {
			return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "%s expects a binary value and a VAR_BINARY pattern, got %s and %s", op, left, right)
		}
		return datatype.Bool, nullable, nil
	}
	return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "unsupported binary operation %s", op)
}

// CastResult returns the nullability of casting a value of type from to
// type to. Casts that parse text may fail per value and then yield null.
func CastResult(from, to datatype.Type, nullable bool) (bool, error) {
	if !from.Valid() || !to.Valid() {
		return false, errs.Newf(errs.ErrTypeMismatch, "cannot cast %s to %s", from, to)
	}
	switch {
	case from == to:
		return nullable, nil
	case from.IsBinary() && to.IsBinary():
		return nullable || to.Kind == datatype.KindFixedBinary, nil
	case from.IsBinary():
		return true, nil
	case to.Kind == datatype.KindFixedBinary:
		return false, errs.Newf(errs.ErrTypeMismatch, "cannot cast %s to %s", from, to)
	case from.IsFloat() && to.IsInteger():
		// NaN, infinities and out-of-range values yield null.
		return true, nil
	}
	return nullable, nil
}
