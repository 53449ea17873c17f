package compute

import (
	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/memory"
)

// Not negates a boolean vector.
//
// Special cases:
//
//   - The negation of null is null.
func Not(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	if err := checkArity("NOT", inputs, 1); err != nil {
		return nil, err
	}
	in := inputs[0]
	typ, nullable, err := UnaryResult(UnaryOpKindNot, in.Type(), in.Nullable())
	if err != nil {
		return nil, err
	}

	out, err := newOutput(alloc, typ, in.Len(), nullable)
	if err != nil {
		return nil, err
	}
	propagateNulls(out, in)

	iv, ov := columnar.Values[uint8](in), columnar.Values[uint8](out)
	for i := range ov {
		ov[i] = iv[i] ^ 1
	}
	return out, nil
}

// And computes the logical AND of two boolean vectors of the same length.
//
// Special cases:
//
//   - false AND null is false, in either order.
//   - true AND null is null.
func And(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	return dispatchLogical(alloc, BinOpKindAnd, inputs)
}

// Or computes the logical OR of two boolean vectors of the same length.
//
// Special cases:
//
//   - true OR null is true, in either order.
//   - false OR null is null.
func Or(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	return dispatchLogical(alloc, BinOpKindOr, inputs)
}

// Xor computes the logical XOR of two boolean vectors of the same length. If
// either side is null, the result is null.
func Xor(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	return dispatchLogical(alloc, BinOpKindXor, inputs)
}

func dispatchLogical(alloc *memory.Allocator, op BinOpKind, inputs []*columnar.Vector) (*columnar.Vector, error) {
	if err := checkArity(op.String(), inputs, 2); err != nil {
		return nil, err
	}
	left, right := inputs[0], inputs[1]
	typ, nullable, err := BinaryResult(op, left.Type(), right.Type(), left.Nullable(), right.Nullable())
	if err != nil {
		return nil, err
	}

	out, err := newOutput(alloc, typ, left.Len(), nullable)
	if err != nil {
		return nil, err
	}
	lv, rv, ov := columnar.Values[uint8](left), columnar.Values[uint8](right), columnar.Values[uint8](out)

	if op == BinOpKindXor || !nullable {
		propagateNulls(out, left, right)
		for i := range ov {
			ov[i] = logicalKernel(op, lv[i], rv[i])
		}
		return out, nil
	}

	// A known operand may decide the result on its own: false for AND, true
	// for OR.
	var absorbing uint8
	if op == BinOpKindOr {
		absorbing = 1
	}
	nulls := out.NullBitmap()
	for i := range ov {
		leftNull, rightNull := left.IsNull(i), right.IsNull(i)
		switch {
		case !leftNull && lv[i] == absorbing, !rightNull && rv[i] == absorbing:
			ov[i] = absorbing
		case leftNull || rightNull:
			nulls.Set(i, true)
		default:
			ov[i] = logicalKernel(op, lv[i], rv[i])
		}
	}
	return out, nil
}

func logicalKernel(op BinOpKind, left, right uint8) uint8 {
	switch op {
	case BinOpKindAnd:
		return left & right
	case BinOpKindOr:
		return left | right
	case BinOpKindXor:
		return left ^ right
	}
	return 0
}

// IsNull reports for each element of a vector whether it is null. The
// result is never null.
func IsNull(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	return nullTest(alloc, inputs, true)
}

// IsNotNull reports for each element of a vector whether it is not null.
func IsNotNull(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	return nullTest(alloc, inputs, false)
}

func nullTest(alloc *memory.Allocator, inputs []*columnar.Vector, want bool) (*columnar.Vector, error) {
	if err := checkArity("IS_NULL", inputs, 1); err != nil {
		return nil, err
	}
	in := inputs[0]
	out, err := newOutput(alloc, datatype.Bool, in.Len(), false)
	if err != nil {
		return nil, err
	}
	ov := columnar.Values[uint8](out)
	for i := range ov {
		ov[i] = b2u(in.IsNull(i) == want)
	}
	return out, nil
}
