package compute

import (
	"math"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

type integer interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

type float interface{ ~float32 | ~float64 }

type numeric interface{ integer | float }

// arithmeticKernel returns the kernel computing op over two numeric vectors
// of the same type.
//
// Special cases:
//
//   - Integer arithmetic wraps around on overflow.
//   - Integer division or modulo by zero yields null.
//   - Float arithmetic follows IEEE 754.
func arithmeticKernel(op BinOpKind) Kernel {
	return func(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
		if err := checkArity(op.String(), inputs, 2); err != nil {
			return nil, err
		}
		left, right := inputs[0], inputs[1]
		typ, nullable, err := BinaryResult(op, left.Type(), right.Type(), left.Nullable(), right.Nullable())
		if err != nil {
			return nil, err
		}

		switch typ.Kind {
		case datatype.KindInt8:
			return integerArithmetic[int8](alloc, op, typ, nullable, left, right)
		case datatype.KindInt16:
			return integerArithmetic[int16](alloc, op, typ, nullable, left, right)
		case datatype.KindInt32:
			return integerArithmetic[int32](alloc, op, typ, nullable, left, right)
		case datatype.KindInt64:
			return integerArithmetic[int64](alloc, op, typ, nullable, left, right)
		case datatype.KindUInt8:
			return integerArithmetic[uint8](alloc, op, typ, nullable, left, right)
		case datatype.KindUInt16:
			return integerArithmetic[uint16](alloc, op, typ, nullable, left, right)
		case datatype.KindUInt32:
			return integerArithmetic[uint32](alloc, op, typ, nullable, left, right)
		case datatype.KindUInt64:
			return integerArithmetic[uint64](alloc, op, typ, nullable, left, right)
		case datatype.KindFloat32:
			return floatArithmetic[float32](alloc, op, typ, nullable, left, right)
		case datatype.KindFloat64:
			return floatArithmetic[float64](alloc, op, typ, nullable, left, right)
		}
		return nil, errs.Newf(errs.ErrTypeMismatch, "%s is not defined for %s", op, typ)
	}
}

func integerArithmetic[T integer](alloc *memory.Allocator, op BinOpKind, typ datatype.Type, nullable bool, left, right *columnar.Vector) (*columnar.Vector, error) {
	out, err := newOutput(alloc, typ, left.Len(), nullable)
	if err != nil {
		return nil, err
	}
	propagateNulls(out, left, right)

	lv, rv, ov := columnar.Values[T](left), columnar.Values[T](right), columnar.Values[T](out)
	switch op {
	case BinOpKindAdd:
		for i := range ov {
			ov[i] = lv[i] + rv[i]
		}
	case BinOpKindSub:
		for i := range ov {
			ov[i] = lv[i] - rv[i]
		}
	case BinOpKindMul:
		for i := range ov {
			ov[i] = lv[i] * rv[i]
		}
	case BinOpKindDiv, BinOpKindMod:
		nulls := out.NullBitmap()
		for i := range ov {
			if rv[i] == 0 {
				nulls.Set(i, true)
				continue
			}
			if op == BinOpKindDiv {
				ov[i] = lv[i] / rv[i]
			} else {
				ov[i] = lv[i] % rv[i]
			}
		}
	}
	return out, nil
}

func floatArithmetic[T float](alloc *memory.Allocator, op BinOpKind, typ datatype.Type, nullable bool, left, right *columnar.Vector) (*columnar.Vector, error) {
	out, err := newOutput(alloc, typ, left.Len(), nullable)
	if err != nil {
		return nil, err
	}
	propagateNulls(out, left, right)

	lv, rv, ov := columnar.Values[T](left), columnar.Values[T](right), columnar.Values[T](out)
	switch op {
	case BinOpKindAdd:
		for i := range ov {
			ov[i] = lv[i] + rv[i]
		}
	case BinOpKindSub:
		for i := range ov {
			ov[i] = lv[i] - rv[i]
		}
	case BinOpKindMul:
		for i := range ov {
			ov[i] = lv[i] * rv[i]
		}
	case BinOpKindDiv:
		for i := range ov {
			ov[i] = lv[i] / rv[i]
		}
	case BinOpKindMod:
		for i := range ov {
			ov[i] = T(math.Mod(float64(lv[i]), float64(rv[i])))
		}
	}
	return out, nil
}

// Negate computes the arithmetic negation of a numeric vector. Negation of
// unsigned integers and of the minimum signed integer wraps around.
func Negate(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	if err := checkArity("NEG", inputs, 1); err != nil {
		return nil, err
	}
	in := inputs[0]
	typ, nullable, err := UnaryResult(UnaryOpKindNeg, in.Type(), in.Nullable())
	if err != nil {
		return nil, err
	}

	switch typ.Kind {
	case datatype.KindInt8:
		return negate[int8](alloc, typ, nullable, in)
	case datatype.KindInt16:
		return negate[int16](alloc, typ, nullable, in)
	case datatype.KindInt32:
		return negate[int32](alloc, typ, nullable, in)
	case datatype.KindInt64:
		return negate[int64](alloc, typ, nullable, in)
	case datatype.KindUInt8:
		return negate[uint8](alloc, typ, nullable, in)
	case datatype.KindUInt16:
		return negate[uint16](alloc, typ, nullable, in)
	case datatype.KindUInt32:
		return negate[uint32](alloc, typ, nullable, in)
	case datatype.KindUInt64:
		return negate[uint64](alloc, typ, nullable, in)
	case datatype.KindFloat32:
		return negate[float32](alloc, typ, nullable, in)
	case datatype.KindFloat64:
		return negate[float64](alloc, typ, nullable, in)
	}
	return nil, errs.Newf(errs.ErrTypeMismatch, "NEG is not defined for %s", typ)
}

func negate[T numeric](alloc *memory.Allocator, typ datatype.Type, nullable bool, in *columnar.Vector) (*columnar.Vector, error) {
	out, err := newOutput(alloc, typ, in.Len(), nullable)
	if err != nil {
		return nil, err
	}
	propagateNulls(out, in)

	iv, ov := columnar.Values[T](in), columnar.Values[T](out)
	for i := range ov {
		ov[i] = -iv[i]
	}
	return out, nil
}
