package compute

import (
	"bytes"
	"cmp"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// comparisonKernel returns the kernel comparing two vectors of the same type
// with op. Comparing against null yields null. Bools order false before
// true and binaries compare bytewise.
func comparisonKernel(op BinOpKind) Kernel {
	return func(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
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
		propagateNulls(out, left, right)
		ov := columnar.Values[uint8](out)

		switch left.Type().Kind {
		case datatype.KindInt8:
			compareOrdered(op, columnar.Values[int8](left), columnar.Values[int8](right), ov)
		case datatype.KindInt16:
			compareOrdered(op, columnar.Values[int16](left), columnar.Values[int16](right), ov)
		case datatype.KindInt32:
			compareOrdered(op, columnar.Values[int32](left), columnar.Values[int32](right), ov)
		case datatype.KindInt64:
			compareOrdered(op, columnar.Values[int64](left), columnar.Values[int64](right), ov)
		case datatype.KindUInt8, datatype.KindBool:
			compareOrdered(op, columnar.Values[uint8](left), columnar.Values[uint8](right), ov)
		case datatype.KindUInt16:
			compareOrdered(op, columnar.Values[uint16](left), columnar.Values[uint16](right), ov)
		case datatype.KindUInt32:
			compareOrdered(op, columnar.Values[uint32](left), columnar.Values[uint32](right), ov)
		case datatype.KindUInt64:
			compareOrdered(op, columnar.Values[uint64](left), columnar.Values[uint64](right), ov)
		case datatype.KindFloat32:
			compareOrdered(op, columnar.Values[float32](left), columnar.Values[float32](right), ov)
		case datatype.KindFloat64:
			compareOrdered(op, columnar.Values[float64](left), columnar.Values[float64](right), ov)
		case datatype.KindFixedBinary, datatype.KindVarBinary:
			compareBinary(op, left, right, ov)
		default:
			out.Release()
			return nil, errs.Newf(errs.ErrTypeMismatch, "%s is not defined for %s", op, left.Type())
		}
		return out, nil
	}
}

func compareOrdered[T cmp.Ordered](op BinOpKind, left, right []T, out []uint8) {
	switch op {
	case BinOpKindEq:
		for i := range out {
			out[i] = b2u(left[i] == right[i])
		}
	case BinOpKindNeq:
		for i := range out {
			out[i] = b2u(left[i] != right[i])
		}
	case BinOpKindGt:
		for i := range out {
			out[i] = b2u(left[i] > right[i])
		}
	case BinOpKindGte:
		for i := range out {
			out[i] = b2u(left[i] >= right[i])
		}
	case BinOpKindLt:
		for i := range out {
			out[i] = b2u(left[i] < right[i])
		}
	case BinOpKindLte:
		for i := range out {
			out[i] = b2u(left[i] <= right[i])
		}
	}
}

func compareBinary(op BinOpKind, left, right *columnar.Vector, out []uint8) {
	for i := range out {
		if left.IsNull(i) || right.IsNull(i) {
			continue
		}
		c := bytes.Compare(left.Bytes(i), right.Bytes(i))
		out[i] = b2u(ordered(op, c))
	}
}

func ordered(op BinOpKind, c int) bool {
	switch op {
	case BinOpKindEq:
		return c == 0
	case BinOpKindNeq:
		return c != 0
	case BinOpKindGt:
		return c > 0
	case BinOpKindGte:
		return c >= 0
	case BinOpKindLt:
		return c < 0
	case BinOpKindLte:
		return c <= 0
	}
	return false
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
