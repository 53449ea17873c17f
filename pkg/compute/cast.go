package compute

import (
	"math"
	"strconv"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/memory"
)

// Cast converts every element of in to type to.
//
// Special cases:
//
//   - Integer to integer conversions wrap around.
//   - Float to integer conversions truncate toward zero; NaN, infinities and
//     out-of-range values yield null.
//   - Numbers and bools cast to VarBinary produce their decimal text.
//   - Binary values cast to numbers or bools are parsed as text; values that
//     fail to parse yield null.
//   - Casting VarBinary to FixedBinary yields null for values of the wrong
//     width.
func Cast(alloc *memory.Allocator, in *columnar.Vector, to datatype.Type) (*columnar.Vector, error) {
	from := in.Type()
	nullable, err := CastResult(from, to, in.Nullable())
	if err != nil {
		return nil, err
	}
	if from == to {
		return in.Clone(alloc)
	}

	out, err := newOutput(alloc, to, in.Len(), nullable)
	if err != nil {
		return nil, err
	}
	propagateNulls(out, in)

	nulls := out.NullBitmap()
	for i := range in.Len() {
		if in.IsNull(i) {
			continue
		}
		v, err := in.Get(i)
		if err != nil {
			out.Release()
			return nil, err
		}
		cv, ok := castValue(v, to)
		if !ok {
			nulls.Set(i, true)
			continue
		}
		if err := out.Set(i, cv); err != nil {
			out.Release()
			return nil, err
		}
	}
	return out, nil
}

// castValue converts a non-null value to type to. It reports false if the
// conversion has no result.
func castValue(v datatype.Value, to datatype.Type) (datatype.Value, bool) {
	from := v.Type()
	switch {
	case to.Kind == datatype.KindVarBinary:
		if from.IsBinary() {
			return datatype.NewVarBinary(v.Bytes()), true
		}
		return datatype.NewString(v.String()), true

	case to.Kind == datatype.KindFixedBinary:
		if len(v.Bytes()) != to.Width {
			return datatype.Value{}, false
		}
		return datatype.NewFixedBinary(v.Bytes()), true

	case from.IsBinary():
		return parseValue(string(v.Bytes()), to)

	case from.IsSigned():
		return fromInt64(v.Int64(), to), true

	case from.IsInteger(), from.Kind == datatype.KindBool:
		return fromUint64(v.UInt64(), to), true

	case from.IsFloat():
		return fromFloat64(v.Float64(), to)
	}
	return datatype.Value{}, false
}

func parseValue(s string, to datatype.Type) (datatype.Value, bool) {
	switch {
	case to.IsSigned():
		i, err := strconv.ParseInt(s, 10, to.ElementWidth()*8)
		if err != nil {
			return datatype.Value{}, false
		}
		return fromInt64(i, to), true
	case to.IsInteger():
		u, err := strconv.ParseUint(s, 10, to.ElementWidth()*8)
		if err != nil {
			return datatype.Value{}, false
		}
		return fromUint64(u, to), true
	case to.IsFloat():
		f, err := strconv.ParseFloat(s, to.ElementWidth()*8)
		if err != nil {
			return datatype.Value{}, false
		}
		return fromFloat64(f, to)
	case to.Kind == datatype.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return datatype.Value{}, false
		}
		return datatype.NewBool(b), true
	}
	return datatype.Value{}, false
}

func fromInt64(i int64, to datatype.Type) datatype.Value {
	switch to.Kind {
	case datatype.KindFloat32:
		return datatype.NewFloat32(float32(i))
	case datatype.KindFloat64:
		return datatype.NewFloat64(float64(i))
	case datatype.KindBool:
		return datatype.NewBool(i != 0)
	}
	if to.IsSigned() {
		return signed(i, to)
	}
	return unsigned(uint64(i), to)
}

func fromUint64(u uint64, to datatype.Type) datatype.Value {
	switch to.Kind {
	case datatype.KindFloat32:
		return datatype.NewFloat32(float32(u))
	case datatype.KindFloat64:
		return datatype.NewFloat64(float64(u))
	case datatype.KindBool:
		return datatype.NewBool(u != 0)
	}
	if to.IsSigned() {
		return signed(int64(u), to)
	}
	return unsigned(u, to)
}

func fromFloat64(f float64, to datatype.Type) (datatype.Value, bool) {
	switch {
	case to.Kind == datatype.KindFloat32:
		return datatype.NewFloat32(float32(f)), true
	case to.Kind == datatype.KindFloat64:
		return datatype.NewFloat64(f), true
	case to.Kind == datatype.KindBool:
		return datatype.NewBool(f != 0), true
	}

	t := math.Trunc(f)
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return datatype.Value{}, false
	}
	if to.IsSigned() {
		bits := to.ElementWidth() * 8
		lo, hi := -math.Ldexp(1, bits-1), math.Ldexp(1, bits-1)
		if t < lo || t >= hi {
			return datatype.Value{}, false
		}
		return signed(int64(t), to), true
	}
	if t < 0 || t >= math.Ldexp(1, to.ElementWidth()*8) {
		return datatype.Value{}, false
	}
	return unsigned(uint64(t), to), true
}

func signed(i int64, to datatype.Type) datatype.Value {
	switch to.Kind {
	case datatype.KindInt8:
		return datatype.NewInt8(int8(i))
	case datatype.KindInt16:
		return datatype.NewInt16(int16(i))
	case datatype.KindInt32:
		return datatype.NewInt32(int32(i))
	}
	return datatype.NewInt64(i)
}

func unsigned(u uint64, to datatype.Type) datatype.Value {
	switch to.Kind {
	case datatype.KindUInt8:
		return datatype.NewUInt8(uint8(u))
	case datatype.KindUInt16:
		return datatype.NewUInt16(uint16(u))
	case datatype.KindUInt32:
		return datatype.NewUInt32(uint32(u))
	}
	return datatype.NewUInt64(u)
}
