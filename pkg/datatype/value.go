package datatype

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Value is a single scalar of any supported [Type], possibly null.
//
// Signed integers are held in an int64, unsigned integers and booleans in a
// uint64, floating point numbers in a float64 and byte strings in a []byte.
type Value struct {
	typ  Type
	null bool

	i int64
	u uint64
	f float64
	b []byte
}

// NewInt8, NewInt16 and the other numeric constructors return a non-null
// value of the matching fixed-width type.
func NewInt8(v int8) Value       { return Value{typ: Int8, i: int64(v)} }
func NewInt16(v int16) Value     { return Value{typ: Int16, i: int64(v)} }
func NewInt32(v int32) Value     { return Value{typ: Int32, i: int64(v)} }
func NewInt64(v int64) Value     { return Value{typ: Int64, i: v} }
func NewUInt8(v uint8) Value     { return Value{typ: UInt8, u: uint64(v)} }
func NewUInt16(v uint16) Value   { return Value{typ: UInt16, u: uint64(v)} }
func NewUInt32(v uint32) Value   { return Value{typ: UInt32, u: uint64(v)} }
func NewUInt64(v uint64) Value   { return Value{typ: UInt64, u: v} }
func NewFloat32(v float32) Value { return Value{typ: Float32, f: float64(v)} }
func NewFloat64(v float64) Value { return Value{typ: Float64, f: v} }

// NewVarBinary returns a VarBinary value. v is not copied.
func NewVarBinary(v []byte) Value {
	return Value{typ: VarBinary, b: v}
}

// NewString returns a VarBinary value holding the bytes of s.
func NewString(s string) Value { return NewVarBinary([]byte(s)) }

// NewBool returns a Bool value.
func NewBool(v bool) Value {
	var u uint64
	if v {
		u = 1
	}
	return Value{typ: Bool, u: u}
}

// NewFixedBinary returns a FixedBinary(len(v)) value.
func NewFixedBinary(v []byte) Value {
	return Value{typ: FixedBinary(len(v)), b: v}
}

// NullOf returns the null value of type t.
func NullOf(t Type) Value { return Value{typ: t, null: true} }

// Type returns the type of v.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.null }

// IsNaN reports whether v is a non-null floating-point NaN.
func (v Value) IsNaN() bool { return !v.null && v.typ.IsFloat() && math.IsNaN(v.f) }

// Int64 returns the value of a signed integer. The result is unspecified
// for other types.
func (v Value) Int64() int64 { return v.i }

// UInt64 returns the value of an unsigned integer.
func (v Value) UInt64() uint64 { return v.u }

// Float64 returns the value of a floating point number.
func (v Value) Float64() float64 { return v.f }

// Bool returns the value of a boolean.
func (v Value) Bool() bool { return v.u != 0 }

// Bytes returns the value of a byte string. The returned slice may alias
// vector memory and must not be modified.
func (v Value) Bytes() []byte { return v.b }

// Any returns v as the natural Go value of its type, or nil if v is null.
func (v Value) Any() any {
	if v.null {
		return nil
	}
	switch v.typ.Kind {
	case KindInt8:
		return int8(v.i)
	case KindInt16:
		return int16(v.i)
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindUInt8:
		return uint8(v.u)
	case KindUInt16:
		return uint16(v.u)
	case KindUInt32:
		return uint32(v.u)
	case KindUInt64:
		return v.u
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	case KindBool:
		return v.Bool()
	case KindFixedBinary, KindVarBinary:
		return v.b
	}
	return nil
}

// Equal reports whether v and o have the same type and value. Two nulls of
// the same type are equal.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.null != o.null {
		return false
	}
	if v.null {
		return true
	}
	return v.Compare(o) == 0
}

// Compare orders two non-null values of the same type. The result is
// unspecified if the types differ or either value is null.
func (v Value) Compare(o Value) int {
	switch {
	case v.typ.IsSigned():
		return cmp.Compare(v.i, o.i)
	case v.typ.IsInteger(), v.typ.Kind == KindBool:
		return cmp.Compare(v.u, o.u)
	case v.typ.IsFloat():
		return cmp.Compare(v.f, o.f)
	case v.typ.IsBinary():
		return bytes.Compare(v.b, o.b)
	}
	return 0
}

// AppendKey appends an encoding of v to buf that is suitable for hashing.
// Equal values produce equal encodings.
func (v Value) AppendKey(buf []byte) []byte {
	if v.null {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	switch {
	case v.typ.IsSigned():
		return binary.LittleEndian.AppendUint64(buf, uint64(v.i))
	case v.typ.IsInteger(), v.typ.Kind == KindBool:
		return binary.LittleEndian.AppendUint64(buf, v.u)
	case v.typ.IsFloat():
		f := v.f
		switch {
		case f == 0:
			f = 0 // fold -0 into +0
		case math.IsNaN(f):
			f = math.NaN()
		}
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(f))
	case v.typ.IsBinary():
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(v.b)))
		return append(buf, v.b...)
	}
	return buf
}

// String returns a human-readable representation of v.
func (v Value) String() string {
	if v.null {
		return "null"
	}
	switch {
	case v.typ.IsSigned():
		return strconv.FormatInt(v.i, 10)
	case v.typ.IsInteger():
		return strconv.FormatUint(v.u, 10)
	case v.typ.Kind == KindFloat32:
		return strconv.FormatFloat(v.f, 'g', -1, 32)
	case v.typ.Kind == KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case v.typ.Kind == KindBool:
		return strconv.FormatBool(v.Bool())
	case v.typ.IsBinary():
		return strconv.Quote(string(v.b))
	}
	return fmt.Sprintf("Value(%s)", v.typ)
}

// Clone returns a copy of v that does not alias the bytes of v.
func (v Value) Clone() Value {
	if v.b != nil {
		v.b = bytes.Clone(v.b)
	}
	return v
}
