// Package datatype defines the closed set of scalar types supported by the
// execution core and their physical layout.
package datatype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grafana/vexec/pkg/errs"
)

// Kind is the tag of a [Type].
type Kind uint8

// Recognized values of [Kind].
const (
	// KindInvalid indicates an invalid type. It is the zero value.
	KindInvalid Kind = iota

	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindFloat32
	KindFloat64
	KindBool
	KindFixedBinary // Byte strings of a fixed width.
	KindVarBinary   // Byte strings of any length.
)

var kindStrings = map[Kind]string{
	KindInvalid: "INVALID",

	KindInt8:        "INT8",
	KindInt16:       "INT16",
	KindInt32:       "INT32",
	KindInt64:       "INT64",
	KindUInt8:       "UINT8",
	KindUInt16:      "UINT16",
	KindUInt32:      "UINT32",
	KindUInt64:      "UINT64",
	KindFloat32:     "FLOAT32",
	KindFloat64:     "FLOAT64",
	KindBool:        "BOOL",
	KindFixedBinary: "FIXED_BINARY",
	KindVarBinary:   "VAR_BINARY",
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	if s, ok := kindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Type describes a scalar type. Types are immutable and compared by value.
// Width is only set for [KindFixedBinary].
type Type struct {
	Kind  Kind
	Width int
}

// Types of every kind except FixedBinary, which is parameterized by
// [FixedBinary].
var (
	Int8      = Type{Kind: KindInt8}
	Int16     = Type{Kind: KindInt16}
	Int32     = Type{Kind: KindInt32}
	Int64     = Type{Kind: KindInt64}
	UInt8     = Type{Kind: KindUInt8}
	UInt16    = Type{Kind: KindUInt16}
	UInt32    = Type{Kind: KindUInt32}
	UInt64    = Type{Kind: KindUInt64}
	Float32   = Type{Kind: KindFloat32}
	Float64   = Type{Kind: KindFloat64}
	Bool      = Type{Kind: KindBool}
	VarBinary = Type{Kind: KindVarBinary}
)

// FixedBinary returns the type of byte strings of exactly n bytes.
func FixedBinary(n int) Type { return Type{Kind: KindFixedBinary, Width: n} }

// ViewSize is the size of one VarBinary slot: a uint32 offset into the data
// heap followed by a uint32 length.
const ViewSize = 8

// Valid reports whether t describes a supported type.
func (t Type) Valid() bool {
	switch t.Kind {
	case KindInvalid:
		return false
	case KindFixedBinary:
		return t.Width > 0
	default:
		_, known := kindStrings[t.Kind]
		return known && t.Width == 0
	}
}

// ElementWidth returns the number of bytes one element occupies in the
// primary buffer of a vector of type t.
func (t Type) ElementWidth() int {
	switch t.Kind {
	case KindInt8, KindUInt8, KindBool:
		return 1
	case KindInt16, KindUInt16:
		return 2
	case KindInt32, KindUInt32, KindFloat32:
		return 4
	case KindInt64, KindUInt64, KindFloat64:
		return 8
	case KindFixedBinary:
		return t.Width
	case KindVarBinary:
		return ViewSize
	default:
		return 0
	}
}

// IsNumeric reports whether t is an integer or floating point type.
func (t Type) IsNumeric() bool { return t.IsInteger() || t.IsFloat() }

// IsInteger reports whether t is a fixed-width integer type.
func (t Type) IsInteger() bool {
	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64,
		KindUInt8, KindUInt16, KindUInt32, KindUInt64:
		return true
	}
	return false
}

// IsSigned reports whether t is a signed integer type.
func (t Type) IsSigned() bool {
	switch t.Kind {
	case KindInt8, KindInt16, KindInt32, KindInt64:
		return true
	}
	return false
}

// IsFloat reports whether t is a floating point type.
func (t Type) IsFloat() bool { return t.Kind == KindFloat32 || t.Kind == KindFloat64 }

// IsBinary reports whether t is a fixed or variable-length byte string.
func (t Type) IsBinary() bool { return t.Kind == KindFixedBinary || t.Kind == KindVarBinary }

// String returns the string representation of t, e.g. INT32 or
// FIXED_BINARY(16).
func (t Type) String() string {
	if t.Kind == KindFixedBinary {
		return fmt.Sprintf("%s(%d)", t.Kind, t.Width)
	}
	return t.Kind.String()
}

// ParseType parses the output of [Type.String].
func ParseType(s string) (Type, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if rest, ok := strings.CutPrefix(s, KindFixedBinary.String()); ok {
		inner, ok := strings.CutPrefix(rest, "(")
		if ok {
			inner, ok = strings.CutSuffix(inner, ")")
		}
		if !ok {
			return Type{}, errs.Newf(errs.ErrInvalidArgument, "invalid type %q: missing width", s)
		}
		n, err := strconv.Atoi(inner)
		if err != nil || n <= 0 {
			return Type{}, errs.Newf(errs.ErrInvalidArgument, "invalid type %q: bad width", s)
		}
		return FixedBinary(n), nil
	}
	for k, name := range kindStrings {
		if k != KindInvalid && k != KindFixedBinary && name == s {
			return Type{Kind: k}, nil
		}
	}
	return Type{}, errs.Newf(errs.ErrInvalidArgument, "unknown type %q", s)
}
