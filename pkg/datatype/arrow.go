package datatype

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/grafana/vexec/pkg/errs"
)

var toArrow = map[Kind]arrow.DataType{
	KindInt8:      arrow.PrimitiveTypes.Int8,
	KindInt16:     arrow.PrimitiveTypes.Int16,
	KindInt32:     arrow.PrimitiveTypes.Int32,
	KindInt64:     arrow.PrimitiveTypes.Int64,
	KindUInt8:     arrow.PrimitiveTypes.Uint8,
	KindUInt16:    arrow.PrimitiveTypes.Uint16,
	KindUInt32:    arrow.PrimitiveTypes.Uint32,
	KindUInt64:    arrow.PrimitiveTypes.Uint64,
	KindFloat32:   arrow.PrimitiveTypes.Float32,
	KindFloat64:   arrow.PrimitiveTypes.Float64,
	KindBool:      arrow.FixedWidthTypes.Boolean,
	KindVarBinary: arrow.BinaryTypes.Binary,
}

var fromArrow = map[arrow.Type]Type{
	arrow.INT8:    Int8,
	arrow.INT16:   Int16,
	arrow.INT32:   Int32,
	arrow.INT64:   Int64,
	arrow.UINT8:   UInt8,
	arrow.UINT16:  UInt16,
	arrow.UINT32:  UInt32,
	arrow.UINT64:  UInt64,
	arrow.FLOAT32: Float32,
	arrow.FLOAT64: Float64,
	arrow.BOOL:    Bool,
	arrow.BINARY:  VarBinary,
	arrow.STRING:  VarBinary,
}

// ToArrow returns the Arrow data type with the same logical content as t.
func ToArrow(t Type) (arrow.DataType, error) {
	if t.Kind == KindFixedBinary && t.Width > 0 {
		return &arrow.FixedSizeBinaryType{ByteWidth: t.Width}, nil
	}
	if dt, ok := toArrow[t.Kind]; ok {
		return dt, nil
	}
	return nil, errs.Newf(errs.ErrTypeMismatch, "no arrow type for %s", t)
}

// FromArrow returns the type matching an Arrow data type. Arrow strings map
// to VarBinary.
func FromArrow(dt arrow.DataType) (Type, error) {
	if fsb, ok := dt.(*arrow.FixedSizeBinaryType); ok {
		return FixedBinary(fsb.ByteWidth), nil
	}
	if t, ok := fromArrow[dt.ID()]; ok {
		return t, nil
	}
	return Type{}, errs.Newf(errs.ErrTypeMismatch, "unsupported arrow type %s", dt)
}
