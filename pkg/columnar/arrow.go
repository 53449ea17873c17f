package columnar

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// ArrowSchema converts s into an Arrow schema.
func ArrowSchema(s *Schema) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(s.fields))
	for i, f := range s.fields {
		dt, err := datatype.ToArrow(f.Type)
		if err != nil {
			return nil, errs.Newf(errs.ErrTypeMismatch, "field %q: %v", f.Name, err)
		}
		fields[i] = arrow.Field{Name: f.Name, Type: dt, Nullable: f.Nullable}
	}
	return arrow.NewSchema(fields, nil), nil
}

// SchemaFromArrow converts an Arrow schema into a [Schema].
func SchemaFromArrow(s *arrow.Schema) (*Schema, error) {
	fields := make([]Field, s.NumFields())
	for i, f := range s.Fields() {
		t, err := datatype.FromArrow(f.Type)
		if err != nil {
			return nil, errs.Newf(errs.ErrTypeMismatch, "field %q: %v", f.Name, err)
		}
		fields[i] = Field{Name: f.Name, Type: t, Nullable: f.Nullable}
	}
	return NewSchema(fields...)
}

// ToArrow copies b into an Arrow record batch allocated from mem. The
// caller must release the returned record batch.
func (b *Batch) ToArrow(mem arrowmem.Allocator) (arrow.RecordBatch, error) {
	schema, err := ArrowSchema(b.schema)
	if err != nil {
		return nil, err
	}

	arrs := make([]arrow.Array, 0, len(b.cols))
	defer func() {
		for _, arr := range arrs {
			arr.Release()
		}
	}()

	for i, col := range b.cols {
		builder := array.NewBuilder(mem, schema.Field(i).Type)
		builder.Reserve(b.rows)
		if err := appendToBuilder(builder, col); err != nil {
			builder.Release()
			return nil, err
		}
		arrs = append(arrs, builder.NewArray())
		builder.Release()
	}
	return array.NewRecordBatch(schema, arrs, int64(b.rows)), nil
}

func appendToBuilder(builder array.Builder, v *Vector) error {
	for i := range v.Len() {
		if v.IsNull(i) {
			builder.AppendNull()
			continue
		}
		j := v.offset + i
		switch builder := builder.(type) {
		case *array.Int8Builder:
			builder.Append(memory.Cast[int8](v.data)[j])
		case *array.Int16Builder:
			builder.Append(memory.Cast[int16](v.data)[j])
		case *array.Int32Builder:
			builder.Append(memory.Cast[int32](v.data)[j])
		case *array.Int64Builder:
			builder.Append(memory.Cast[int64](v.data)[j])
		case *array.Uint8Builder:
			builder.Append(v.data[j])
		case *array.Uint16Builder:
			builder.Append(memory.Cast[uint16](v.data)[j])
		case *array.Uint32Builder:
			builder.Append(memory.Cast[uint32](v.data)[j])
		case *array.Uint64Builder:
			builder.Append(memory.Cast[uint64](v.data)[j])
		case *array.Float32Builder:
			builder.Append(memory.Cast[float32](v.data)[j])
		case *array.Float64Builder:
			builder.Append(memory.Cast[float64](v.data)[j])
		case *array.BooleanBuilder:
			builder.Append(v.Bool(i))
		case *array.FixedSizeBinaryBuilder:
			builder.Append(v.Bytes(i))
		case *array.BinaryBuilder:
			builder.Append(v.Bytes(i))
		default:
			return errs.Newf(errs.ErrTypeMismatch, "unsupported arrow builder %T", builder)
		}
	}
	return nil
}

// BatchFromArrow copies an Arrow record batch into a new batch allocated from
// alloc. Arrow strings become VarBinary columns.
func BatchFromArrow(alloc *memory.Allocator, rec arrow.RecordBatch) (*Batch, error) {
	schema, err := SchemaFromArrow(rec.Schema())
	if err != nil {
		return nil, err
	}
	rows := int(rec.NumRows())
	b, err := NewBatch(alloc, schema, rows)
	if err != nil {
		return nil, err
	}
	for i, arr := range rec.Columns() {
		if err := copyFromArrow(b.cols[i], arr); err != nil {
			b.Release()
			return nil, fmt.Errorf("column %q: %w", schema.fields[i].Name, err)
		}
	}
	return b, nil
}

func copyFromArrow(dst *Vector, arr arrow.Array) error {
	if arr.NullN() > 0 && !dst.Nullable() {
		return errs.Newf(errs.ErrNullNotAllowed, "arrow column holds %d nulls", arr.NullN())
	}
	for i := range arr.Len() {
		if arr.IsNull(i) {
			dst.nulls.Set(i, true)
			continue
		}
		switch arr := arr.(type) {
		case *array.Int8:
			memory.Cast[int8](dst.data)[i] = arr.Value(i)
		case *array.Int16:
			memory.Cast[int16](dst.data)[i] = arr.Value(i)
		case *array.Int32:
			memory.Cast[int32](dst.data)[i] = arr.Value(i)
		case *array.Int64:
			memory.Cast[int64](dst.data)[i] = arr.Value(i)
		case *array.Uint8:
			dst.data[i] = arr.Value(i)
		case *array.Uint16:
			memory.Cast[uint16](dst.data)[i] = arr.Value(i)
		case *array.Uint32:
			memory.Cast[uint32](dst.data)[i] = arr.Value(i)
		case *array.Uint64:
			memory.Cast[uint64](dst.data)[i] = arr.Value(i)
		case *array.Float32:
			memory.Cast[float32](dst.data)[i] = arr.Value(i)
		case *array.Float64:
			memory.Cast[float64](dst.data)[i] = arr.Value(i)
		case *array.Boolean:
			if arr.Value(i) {
				dst.data[i] = 1
			}
		case *array.FixedSizeBinary:
			if err := dst.putBytes(i, arr.Value(i)); err != nil {
				return err
			}
		case *array.Binary:
			if err := dst.putBytes(i, arr.Value(i)); err != nil {
				return err
			}
		case *array.String:
			if err := dst.putBytes(i, []byte(arr.Value(i))); err != nil {
				return err
			}
		default:
			return errs.Newf(errs.ErrTypeMismatch, "unsupported arrow array %T", arr)
		}
	}
	return nil
}
