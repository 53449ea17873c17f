package compute

import (
	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// Take returns a vector holding the elements of in at the given indices. An
// index of -1 produces a null; the result is nullable if in is nullable or
// any index is -1.
func Take(alloc *memory.Allocator, in *columnar.Vector, indices []int) (*columnar.Vector, error) {
	nullable := in.Nullable()
	for _, idx := range indices {
		if idx < 0 {
			nullable = true
			break
		}
	}

	out, err := columnar.NewVector(alloc, in.Type(), len(indices), nullable)
	if err != nil {
		return nil, err
	}
	if err := out.AppendFrom(in, indices); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// TakeInto appends the elements of in at the given indices to out. out must
// have room for len(indices) more elements.
func TakeInto(out, in *columnar.Vector, indices []int) error {
	return out.AppendFrom(in, indices)
}

// Selection returns the indices of all elements of mask that are true and
// not null. mask must be a Bool vector.
func Selection(mask *columnar.Vector, buf []int) ([]int, error) {
	if mask.Type() != datatype.Bool {
		return nil, errs.Newf(errs.ErrTypeMismatch, "selection mask must be BOOL, got %s", mask.Type())
	}
	buf = buf[:0]
	values := columnar.Values[uint8](mask)
	for i, v := range values {
		if v != 0 && !mask.IsNull(i) {
			buf = append(buf, i)
		}
	}
	return buf, nil
}

// Filter returns the elements of in for which mask is true. Rows where mask
// is false or null are dropped.
func Filter(alloc *memory.Allocator, in, mask *columnar.Vector) (*columnar.Vector, error) {
	if in.Len() != mask.Len() {
		return nil, errs.Newf(errs.ErrOutOfBounds, "mask length %d does not match input length %d", mask.Len(), in.Len())
	}
	indices, err := Selection(mask, nil)
	if err != nil {
		return nil, err
	}

	out, err := columnar.NewVector(alloc, in.Type(), len(indices), in.Nullable())
	if err != nil {
		return nil, err
	}
	if err := out.AppendFrom(in, indices); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// Concat returns the elements of all inputs in order. All inputs must share
// a type; the result is nullable if any input is.
func Concat(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	if len(inputs) == 0 {
		return nil, errs.Newf(errs.ErrOutOfBounds, "concat requires at least one input")
	}

	var (
		total    int
		nullable bool
	)
	for _, in := range inputs {
		if in.Type() != inputs[0].Type() {
			return nil, errs.Newf(errs.ErrTypeMismatch, "cannot concat %s and %s", inputs[0].Type(), in.Type())
		}
		total += in.Len()
		nullable = nullable || in.Nullable()
	}

	out, err := columnar.NewVector(alloc, inputs[0].Type(), total, nullable)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if err := out.AppendRange(in, 0, in.Len()); err != nil {
			out.Release()
			return nil, err
		}
	}
	return out, nil
}

// Broadcast returns a vector of n copies of value. The result is nullable
// only if value is null.
func Broadcast(alloc *memory.Allocator, value datatype.Value, n int) (*columnar.Vector, error) {
	out, err := newOutput(alloc, value.Type(), n, value.IsNull())
	if err != nil {
		return nil, err
	}
	if value.IsNull() {
		out.NullBitmap().SetRange(0, n, true)
		return out, nil
	}
	for i := range n {
		if err := out.Set(i, value); err != nil {
			out.Release()
			return nil, err
		}
	}
	return out, nil
}
