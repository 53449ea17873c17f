package columnar

import (
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// Values returns the elements of a fixed-width vector as a slice of T. T
// must match the physical layout of the vector's type (uint8 for Bool). The
// slice aliases vector memory and must only be written to for vectors owned
// by the caller.
func Values[T any](v *Vector) []T {
	return memory.Cast[T](v.data)[v.offset : v.offset+v.length]
}

// AppendFrom appends the elements of src at the given indices to v. An index
// of -1 appends a null. The elements are copied.
func (v *Vector) AppendFrom(src *Vector, indices []int) error {
	if err := v.checkAppend(src, len(indices)); err != nil {
		return err
	}

	base := v.length
	if err := v.SetLen(base + len(indices)); err != nil {
		return err
	}
	w := v.typ.ElementWidth()

	for k, idx := range indices {
		i := base + k
		if idx >= src.length {
			v.length = base
			return errs.Newf(errs.ErrOutOfBounds, "index %d out of range [0, %d)", idx, src.length)
		}
		if idx < 0 || src.IsNull(idx) {
			if !v.nullable {
				v.length = base
				return errs.Newf(errs.ErrNullNotAllowed, "vector of type %s is not nullable", v.typ)
			}
			v.nulls.Set(i, true)
			continue
		}

		if v.heap != nil {
			if err := v.putBytes(i, src.Bytes(idx)); err != nil {
				v.length = base
				return err
			}
			continue
		}
		j := src.offset + idx
		copy(v.data[i*w:(i+1)*w], src.data[j*w:(j+1)*w])
	}
	return nil
}

// AppendRange appends n elements of src starting at start to v.
func (v *Vector) AppendRange(src *Vector, start, n int) error {
	if err := v.checkAppend(src, n); err != nil {
		return err
	}
	if start < 0 || n < 0 || start+n > src.length {
		return errs.Newf(errs.ErrOutOfBounds, "range [%d, %d) out of range [0, %d)", start, start+n, src.length)
	}
	if !v.nullable && src.nullable && src.nulls.Slice(src.offset+start, n).Count() > 0 {
		return errs.Newf(errs.ErrNullNotAllowed, "vector of type %s is not nullable", v.typ)
	}

	base := v.length
	if err := v.SetLen(base + n); err != nil {
		return err
	}
	if v.heap != nil {
		for k := range n {
			if src.IsNull(start + k) {
				continue
			}
			if err := v.putBytes(base+k, src.Bytes(start+k)); err != nil {
				v.length = base
				return err
			}
		}
	} else {
		w := v.typ.ElementWidth()
		j := src.offset + start
		copy(v.data[base*w:(base+n)*w], src.data[j*w:(j+n)*w])
	}
	if v.nullable && src.nullable {
		v.nulls.CopyFrom(src.nulls, src.offset+start, base, n)
	}
	return nil
}

func (v *Vector) checkAppend(src *Vector, n int) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	if src.typ != v.typ {
		return errs.Newf(errs.ErrTypeMismatch, "cannot append %s elements to %s vector", src.typ, v.typ)
	}
	if v.length+n > v.capacity {
		return errs.Newf(errs.ErrOutOfBounds, "appending %d elements to vector of length %d exceeds capacity %d", n, v.length, v.capacity)
	}
	return nil
}
