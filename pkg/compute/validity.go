package compute

import (
	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// newOutput allocates an output vector of n elements.
func newOutput(alloc *memory.Allocator, t datatype.Type, n int, nullable bool) (*columnar.Vector, error) {
	out, err := columnar.NewVector(alloc, t, n, nullable)
	if err != nil {
		return nil, err
	}
	if err := out.SetLen(n); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// propagateNulls marks every slot of out as null that is null in any of the
// inputs. out must be nullable if any input is.
func propagateNulls(out *columnar.Vector, inputs ...*columnar.Vector) {
	dst := out.NullBitmap()
	if dst.Len() == 0 {
		return
	}

	first := true
	for _, in := range inputs {
		if !in.Nullable() || in.NullCount() == 0 {
			continue
		}
		if first {
			dst.CopyFrom(in.NullBitmap(), 0, 0, dst.Len())
			first = false
			continue
		}
		dst.Or(dst, in.NullBitmap(), dst.Len())
	}
}

// checkArity validates the inputs passed to a kernel.
func checkArity(op string, inputs []*columnar.Vector, n int) error {
	if len(inputs) != n {
		return errs.Newf(errs.ErrTypeMismatch, "%s expects %d inputs, got %d", op, n, len(inputs))
	}
	for _, in := range inputs[1:] {
		if in.Len() != inputs[0].Len() {
			return errs.Newf(errs.ErrOutOfBounds, "%s: input length mismatch: %d != %d", op, inputs[0].Len(), in.Len())
		}
	}
	return nil
}
