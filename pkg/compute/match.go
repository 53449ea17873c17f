package compute

import (
	"bytes"

	"github.com/grafana/regexp"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// Contains reports for each pair of elements whether the haystack on the
// left contains the needle on the right.
//
// Special cases:
//
//   - If either side is null, the result is null.
//   - An empty needle matches every haystack.
func Contains(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	return contains(alloc, BinOpKindMatchStr, inputs)
}

// NotContains is the negation of [Contains].
func NotContains(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
	return contains(alloc, BinOpKindNotMatchStr, inputs)
}

func contains(alloc *memory.Allocator, op BinOpKind, inputs []*columnar.Vector) (*columnar.Vector, error) {
	if err := checkArity(op.String(), inputs, 2); err != nil {
		return nil, err
	}
	haystack, needle := inputs[0], inputs[1]
	typ, nullable, err := BinaryResult(op, haystack.Type(), needle.Type(), haystack.Nullable(), needle.Nullable())
	if err != nil {
		return nil, err
	}

	out, err := newOutput(alloc, typ, haystack.Len(), nullable)
	if err != nil {
		return nil, err
	}
	propagateNulls(out, haystack, needle)

	want := op == BinOpKindMatchStr
	ov := columnar.Values[uint8](out)
	for i := range ov {
		if haystack.IsNull(i) || needle.IsNull(i) {
			continue
		}
		ov[i] = b2u(bytes.Contains(haystack.Bytes(i), needle.Bytes(i)) == want)
	}
	return out, nil
}

// MatchRegexp reports for each element of a binary vector whether it
// matches re. If negate is true the result is inverted. Null elements
// produce null.
func MatchRegexp(alloc *memory.Allocator, in *columnar.Vector, re *regexp.Regexp, negate bool) (*columnar.Vector, error) {
	if !in.Type().IsBinary() {
		return nil, errs.Newf(errs.ErrTypeMismatch, "regular expressions match binary values, got %s", in.Type())
	}

	out, err := newOutput(alloc, datatype.Bool, in.Len(), in.Nullable())
	if err != nil {
		return nil, err
	}
	propagateNulls(out, in)

	ov := columnar.Values[uint8](out)
	for i := range ov {
		if in.IsNull(i) {
			continue
		}
		ov[i] = b2u(re.Match(in.Bytes(i)) != negate)
	}
	return out, nil
}
