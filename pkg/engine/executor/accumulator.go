package executor

import (
	"fmt"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
)

// AggregateFunc denotes the accumulator computed by an [Aggregation].
type AggregateFunc int

// Recognized values of [AggregateFunc].
const (
	// AggInvalid indicates an invalid aggregate function.
	AggInvalid AggregateFunc = iota

	AggSum       // Sum of non-null values.
	AggCount     // Number of non-null values.
	AggCountRows // Number of rows, nulls included.
	AggMin       // Smallest non-null value.
	AggMax       // Largest non-null value.
	AggAvg       // Arithmetic mean of non-null values.
)

var aggregateFuncStrings = map[AggregateFunc]string{
	AggInvalid: "invalid",

	AggSum:       "SUM",
	AggCount:     "COUNT",
	AggCountRows: "COUNT_ROWS",
	AggMin:       "MIN",
	AggMax:       "MAX",
	AggAvg:       "AVG",
}

// String returns the string representation of the AggregateFunc.
func (f AggregateFunc) String() string {
	if s, ok := aggregateFuncStrings[f]; ok {
		return s
	}
	return fmt.Sprintf("AggregateFunc(%d)", f)
}

// aggregateResult returns the type and nullability of the result of f over
// values of type t.
//
// SUM over signed integers is an INT64, over unsigned integers an UINT64 and
// over floating point numbers a FLOAT64. Integer sums wrap around on
// overflow. SUM, MIN, MAX and AVG are null for groups without non-null
// values; the counts are never null.
func aggregateResult(f AggregateFunc, t datatype.Type) (datatype.Type, bool, error) {
	switch f {
	case AggCount, AggCountRows:
		return datatype.Int64, false, nil
	case AggSum:
		switch {
		case t.IsSigned():
			return datatype.Int64, true, nil
		case t.IsInteger():
			return datatype.UInt64, true, nil
		case t.IsFloat():
			return datatype.Float64, true, nil
		}
	case AggAvg:
		if t.IsNumeric() {
			return datatype.Float64, true, nil
		}
	case AggMin, AggMax:
		if t.Valid() {
			return t, true, nil
		}
	default:
		return datatype.Type{}, false, errs.Newf(errs.ErrNotImplemented, "aggregate function %s", f)
	}
	return datatype.Type{}, false, errs.Newf(errs.ErrTypeMismatch, "%s is not defined for %s", f, t)
}

// accumulator holds the running state of one aggregate function for every
// group.
type accumulator interface {
	// grow makes room for groups up to n.
	grow(n int)
	// update folds row i of in into the state of groups[i]. in is nil for
	// COUNT_ROWS.
	update(groups []int, in *columnar.Vector) error
	// result returns the final value of a group.
	result(group int) datatype.Value
}

func newAccumulator(f AggregateFunc, in, out datatype.Type) accumulator {
	switch f {
	case AggSum:
		return &sumAccumulator{typ: out}
	case AggCount:
		return &countAccumulator{}
	case AggCountRows:
		return &countAccumulator{rows: true}
	case AggMin:
		return &extremumAccumulator{typ: in, want: -1}
	case AggMax:
		return &extremumAccumulator{typ: in, want: 1}
	case AggAvg:
		return &avgAccumulator{}
	}
	panic(fmt.Sprintf("unsupported aggregate function %s", f))
}

type sumAccumulator struct {
	typ  datatype.Type
	i    []int64
	u    []uint64
	f    []float64
	seen []bool
}

func (a *sumAccumulator) grow(n int) {
	for len(a.seen) < n {
		a.i = append(a.i, 0)
		a.u = append(a.u, 0)
		a.f = append(a.f, 0)
		a.seen = append(a.seen, false)
	}
}

func (a *sumAccumulator) update(groups []int, in *columnar.Vector) error {
	for i, g := range groups {
		v, err := in.Get(i)
		if err != nil {
			return err
		}
		if v.IsNull() {
			continue
		}
		a.seen[g] = true
		switch a.typ {
		case datatype.Int64:
			a.i[g] += v.Int64()
		case datatype.UInt64:
			a.u[g] += v.UInt64()
		default:
			a.f[g] += v.Float64()
		}
	}
	return nil
}

func (a *sumAccumulator) result(g int) datatype.Value {
	if !a.seen[g] {
		return datatype.NullOf(a.typ)
	}
	switch a.typ {
	case datatype.Int64:
		return datatype.NewInt64(a.i[g])
	case datatype.UInt64:
		return datatype.NewUInt64(a.u[g])
	default:
		return datatype.NewFloat64(a.f[g])
	}
}

type countAccumulator struct {
	rows bool
	n    []int64
}

func (a *countAccumulator) grow(n int) {
	for len(a.n) < n {
		a.n = append(a.n, 0)
	}
}

func (a *countAccumulator) update(groups []int, in *columnar.Vector) error {
	for i, g := range groups {
		if a.rows || !in.IsNull(i) {
			a.n[g]++
		}
	}
	return nil
}

func (a *countAccumulator) result(g int) datatype.Value { return datatype.NewInt64(a.n[g]) }

// extremumAccumulator keeps the value v of each group for which
// v.Compare(other) == want holds against every other value.
type extremumAccumulator struct {
	typ  datatype.Type
	want int
	vals []datatype.Value
}

func (a *extremumAccumulator) grow(n int) {
	for len(a.vals) < n {
		a.vals = append(a.vals, datatype.NullOf(a.typ))
	}
}

func (a *extremumAccumulator) update(groups []int, in *columnar.Vector) error {
	for i, g := range groups {
		v, err := in.Get(i)
		if err != nil {
			return err
		}
		if v.IsNull() {
			continue
		}
		if cur := a.vals[g]; cur.IsNull() || v.Compare(cur) == a.want {
			a.vals[g] = v.Clone()
		}
	}
	return nil
}

func (a *extremumAccumulator) result(g int) datatype.Value { return a.vals[g] }

type avgAccumulator struct {
	sum []float64
	n   []int64
}

func (a *avgAccumulator) grow(n int) {
	for len(a.n) < n {
		a.sum = append(a.sum, 0)
		a.n = append(a.n, 0)
	}
}

func (a *avgAccumulator) update(groups []int, in *columnar.Vector) error {
	signed, unsigned := in.Type().IsSigned(), in.Type().IsInteger()
	for i, g := range groups {
		v, err := in.Get(i)
		if err != nil {
			return err
		}
		if v.IsNull() {
			continue
		}
		switch {
		case signed:
			a.sum[g] += float64(v.Int64())
		case unsigned:
			a.sum[g] += float64(v.UInt64())
		default:
			a.sum[g] += v.Float64()
		}
		a.n[g]++
	}
	return nil
}

func (a *avgAccumulator) result(g int) datatype.Value {
	if a.n[g] == 0 {
		return datatype.NullOf(datatype.Float64)
	}
	return datatype.NewFloat64(a.sum[g] / float64(a.n[g]))
}
