package table

import (
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
)

// Appender adds rows to a [Table] one value at a time:
//
//	err := t.Appender().
//		AddRow().Set(datatype.NewInt64(1)).SetNull().
//		AddRow().Set(datatype.NewInt64(2)).Set(datatype.NewString("b")).
//		Err()
//
// The first error stops all further calls from having an effect and is
// reported by Err. Columns left unset in a row are zero, or null where the
// column is nullable.
type Appender struct {
	t   *Table
	col int
	err error
}

// Appender returns an appender adding rows to the end of t.
func (t *Table) Appender() *Appender {
	return &Appender{t: t, col: -1}
}

// AddRow starts a new row.
func (a *Appender) AddRow() *Appender {
	if a.err != nil {
		return a
	}
	if a.err = a.t.checkWritable(); a.err != nil {
		return a
	}
	if a.err = a.t.reserve(a.t.rows + 1); a.err != nil {
		return a
	}
	for _, c := range a.t.cols {
		if a.err = c.SetLen(a.t.rows + 1); a.err != nil {
			a.t.truncate()
			return a
		}
		if c.Nullable() {
			c.NullBitmap().Set(a.t.rows, true)
		}
	}
	a.t.rows++
	a.col = 0
	return a
}

// Set stores v in the next column of the current row.
func (a *Appender) Set(v datatype.Value) *Appender {
	if c := a.column(); c >= 0 {
		a.err = a.t.cols[c].Set(a.t.rows-1, v)
	}
	return a
}

// SetNull stores null in the next column of the current row.
func (a *Appender) SetNull() *Appender {
	if c := a.column(); c >= 0 {
		a.err = a.t.cols[c].SetNull(a.t.rows - 1)
	}
	return a
}

// column returns the index of the next column to set, or -1 if the
// appender has failed.
func (a *Appender) column() int {
	switch {
	case a.err != nil:
		return -1
	case a.col < 0:
		a.err = errs.Newf(errs.ErrInvalidState, "AddRow must be called before setting values")
		return -1
	case a.col >= len(a.t.cols):
		a.err = errs.Newf(errs.ErrOutOfBounds, "row has only %d columns", len(a.t.cols))
		return -1
	}
	if err := a.t.checkWritable(); err != nil {
		a.err = err
		return -1
	}
	a.col++
	return a.col - 1
}

// Err returns the first error encountered by a.
func (a *Appender) Err() error { return a.err }
