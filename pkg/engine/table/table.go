// Package table implements an in-memory columnar table that can be filled
// row by row or batch by batch and read back through an executor source.
package table

import (
	"context"
	"fmt"

	"go.uber.org/atomic"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/engine/executor"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

const minCapacity = 64

// Table holds rows of a fixed schema in one vector per column. Columns grow
// as rows are appended.
//
// A table must not be modified while a [Source] over it is open; Append and
// Appender return [errs.ErrInvalidState] in that case. A table is not safe
// for concurrent modification.
type Table struct {
	alloc   *memory.Allocator
	schema  *columnar.Schema
	cols    []*columnar.Vector
	rows    int
	readers atomic.Int32
}

// New returns an empty table with room for capacity rows. A nil alloc uses
// the default allocator.
func New(alloc *memory.Allocator, schema *columnar.Schema, capacity int) (*Table, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator()
	}
	t := &Table{alloc: alloc, schema: schema, cols: make([]*columnar.Vector, schema.NumFields())}
	for i, f := range schema.Fields() {
		v, err := columnar.NewVector(alloc, f.Type, max(capacity, 0), f.Nullable)
		if err != nil {
			t.Release()
			return nil, err
		}
		t.cols[i] = v
	}
	return t, nil
}

// Schema returns the schema of t.
func (t *Table) Schema() *columnar.Schema { return t.schema }

// NumRows returns the number of rows in t.
func (t *Table) NumRows() int { return t.rows }

// Column returns a read-only view of column i.
func (t *Table) Column(i int) *columnar.Vector { return t.cols[i].View() }

// Row returns the values of row i.
func (t *Table) Row(i int) ([]datatype.Value, error) {
	if i < 0 || i >= t.rows {
		return nil, errs.Newf(errs.ErrOutOfBounds, "row %d out of range [0, %d)", i, t.rows)
	}
	out := make([]datatype.Value, len(t.cols))
	for j, c := range t.cols {
		v, err := c.Get(i)
		if err != nil {
			return nil, err
		}
		out[j] = v
	}
	return out, nil
}

// Append copies all rows of batch to the end of t. The batch must match the
// schema of t.
func (t *Table) Append(batch *columnar.Batch) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	if !batch.Schema().Equal(t.schema) {
		return errs.Newf(errs.ErrSchemaMismatch, "cannot append batch with schema %s to table with schema %s", batch.Schema(), t.schema)
	}
	n := batch.NumRows()
	if err := t.reserve(t.rows + n); err != nil {
		return err
	}
	for i, c := range t.cols {
		if err := c.AppendRange(batch.Column(i), 0, n); err != nil {
			t.truncate()
			return fmt.Errorf("column %q: %w", t.schema.Field(i).Name, err)
		}
	}
	t.rows += n
	return nil
}

// truncate restores every column to the row count of t after a failed
// append.
func (t *Table) truncate() {
	for _, c := range t.cols {
		if c.Len() > t.rows {
			_ = c.SetLen(t.rows)
		}
	}
}

// reserve grows the columns of t to hold at least n rows. On failure the
// columns of t are left untouched.
func (t *Table) reserve(n int) error {
	if len(t.cols) == 0 || n <= t.cols[0].Cap() {
		return nil
	}
	capacity := max(n, 2*t.cols[0].Cap(), minCapacity)

	grown := make([]*columnar.Vector, 0, len(t.cols))
	release := func() {
		for _, g := range grown {
			g.Release()
		}
	}
	for _, c := range t.cols {
		g, err := columnar.NewVector(t.alloc, c.Type(), capacity, c.Nullable())
		if err != nil {
			release()
			return err
		}
		grown = append(grown, g)
		if err := g.AppendRange(c, 0, c.Len()); err != nil {
			release()
			return err
		}
	}

	for i, c := range t.cols {
		c.Release()
		t.cols[i] = grown[i]
	}
	return nil
}

func (t *Table) checkWritable() error {
	if n := t.readers.Load(); n > 0 {
		return errs.Newf(errs.ErrInvalidState, "table is being read by %d sources", n)
	}
	return nil
}

// Release returns the memory of t to its allocator.
func (t *Table) Release() {
	for _, c := range t.cols {
		c.Release()
	}
	t.rows = 0
}

// RowRange selects Rows rows starting at Offset.
type RowRange struct {
	Offset int
	Rows   int
}

// Source returns a source reading all rows of t in batches of at most
// batchSize rows. A batchSize of zero selects the batch size of the
// pipeline resources.
func (t *Table) Source(batchSize int) *Source {
	s, _ := t.SourceRange(batchSize, RowRange{Rows: t.rows})
	return s
}

// SourceRange returns a source reading the rows of t in r. It returns
// [errs.ErrOutOfBounds] if r is not within t.
func (t *Table) SourceRange(batchSize int, r RowRange) (*Source, error) {
	if r.Offset < 0 || r.Rows < 0 || r.Offset+r.Rows > t.rows {
		return nil, errs.Newf(errs.ErrOutOfBounds, "range [%d, %d) out of range [0, %d)", r.Offset, r.Offset+r.Rows, t.rows)
	}
	t.readers.Inc()
	return &Source{table: t, batchSize: batchSize, pos: r.Offset, end: r.Offset + r.Rows}, nil
}

// Source reads the rows of a [Table]. Batches are read-only views of the
// table columns; no data is copied.
type Source struct {
	table     *Table
	batchSize int
	pos, end  int
	closed    bool
}

var _ executor.Source = (*Source)(nil)

// Schema implements [executor.Source].
func (s *Source) Schema() *columnar.Schema { return s.table.schema }

// Read implements [executor.Source].
func (s *Source) Read(ctx context.Context) (*columnar.Batch, error) {
	if s.closed {
		return nil, errs.Newf(errs.ErrInvalidState, "read from closed table source")
	}
	if s.pos >= s.end {
		return nil, executor.EOF
	}
	size := s.batchSize
	if size <= 0 {
		size = executor.ResourcesFromContext(ctx).BatchSize
	}
	n := min(size, s.end-s.pos)

	cols := make([]*columnar.Vector, len(s.table.cols))
	for i, c := range s.table.cols {
		view, err := c.Slice(s.pos, n)
		if err != nil {
			return nil, err
		}
		cols[i] = view
	}
	batch, err := columnar.NewBatchFromVectors(s.table.schema, n, cols)
	if err != nil {
		return nil, err
	}
	s.pos += n
	return batch, nil
}

// Close implements [executor.Source]. Closing a source allows the table to
// be modified again once no other source is open.
func (s *Source) Close() error {
	if !s.closed {
		s.closed = true
		s.table.readers.Dec()
	}
	return nil
}
