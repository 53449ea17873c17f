package columnar

import (
	"fmt"

	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// Batch is a set of equally long vectors described by a [Schema]. The batch
// owns its vectors: releasing the batch releases them.
type Batch struct {
	schema *Schema
	cols   []*Vector
	rows   int

	pool      *Pool
	capacity  int
	checkedIn bool
}

// NewBatch allocates a batch of n rows for schema. Every value starts as
// zero and not null.
func NewBatch(alloc *memory.Allocator, schema *Schema, n int) (*Batch, error) {
	cols := make([]*Vector, schema.NumFields())
	release := func() {
		for _, c := range cols {
			c.Release()
		}
	}
	for i, f := range schema.fields {
		v, err := NewVector(alloc, f.Type, n, f.Nullable)
		if err != nil {
			release()
			return nil, err
		}
		cols[i] = v
		if err := v.SetLen(n); err != nil {
			release()
			return nil, err
		}
	}
	return &Batch{schema: schema, cols: cols, rows: n, capacity: n}, nil
}

// NewBatchFromVectors wraps existing vectors into a batch of n rows. The
// batch takes ownership of cols. NewBatchFromVectors returns
// [errs.ErrSchemaMismatch] if the vectors do not match the schema.
func NewBatchFromVectors(schema *Schema, n int, cols []*Vector) (*Batch, error) {
	b := &Batch{schema: schema, cols: cols, rows: n, capacity: n}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Schema returns the schema of b.
func (b *Batch) Schema() *Schema { return b.schema }

// NumRows returns the number of rows in b.
func (b *Batch) NumRows() int { return b.rows }

// NumCols returns the number of columns in b.
func (b *Batch) NumCols() int { return len(b.cols) }

// Column returns column i.
func (b *Batch) Column(i int) *Vector { return b.cols[i] }

// Columns returns the columns of b. The returned slice must not be modified.
func (b *Batch) Columns() []*Vector { return b.cols }

// ColumnByName returns the column with the given name.
func (b *Batch) ColumnByName(name string) (*Vector, bool) {
	i, ok := b.schema.IndexOf(name)
	if !ok {
		return nil, false
	}
	return b.cols[i], true
}

// SetNumRows changes the row count of b and the length of every column.
func (b *Batch) SetNumRows(n int) error {
	for _, c := range b.cols {
		if err := c.SetLen(n); err != nil {
			return err
		}
	}
	b.rows = n
	return nil
}

// Validate checks that the columns of b agree with its schema and row count.
func (b *Batch) Validate() error {
	if len(b.cols) != b.schema.NumFields() {
		return errs.Newf(errs.ErrSchemaMismatch, "batch has %d columns, schema has %d fields", len(b.cols), b.schema.NumFields())
	}
	for i, c := range b.cols {
		f := b.schema.fields[i]
		switch {
		case c == nil:
			return errs.Newf(errs.ErrSchemaMismatch, "column %q is missing", f.Name)
		case c.Type() != f.Type:
			return errs.Newf(errs.ErrSchemaMismatch, "column %q has type %s, expected %s", f.Name, c.Type(), f.Type)
		case c.Nullable() != f.Nullable:
			return errs.Newf(errs.ErrSchemaMismatch, "column %q has nullable=%t, expected %t", f.Name, c.Nullable(), f.Nullable)
		case c.Len() != b.rows:
			return errs.Newf(errs.ErrSchemaMismatch, "column %q has %d rows, expected %d", f.Name, c.Len(), b.rows)
		}
	}
	return nil
}

// Project returns a batch holding read-only views of the columns at the
// given indices. No data is copied. The projection does not own its
// columns; releasing it is a no-op.
func (b *Batch) Project(indices []int) (*Batch, error) {
	schema, err := b.schema.Select(indices)
	if err != nil {
		return nil, err
	}
	cols := make([]*Vector, len(indices))
	for i, idx := range indices {
		cols[i] = b.cols[idx].View()
	}
	return &Batch{schema: schema, cols: cols, rows: b.rows, capacity: b.rows}, nil
}

// Slice returns a batch of read-only views covering n rows starting at
// start.
func (b *Batch) Slice(start, n int) (*Batch, error) {
	if start < 0 || n < 0 || start+n > b.rows {
		return nil, errs.Newf(errs.ErrOutOfBounds, "slice [%d, %d) out of range [0, %d)", start, start+n, b.rows)
	}
	cols := make([]*Vector, len(b.cols))
	for i, c := range b.cols {
		view, err := c.Slice(start, n)
		if err != nil {
			return nil, err
		}
		cols[i] = view
	}
	return &Batch{schema: b.schema, cols: cols, rows: n, capacity: n}, nil
}

// Clone returns a deep copy of b allocated from alloc.
func (b *Batch) Clone(alloc *memory.Allocator) (*Batch, error) {
	cols := make([]*Vector, len(b.cols))
	for i, c := range b.cols {
		clone, err := c.Clone(alloc)
		if err != nil {
			for _, c := range cols[:i] {
				c.Release()
			}
			return nil, err
		}
		cols[i] = clone
	}
	return &Batch{schema: b.schema, cols: cols, rows: b.rows, capacity: b.rows}, nil
}

// Row returns the values of row i.
func (b *Batch) Row(i int) ([]datatype.Value, error) {
	if i < 0 || i >= b.rows {
		return nil, errs.Newf(errs.ErrOutOfBounds, "row %d out of range [0, %d)", i, b.rows)
	}
	out := make([]datatype.Value, len(b.cols))
	for j, c := range b.cols {
		out[j] = c.value(i)
	}
	return out, nil
}

// Release releases the columns of b, or returns b to the pool it came from.
// Release must be called at most once per checkout and b must not be used
// afterwards.
func (b *Batch) Release() {
	if b == nil {
		return
	}
	if b.pool != nil {
		b.pool.put(b)
		return
	}
	for _, c := range b.cols {
		c.Release()
	}
}

func (b *Batch) String() string {
	return fmt.Sprintf("Batch(rows=%d, schema=%s)", b.rows, b.schema)
}
