package executor

import (
	"context"

	"github.com/grafana/vexec/pkg/columnar"
)

// Limit skips the first offset rows of its input and emits at most limit
// rows after that.
type Limit struct {
	lifecycle
	child Operator
	res   Resources

	// offsetRemaining and limitRemaining shrink as rows pass, since both may
	// cross batch boundaries.
	offsetRemaining int
	limitRemaining  int
}

var _ Operator = (*Limit)(nil)

// NewLimit returns a limit over child.
func NewLimit(child Operator, offset, limit int) *Limit {
	return &Limit{
		lifecycle:       newLifecycle("limit", child),
		child:           child,
		offsetRemaining: max(offset, 0),
		limitRemaining:  max(limit, 0),
	}
}

// Schema implements [Operator].
func (l *Limit) Schema() *columnar.Schema { return l.child.Schema() }

// Open implements [Operator].
func (l *Limit) Open(ctx context.Context) error {
	if err := l.open(ctx); err != nil {
		return err
	}
	l.res = ResourcesFromContext(ctx)
	return nil
}

// Next implements [Operator]. Limit stops pulling its input once the limit
// is reached.
func (l *Limit) Next(ctx context.Context) (*columnar.Batch, error) {
	if err := l.next(); err != nil {
		return nil, err
	}

	var (
		batch      *columnar.Batch
		start, end int
	)
	// Batches that fall entirely within the offset are skipped.
	for length := 0; length == 0; {
		if l.limitRemaining <= 0 {
			return nil, EOF
		}
		var err error
		if batch, err = l.child.Next(ctx); err != nil {
			return nil, err
		}

		start = min(l.offsetRemaining, batch.NumRows())
		end = min(start+l.limitRemaining, batch.NumRows())
		length = end - start
		l.offsetRemaining -= start
		l.limitRemaining -= length

		if length == 0 && batch.NumRows() == 0 {
			return batch, nil
		}
		if length == 0 {
			batch.Release()
		}
	}

	if start == 0 && end == batch.NumRows() {
		return batch, nil
	}
	defer batch.Release()

	out, err := l.res.newBatch(l.Schema(), end-start)
	if err != nil {
		return nil, err
	}
	for i, col := range batch.Columns() {
		if err := out.Column(i).AppendRange(col, start, end-start); err != nil {
			out.Release()
			return nil, err
		}
	}
	if err := out.SetNumRows(end - start); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// Close implements [Operator].
func (l *Limit) Close() error {
	_, err := l.close()
	return err
}
