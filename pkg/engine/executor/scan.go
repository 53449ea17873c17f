package executor

import (
	"context"
	"fmt"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/errs"
)

// Scan produces the batches of a [Source] unchanged.
type Scan struct {
	lifecycle
	source Source
}

var _ Operator = (*Scan)(nil)

// NewScan returns a scan over source. The scan takes ownership of source and
// closes it on Close.
func NewScan(source Source) *Scan {
	return &Scan{lifecycle: newLifecycle("scan"), source: source}
}

// Schema implements [Operator].
func (s *Scan) Schema() *columnar.Schema { return s.source.Schema() }

// Open implements [Operator].
func (s *Scan) Open(ctx context.Context) error {
	return s.open(ctx)
}

// Next implements [Operator].
func (s *Scan) Next(ctx context.Context) (*columnar.Batch, error) {
	if err := s.next(); err != nil {
		return nil, err
	}
	batch, err := s.source.Read(ctx)
	if err != nil {
		return nil, err
	}
	if !batch.Schema().Equal(s.source.Schema()) {
		batch.Release()
		return nil, errs.Newf(errs.ErrSchemaMismatch, "scan: source produced batch with schema %s, expected %s", batch.Schema(), s.source.Schema())
	}
	if err := batch.Validate(); err != nil {
		batch.Release()
		return nil, fmt.Errorf("scan: %w", err)
	}
	return batch, nil
}

// Close implements [Operator].
func (s *Scan) Close() error {
	if first, _ := s.close(); !first {
		return nil
	}
	return s.source.Close()
}
