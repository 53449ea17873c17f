package executor

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/memory"
)

// Source produces the batches read by a [Scan]. Every batch must conform to
// Schema. Read returns EOF when the source is exhausted. Ownership of
// returned batches passes to the caller.
type Source interface {
	Schema() *columnar.Schema
	Read(ctx context.Context) (*columnar.Batch, error)
	Close() error
}

// BufferedSource is a source that returns a fixed set of batches in order.
// It serves as a simple source for tests and data injection.
type BufferedSource struct {
	schema  *columnar.Schema
	batches []*columnar.Batch
	current int
}

var _ Source = (*BufferedSource)(nil)

// NewBufferedSource returns a source over batches. The source takes
// ownership of the batches; batches that are never read are released on
// Close.
func NewBufferedSource(schema *columnar.Schema, batches ...*columnar.Batch) *BufferedSource {
	return &BufferedSource{schema: schema, batches: batches}
}

// Schema implements [Source].
func (s *BufferedSource) Schema() *columnar.Schema { return s.schema }

// Read implements [Source].
func (s *BufferedSource) Read(_ context.Context) (*columnar.Batch, error) {
	if s.current >= len(s.batches) {
		return nil, EOF
	}
	b := s.batches[s.current]
	s.batches[s.current] = nil
	s.current++
	return b, nil
}

// Close implements [Source].
func (s *BufferedSource) Close() error {
	for _, b := range s.batches[s.current:] {
		b.Release()
	}
	s.batches = nil
	s.current = 0
	return nil
}

// ArrowSource reads batches from an Arrow record reader. Records are copied
// into batches allocated from the source's allocator.
type ArrowSource struct {
	alloc  *memory.Allocator
	reader array.RecordReader
	schema *columnar.Schema
}

var _ Source = (*ArrowSource)(nil)

// NewArrowSource returns a source reading from reader. A nil alloc uses the
// allocator of the pipeline reading the source. The source takes ownership
// of reader.
func NewArrowSource(alloc *memory.Allocator, reader array.RecordReader) (*ArrowSource, error) {
	schema, err := columnar.SchemaFromArrow(reader.Schema())
	if err != nil {
		return nil, err
	}
	return &ArrowSource{alloc: alloc, reader: reader, schema: schema}, nil
}

// Schema implements [Source].
func (s *ArrowSource) Schema() *columnar.Schema { return s.schema }

// Read implements [Source].
func (s *ArrowSource) Read(ctx context.Context) (*columnar.Batch, error) {
	if s.reader == nil || !s.reader.Next() {
		if s.reader != nil {
			if err := s.reader.Err(); err != nil {
				return nil, err
			}
		}
		return nil, EOF
	}

	alloc := s.alloc
	if alloc == nil {
		alloc = ResourcesFromContext(ctx).Allocator
	}
	b, err := columnar.BatchFromArrow(alloc, s.reader.Record())
	if err != nil {
		return nil, err
	}
	// Share one schema pointer across batches so batch pools can key on it.
	out, err := columnar.NewBatchFromVectors(s.schema, b.NumRows(), b.Columns())
	if err != nil {
		b.Release()
		return nil, err
	}
	return out, nil
}

// Close implements [Source].
func (s *ArrowSource) Close() error {
	if s.reader != nil {
		s.reader.Release()
		s.reader = nil
	}
	return nil
}
