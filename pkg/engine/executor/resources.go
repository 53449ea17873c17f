package executor

import (
	"context"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/compute"
	"github.com/grafana/vexec/pkg/engine/expr"
	"github.com/grafana/vexec/pkg/memory"
)

// DefaultBatchSize is the capacity of batches materialised by operators when
// no batch size is configured.
const DefaultBatchSize = 1024

// Resources are the shared facilities operators allocate from. They are
// handed to an operator tree through the context passed to Open.
type Resources struct {
	Allocator *memory.Allocator
	Registry  *compute.Registry
	Pool      *columnar.Pool // optional
	BatchSize int

	// StableGroupOrder makes every [Aggregate] emit groups in first-seen
	// order, regardless of its options.
	StableGroupOrder bool
}

type resourcesKey struct{}

// WithResources returns a context carrying r.
func WithResources(ctx context.Context, r Resources) context.Context {
	return context.WithValue(ctx, resourcesKey{}, r)
}

// ResourcesFromContext returns the resources carried by ctx, with defaults
// for everything that is unset.
func ResourcesFromContext(ctx context.Context) Resources {
	r, _ := ctx.Value(resourcesKey{}).(Resources)
	if r.Allocator == nil {
		r.Allocator = memory.DefaultAllocator()
	}
	if r.Registry == nil {
		r.Registry = compute.DefaultRegistry()
	}
	if r.BatchSize <= 0 {
		r.BatchSize = DefaultBatchSize
	}
	return r
}

func (r Resources) evaluator() *expr.Evaluator {
	return expr.NewEvaluator(r.Allocator, r.Registry)
}

// newBatch returns an empty batch able to hold capacity rows, taken from the
// pool if there is one. Pooled batches have room for at least BatchSize rows
// so that batches of different sizes can be reused.
func (r Resources) newBatch(schema *columnar.Schema, capacity int) (*columnar.Batch, error) {
	var (
		b   *columnar.Batch
		err error
	)
	if r.Pool != nil {
		b, err = r.Pool.Get(schema, max(capacity, r.BatchSize))
	} else {
		b, err = columnar.NewBatch(r.Allocator, schema, capacity)
	}
	if err != nil {
		return nil, err
	}
	if err := b.SetNumRows(0); err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}
