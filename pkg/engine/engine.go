// Package engine runs operator trees built from package executor.
//
// An [Engine] owns the resources shared by all of its pipelines: the
// allocator with its memory limit, the kernel registry and the optional batch
// pool. Operator trees are executed through a [Cursor], which pulls the root
// of the tree on the calling goroutine.
package engine

import (
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/compute"
	"github.com/grafana/vexec/pkg/engine/executor"
	"github.com/grafana/vexec/pkg/memory"
)

var tracer = otel.Tracer("pkg/engine")

// maxIdleBatches is the number of idle batches kept per schema and capacity
// when batch pooling is enabled.
const maxIdleBatches = 16

// Params holds parameters for constructing a new [Engine].
type Params struct {
	Logger     log.Logger            // Logger for optional log messages.
	Registerer prometheus.Registerer // Registerer for optional metrics.

	Config Config // Config for the Engine.

	// Memory backs the allocations of all pipelines. Defaults to the Arrow
	// default allocator.
	Memory arrowmem.Allocator

	// Registry resolves the kernels of expressions. Defaults to
	// [compute.DefaultRegistry].
	Registry *compute.Registry
}

// validate validates p and applies defaults.
func (p *Params) validate() error {
	if p.Logger == nil {
		p.Logger = log.NewNopLogger()
	}
	if p.Registerer == nil {
		p.Registerer = prometheus.NewRegistry()
	}
	if p.Memory == nil {
		p.Memory = arrowmem.DefaultAllocator
	}
	if p.Registry == nil {
		p.Registry = compute.DefaultRegistry()
	}
	if p.Config.BatchSize == 0 {
		p.Config.BatchSize = executor.DefaultBatchSize
	}
	return p.Config.Validate()
}

// Engine executes operator trees.
type Engine struct {
	logger          log.Logger
	metrics         *metrics
	operatorMetrics *executor.Metrics
	config          Config

	alloc    *memory.Allocator
	registry *compute.Registry
	pool     *columnar.Pool
}

// New creates a new Engine.
func New(params Params) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	alloc := memory.NewAllocator(params.Memory, int64(params.Config.MemoryLimit))
	var pool *columnar.Pool
	if params.Config.PoolBatches {
		pool = columnar.NewPool(alloc, maxIdleBatches)
	}

	e := &Engine{
		logger:          params.Logger,
		metrics:         newMetrics(params.Registerer, alloc, pool),
		operatorMetrics: executor.NewMetrics(params.Registerer),
		config:          params.Config,

		alloc:    alloc,
		registry: params.Registry,
		pool:     pool,
	}

	level.Debug(e.logger).Log(
		"msg", "created engine",
		"batch_size", e.config.BatchSize,
		"memory_limit", uint64(e.config.MemoryLimit),
		"pool_batches", e.config.PoolBatches,
	)
	return e, nil
}

// Allocator returns the allocator used by all pipelines of e.
func (e *Engine) Allocator() *memory.Allocator { return e.alloc }

// Pool returns the batch pool of e, or nil if batch pooling is disabled.
func (e *Engine) Pool() *columnar.Pool { return e.pool }

// Registry returns the kernel registry used to evaluate expressions.
func (e *Engine) Registry() *compute.Registry { return e.registry }

// Resources returns the resources handed to operator trees run by e.
func (e *Engine) Resources() executor.Resources {
	return executor.Resources{
		Allocator:        e.alloc,
		Registry:         e.registry,
		Pool:             e.pool,
		BatchSize:        e.config.BatchSize,
		StableGroupOrder: e.config.StableGroupOrder,
	}
}

// Instrument wraps op to record the calls to Next in the operator metrics of
// e under the given name.
func (e *Engine) Instrument(op executor.Operator, name string) executor.Operator {
	return executor.Instrument(op, name, e.operatorMetrics)
}

// Cursor returns a cursor that runs the operator tree rooted at root. The
// cursor takes ownership of the tree.
func (e *Engine) Cursor(root executor.Operator) *Cursor {
	return newCursor(e, root)
}

// Close releases the idle batches of the pool. Pipelines must not be run
// after Close.
func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Purge()
	}
	if inUse := e.alloc.InUse(); inUse > 0 {
		level.Warn(e.logger).Log("msg", "engine closed with memory still allocated", "bytes", inUse)
	}
}
