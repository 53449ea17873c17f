package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/memory"
)

const (
	statusSuccess  = "success"
	statusFailure  = "failure"
	statusCanceled = "canceled"
)

// metrics is a container of metrics for an engine.
type metrics struct {
	pipelines *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, alloc *memory.Allocator, pool *columnar.Pool) *metrics {
	m := &metrics{
		pipelines: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexec_cursor_pipelines_total",
			Help: "Total number of pipelines run through a cursor, by final status",
		}, []string{"status"}),
	}

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "vexec_allocator_bytes_in_use",
		Help: "Number of bytes currently allocated by pipelines",
	}, func() float64 { return float64(alloc.InUse()) })
	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "vexec_allocator_bytes_peak",
		Help: "Largest number of bytes allocated by pipelines at any time",
	}, func() float64 { return float64(alloc.Peak()) })

	if pool != nil {
		promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
			Name: "vexec_batch_pool_hits_total",
			Help: "Total number of batches served from the batch pool",
		}, func() float64 { return float64(pool.Hits()) })
		promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
			Name: "vexec_batch_pool_misses_total",
			Help: "Total number of batches allocated because the batch pool had none idle",
		}, func() float64 { return float64(pool.Misses()) })
	}
	return m
}
