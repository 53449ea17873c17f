package executor

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/grafana/vexec/pkg/columnar"
)

var tracer = otel.Tracer("pkg/engine/executor")

// Metrics are the per-operator metrics recorded by [Instrument].
type Metrics struct {
	batchesTotal *prometheus.CounterVec
	rowsTotal    *prometheus.CounterVec
	nextSeconds  *prometheus.HistogramVec
}

// NewMetrics creates operator metrics and registers them with reg. reg may be
// nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		batchesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexec_operator_batches_total",
			Help: "Total number of batches produced by an operator",
		}, []string{"operator"}),
		rowsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexec_operator_rows_total",
			Help: "Total number of rows produced by an operator",
		}, []string{"operator"}),
		nextSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name: "vexec_operator_next_seconds",
			Help: "Number of seconds spent in a single call to Next of an operator, children included",

			Buckets:                         prometheus.DefBuckets,
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		}, []string{"operator"}),
	}
}

type instrumented struct {
	Operator
	name    string
	metrics *Metrics
}

// Instrument wraps op to record every call to Next with a span and, if
// metrics is not nil, in metrics labelled with name.
func Instrument(op Operator, name string, metrics *Metrics) Operator {
	return &instrumented{Operator: op, name: name, metrics: metrics}
}

func (i *instrumented) Open(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, i.name+".Open")
	defer span.End()

	err := i.Operator.Open(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (i *instrumented) Next(ctx context.Context) (*columnar.Batch, error) {
	ctx, span := tracer.Start(ctx, i.name+".Next")
	defer span.End()

	start := time.Now()
	batch, err := i.Operator.Next(ctx)
	if i.metrics != nil {
		i.metrics.nextSeconds.WithLabelValues(i.name).Observe(time.Since(start).Seconds())
	}

	switch {
	case err == nil:
		span.SetAttributes(attribute.Int("rows", batch.NumRows()))
		span.SetStatus(codes.Ok, "")
		if i.metrics != nil {
			i.metrics.batchesTotal.WithLabelValues(i.name).Inc()
			i.metrics.rowsTotal.WithLabelValues(i.name).Add(float64(batch.NumRows()))
		}
	case errors.Is(err, EOF):
		span.AddEvent("exhausted", trace.WithAttributes(attribute.String("operator", i.name)))
		span.SetStatus(codes.Ok, "")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return batch, err
}
