package engine

import (
	"context"
	"errors"
	"testing"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/compute"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/engine/executor"
	"github.com/grafana/vexec/pkg/engine/expr"
	"github.com/grafana/vexec/pkg/engine/table"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var eventsSchema = columnar.MustSchema(
	columnar.Field{Name: "service", Type: datatype.VarBinary},
	columnar.Field{Name: "latency", Type: datatype.Float64, Nullable: true},
)

// newTestEngine returns an engine whose memory is checked for leaks when the
// test ends.
func newTestEngine(t *testing.T, cfg Config) (*Engine, *prometheus.Registry) {
	t.Helper()
	checked := arrowmem.NewCheckedAllocator(arrowmem.DefaultAllocator)
	t.Cleanup(func() { checked.AssertSize(t, 0) })

	reg := prometheus.NewRegistry()
	e, err := New(Params{
		Logger:     log.NewNopLogger(),
		Registerer: reg,
		Config:     cfg,
		Memory:     checked,
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e, reg
}

func newEventsTable(t *testing.T, e *Engine) *table.Table {
	t.Helper()
	tbl, err := table.New(e.Allocator(), eventsSchema, 0)
	require.NoError(t, err)
	t.Cleanup(tbl.Release)

	app := tbl.Appender()
	for _, ev := range []struct {
		service string
		latency float64
		null    bool
	}{
		{"api", 0.25, false},
		{"db", 0.5, false},
		{"api", 0.75, false},
		{"web", 0, true},
		{"db", 1.5, false},
		{"api", 2, false},
	} {
		app.AddRow().Set(datatype.NewString(ev.service))
		if ev.null {
			app.SetNull()
		} else {
			app.Set(datatype.NewFloat64(ev.latency))
		}
	}
	require.NoError(t, app.Err())
	return tbl
}

// latencyByService returns the tree computing the average latency per
// service over events with a latency above 0.3.
func latencyByService(t *testing.T, e *Engine, tbl *table.Table) executor.Operator {
	t.Helper()
	scan := e.Instrument(executor.NewScan(tbl.Source(0)), "scan")

	latency, err := expr.ColumnByName(scan.Schema(), "latency")
	require.NoError(t, err)
	service, err := expr.ColumnByName(scan.Schema(), "service")
	require.NoError(t, err)
	slow, err := expr.NewBinary(compute.BinOpKindGt, latency, expr.NewLiteral(datatype.NewFloat64(0.3)))
	require.NoError(t, err)

	filter, err := executor.NewFilter(scan, slow)
	require.NoError(t, err)
	agg, err := executor.NewAggregate(filter, []executor.NamedExpr{{Name: "service", Expr: service}}, []executor.Aggregation{
		{Func: executor.AggAvg, Expr: latency, Name: "avg"},
		{Func: executor.AggCountRows, Name: "n"},
	}, executor.AggregateOptions{})
	require.NoError(t, err)
	return e.Instrument(agg, "aggregate")
}

func rows(t *testing.T, batches ...*columnar.Batch) [][]any {
	t.Helper()
	var out [][]any
	for _, b := range batches {
		for i := range b.NumRows() {
			values, err := b.Row(i)
			require.NoError(t, err)
			row := make([]any, len(values))
			for j, v := range values {
				if bs, ok := v.Any().([]byte); ok {
					row[j] = string(bs)
				} else {
					row[j] = v.Any()
				}
			}
			out = append(out, row)
		}
	}
	return out
}

func TestCursor_Drain(t *testing.T) {
	e, reg := newTestEngine(t, Config{BatchSize: 2, StableGroupOrder: true})
	tbl := newEventsTable(t, e)

	cursor := e.Cursor(latencyByService(t, e, tbl))
	ctx := context.Background()
	require.NoError(t, cursor.Open(ctx))

	var got [][]any
	require.NoError(t, cursor.Drain(ctx, func(b *columnar.Batch) error {
		got = append(got, rows(t, b)...)
		return nil
	}))
	require.NoError(t, cursor.Close())
	require.NoError(t, cursor.Close())

	require.Equal(t, [][]any{
		{"db", 1.0, int64(2)},
		{"api", 1.375, int64(2)},
	}, got)

	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.pipelines.WithLabelValues(statusSuccess)))
	require.Equal(t, 0.0, testutil.ToFloat64(e.metrics.pipelines.WithLabelValues(statusCanceled)))
	count, err := testutil.GatherAndCount(reg, "vexec_operator_rows_total")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestCursor_Collect(t *testing.T) {
	e, _ := newTestEngine(t, Config{PoolBatches: true})
	tbl := newEventsTable(t, e)

	cursor := e.Cursor(latencyByService(t, e, tbl))
	ctx := context.Background()
	require.NoError(t, cursor.Open(ctx))
	defer cursor.Close()

	batches, err := cursor.Collect(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, [][]any{
		{"db", 1.0, int64(2)},
		{"api", 1.375, int64(2)},
	}, rows(t, batches...))
	for _, b := range batches {
		b.Release()
	}
	// One batch for the filter output and one for the aggregate output.
	require.Equal(t, int64(2), e.Pool().Misses())
}

func TestCursor_EarlyClose(t *testing.T) {
	e, _ := newTestEngine(t, Config{BatchSize: 1})
	tbl := newEventsTable(t, e)

	cursor := e.Cursor(executor.NewScan(tbl.Source(0)))
	ctx := context.Background()
	require.NoError(t, cursor.Open(ctx))

	b, err := cursor.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, b.NumRows())
	b.Release()
	require.NoError(t, cursor.Close())

	_, err = cursor.Next(ctx)
	require.ErrorIs(t, err, errs.ErrInvalidState)
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.pipelines.WithLabelValues(statusCanceled)))

	// The table can be modified again once the scan is closed.
	require.NoError(t, tbl.Appender().AddRow().Set(datatype.NewString("x")).Err())
}

func TestCursor_StateErrors(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	tbl := newEventsTable(t, e)
	ctx := context.Background()

	cursor := e.Cursor(executor.NewScan(tbl.Source(0)))
	_, err := cursor.Next(ctx)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	require.NoError(t, cursor.Open(ctx))
	require.ErrorIs(t, cursor.Open(ctx), errs.ErrInvalidState)
	require.NoError(t, cursor.Close())
}

func TestCursor_OpenFailure(t *testing.T) {
	e, reg := newTestEngine(t, Config{})
	tbl := newEventsTable(t, e)
	ctx := context.Background()

	other := columnar.MustSchema(columnar.Field{Name: "latency", Type: datatype.Int64})
	wrong, err := expr.ColumnByName(other, "latency")
	require.NoError(t, err)
	pred, err := expr.NewBinary(compute.BinOpKindGt, wrong, expr.NewLiteral(datatype.NewInt64(1)))
	require.NoError(t, err)
	filter, err := executor.NewFilter(executor.NewScan(tbl.Source(0)), pred)
	require.NoError(t, err)

	cursor := e.Cursor(filter)
	require.ErrorIs(t, cursor.Open(ctx), errs.ErrOperatorInit)
	require.NoError(t, cursor.Close())

	count, err := testutil.GatherAndCount(reg, "vexec_cursor_pipelines_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, 1.0, testutil.ToFloat64(e.metrics.pipelines.WithLabelValues(statusFailure)))
}

// lyingOperator produces batches that do not match its declared schema.
type lyingOperator struct {
	executor.Operator
	schema *columnar.Schema
}

func (o *lyingOperator) Schema() *columnar.Schema { return o.schema }

func TestCursor_ValidatesRootBatches(t *testing.T) {
	e, _ := newTestEngine(t, Config{})
	tbl := newEventsTable(t, e)
	ctx := context.Background()

	root := &lyingOperator{
		Operator: executor.NewScan(tbl.Source(0)),
		schema:   columnar.MustSchema(columnar.Field{Name: "service", Type: datatype.VarBinary}),
	}
	cursor := e.Cursor(root)
	require.NoError(t, cursor.Open(ctx))
	defer cursor.Close()

	_, err := cursor.Next(ctx)
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)
}

func TestEngine_MemoryLimit(t *testing.T) {
	e, _ := newTestEngine(t, Config{MemoryLimit: 64})

	_, err := table.New(e.Allocator(), eventsSchema, 1024)
	require.ErrorIs(t, err, errs.ErrMemoryLimit)
	require.Zero(t, e.Allocator().InUse())
}

func TestEngine_CustomRegistry(t *testing.T) {
	reg := compute.DefaultRegistry().Clone()
	calls := 0
	gt, err := reg.Binary(compute.BinOpKindGt, datatype.KindFloat64)
	require.NoError(t, err)
	reg.RegisterBinary(compute.BinOpKindGt, datatype.KindFloat64, func(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
		calls++
		return gt(alloc, inputs...)
	})

	checked := arrowmem.NewCheckedAllocator(arrowmem.DefaultAllocator)
	t.Cleanup(func() { checked.AssertSize(t, 0) })
	e, err := New(Params{Memory: checked, Registry: reg})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	tbl := newEventsTable(t, e)

	cursor := e.Cursor(latencyByService(t, e, tbl))
	ctx := context.Background()
	require.NoError(t, cursor.Open(ctx))
	require.NoError(t, cursor.Drain(ctx, func(*columnar.Batch) error { return nil }))
	require.NoError(t, cursor.Close())
	require.Equal(t, 1, calls)
}

func TestEngine_InvalidConfig(t *testing.T) {
	_, err := New(Params{Config: Config{BatchSize: -4}})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestCursor_DrainStopsOnError(t *testing.T) {
	e, _ := newTestEngine(t, Config{BatchSize: 2})
	tbl := newEventsTable(t, e)
	ctx := context.Background()

	cursor := e.Cursor(executor.NewScan(tbl.Source(0)))
	require.NoError(t, cursor.Open(ctx))
	defer cursor.Close()

	stop := errors.New("stop")
	calls := 0
	err := cursor.Drain(ctx, func(*columnar.Batch) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
}
