package executor

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/require"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/engine/expr"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

var (
	joinBuildSchema = arrow.NewSchema([]arrow.Field{
		{Name: "k", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "a", Type: arrow.BinaryTypes.String},
	}, nil)
	joinProbeSchema = arrow.NewSchema([]arrow.Field{
		{Name: "k", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: "x", Type: arrow.BinaryTypes.String},
	}, nil)
)

const (
	joinBuildCSV = "k,a\n1,a\n2,b\nNULL,n\n"
	joinProbeCSV = "k,x\n1,x\n3,y\nNULL,z\n"
)

func newTestJoin(t *testing.T, alloc *memory.Allocator, leftOuter bool, buildCSV, probeCSV string) *HashJoin {
	t.Helper()
	build := csvScan(t, alloc, joinBuildSchema, buildCSV)
	probe := csvScan(t, alloc, joinProbeSchema, probeCSV)
	buildKeys := []expr.Expression{column(t, build.Schema(), "k")}
	probeKeys := []expr.Expression{column(t, probe.Schema(), "k")}

	newJoin := NewInnerHashJoin
	if leftOuter {
		newJoin = NewLeftOuterHashJoin
	}
	join, err := newJoin(build, probe, buildKeys, probeKeys, JoinOptions{})
	require.NoError(t, err)
	return join
}

func TestHashJoin_Inner(t *testing.T) {
	ctx, alloc := newTestContext(t, 0)

	join := newTestJoin(t, alloc, false, joinBuildCSV, joinProbeCSV)
	require.Equal(t, "{build.k: INT64, a: VAR_BINARY NOT NULL, probe.k: INT64, x: VAR_BINARY NOT NULL}", join.Schema().String())

	rows := collect(t, ctx, join)
	require.Equal(t, [][]any{{int64(1), "a", int64(1), "x"}}, rows)
}

func TestHashJoin_LeftOuter(t *testing.T) {
	ctx, alloc := newTestContext(t, 0)

	join := newTestJoin(t, alloc, true, joinBuildCSV, joinProbeCSV)
	require.Equal(t, "{build.k: INT64, a: VAR_BINARY, probe.k: INT64, x: VAR_BINARY NOT NULL}", join.Schema().String())

	rows := collect(t, ctx, join)
	require.Equal(t, [][]any{
		{int64(1), "a", int64(1), "x"},
		{nil, nil, int64(3), "y"},
		{nil, nil, nil, "z"},
	}, rows)
}

func TestHashJoin_Projected(t *testing.T) {
	for _, tc := range []struct {
		name      string
		leftOuter bool
		want      [][]any
	}{
		{"inner", false, [][]any{{int64(1), "a", "x"}}},
		{"left outer", true, [][]any{{int64(1), "a", "x"}, {int64(3), nil, "y"}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, alloc := newTestContext(t, 0)

			join := newTestJoin(t, alloc, tc.leftOuter, joinBuildCSV, "k,x\n1,x\n3,y\n")
			schema := join.Schema()
			project, err := NewProject(join, []NamedExpr{
				{Name: "k", Expr: column(t, schema, "probe.k")},
				{Name: "a", Expr: column(t, schema, "a")},
				{Name: "x", Expr: column(t, schema, "x")},
			})
			require.NoError(t, err)
			require.Equal(t, tc.want, collect(t, ctx, project))
		})
	}
}

func TestHashJoin_ManyMatchesAcrossBatches(t *testing.T) {
	ctx, alloc := newTestContext(t, 2)

	join := newTestJoin(t, alloc, false, "k,a\n1,a\n1,b\n1,c\n2,d\n", "k,x\n1,x\n2,y\n1,z\n")
	require.NoError(t, join.Open(ctx))
	defer join.Close()

	var (
		sizes []int
		rows  [][]any
	)
	require.NoError(t, drain(ctx, join, func(b *columnar.Batch) error {
		sizes = append(sizes, b.NumRows())
		rows = append(rows, rowsOf(t, b)...)
		return nil
	}))
	require.Equal(t, []int{2, 2, 2, 1}, sizes)
	require.Equal(t, [][]any{
		{int64(1), "a", int64(1), "x"},
		{int64(1), "b", int64(1), "x"},
		{int64(1), "c", int64(1), "x"},
		{int64(2), "d", int64(2), "y"},
		{int64(1), "a", int64(1), "z"},
		{int64(1), "b", int64(1), "z"},
		{int64(1), "c", int64(1), "z"},
	}, rows)
}

func TestHashJoin_EmptyBuildSide(t *testing.T) {
	ctx, alloc := newTestContext(t, 0)

	inner := newTestJoin(t, alloc, false, "k,a\n", joinProbeCSV)
	require.Empty(t, collect(t, ctx, inner))

	outer := newTestJoin(t, alloc, true, "k,a\n", "k,x\n5,x\n")
	require.Equal(t, [][]any{{nil, nil, int64(5), "x"}}, collect(t, ctx, outer))
}

func TestHashJoin_NaNKeysNeverMatch(t *testing.T) {
	buildSchema := columnar.MustSchema(
		columnar.Field{Name: "k", Type: datatype.Float64},
		columnar.Field{Name: "a", Type: datatype.VarBinary},
	)
	probeSchema := columnar.MustSchema(
		columnar.Field{Name: "k", Type: datatype.Float64},
		columnar.Field{Name: "x", Type: datatype.VarBinary},
	)

	run := func(t *testing.T, leftOuter bool) [][]any {
		ctx, alloc := newTestContext(t, 0)
		build := NewScan(NewBufferedSource(buildSchema, batchOf(t, alloc, buildSchema,
			[]datatype.Value{datatype.NewFloat64(1.5), datatype.NewString("a")},
			[]datatype.Value{datatype.NewFloat64(math.NaN()), datatype.NewString("b")},
		)))
		probe := NewScan(NewBufferedSource(probeSchema, batchOf(t, alloc, probeSchema,
			[]datatype.Value{datatype.NewFloat64(1.5), datatype.NewString("x")},
			[]datatype.Value{datatype.NewFloat64(math.NaN()), datatype.NewString("y")},
		)))
		newJoin := NewInnerHashJoin
		if leftOuter {
			newJoin = NewLeftOuterHashJoin
		}
		join, err := newJoin(build, probe,
			[]expr.Expression{column(t, buildSchema, "k")},
			[]expr.Expression{column(t, probeSchema, "k")},
			JoinOptions{},
		)
		require.NoError(t, err)

		// Drop the probe key so that NaN does not reach the comparison.
		rows := collect(t, ctx, join)
		for i, row := range rows {
			rows[i] = []any{row[1], row[3]}
		}
		return rows
	}

	t.Run("inner", func(t *testing.T) {
		require.Equal(t, [][]any{{"a", "x"}}, run(t, false))
	})
	t.Run("left outer", func(t *testing.T) {
		require.Equal(t, [][]any{{"a", "x"}, {nil, "y"}}, run(t, true))
	})
}

func TestHashJoin_KeyTypeMismatch(t *testing.T) {
	ctx, alloc := newTestContext(t, 0)

	build := &closeTracker{Operator: csvScan(t, alloc, joinBuildSchema, joinBuildCSV)}
	probe := &closeTracker{Operator: csvScan(t, alloc, joinProbeSchema, joinProbeCSV)}
	join, err := NewInnerHashJoin(build, probe,
		[]expr.Expression{column(t, build.Schema(), "k")},
		[]expr.Expression{column(t, probe.Schema(), "x")},
		JoinOptions{},
	)
	require.NoError(t, err)

	require.ErrorIs(t, join.Open(ctx), errs.ErrOperatorInit)
	require.Equal(t, 1, build.closed)
	require.Equal(t, 1, probe.closed)

	_, err = join.Next(ctx)
	require.ErrorIs(t, err, errs.ErrInvalidState)
	require.NoError(t, join.Close())
	require.Equal(t, 1, build.closed)
}

func TestHashJoin_CustomQualifiers(t *testing.T) {
	_, alloc := newTestContext(t, 0)

	build := csvScan(t, alloc, joinBuildSchema, joinBuildCSV)
	probe := csvScan(t, alloc, joinProbeSchema, joinProbeCSV)
	join, err := NewInnerHashJoin(build, probe,
		[]expr.Expression{column(t, build.Schema(), "k")},
		[]expr.Expression{column(t, probe.Schema(), "k")},
		JoinOptions{BuildQualifier: "l", ProbeQualifier: "r"},
	)
	require.NoError(t, err)
	defer join.Close()

	_, ok := join.Schema().IndexOf("l.k")
	require.True(t, ok)
	_, ok = join.Schema().IndexOf("r.k")
	require.True(t, ok)
}
