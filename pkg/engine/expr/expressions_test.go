package expr

import (
	"testing"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/compute"
	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

var testSchema = columnar.MustSchema(
	columnar.Field{Name: "id", Type: datatype.Int64},
	columnar.Field{Name: "status", Type: datatype.Int64, Nullable: true},
	columnar.Field{Name: "path", Type: datatype.VarBinary, Nullable: true},
	columnar.Field{Name: "ok", Type: datatype.Bool, Nullable: true},
)

func newCheckedAllocator(t *testing.T) *memory.Allocator {
	t.Helper()
	checked := arrowmem.NewCheckedAllocator(arrowmem.DefaultAllocator)
	t.Cleanup(func() { checked.AssertSize(t, 0) })
	return memory.NewAllocator(checked, 0)
}

// newTestBatch returns a batch over testSchema with one row per tuple of
// (id, status, path, ok); nil values are null.
func newTestBatch(t *testing.T, alloc *memory.Allocator, rows ...[4]any) *columnar.Batch {
	t.Helper()
	b, err := columnar.NewBatch(alloc, testSchema, len(rows))
	require.NoError(t, err)
	t.Cleanup(b.Release)

	for i, row := range rows {
		require.NoError(t, b.Column(0).Set(i, datatype.NewInt64(row[0].(int64))))
		if row[1] == nil {
			require.NoError(t, b.Column(1).SetNull(i))
		} else {
			require.NoError(t, b.Column(1).Set(i, datatype.NewInt64(row[1].(int64))))
		}
		if row[2] == nil {
			require.NoError(t, b.Column(2).SetNull(i))
		} else {
			require.NoError(t, b.Column(2).Set(i, datatype.NewString(row[2].(string))))
		}
		if row[3] == nil {
			require.NoError(t, b.Column(3).SetNull(i))
		} else {
			require.NoError(t, b.Column(3).Set(i, datatype.NewBool(row[3].(bool))))
		}
	}
	return b
}

func col(t *testing.T, name string) *ColumnExpr {
	t.Helper()
	e, err := ColumnByName(testSchema, name)
	require.NoError(t, err)
	return e
}

func binary(t *testing.T, op compute.BinOpKind, left, right Expression) *BinaryExpr {
	t.Helper()
	e, err := NewBinary(op, left, right)
	require.NoError(t, err)
	return e
}

func values(t *testing.T, v *columnar.Vector) []any {
	t.Helper()
	out := make([]any, v.Len())
	for i := range out {
		val, err := v.Get(i)
		require.NoError(t, err)
		if v.Type().IsBinary() && !val.IsNull() {
			out[i] = string(val.Bytes())
			continue
		}
		out[i] = val.Any()
	}
	return out
}

func TestConstruction_TypeMismatch(t *testing.T) {
	tt := []struct {
		name  string
		build func() error
	}{
		{"add string and int", func() error {
			_, err := NewBinary(compute.BinOpKindAdd, col(t, "path"), col(t, "id"))
			return err
		}},
		{"add without widening", func() error {
			_, err := NewBinary(compute.BinOpKindAdd, col(t, "id"), NewLiteral(datatype.NewInt32(1)))
			return err
		}},
		{"and of integers", func() error {
			_, err := NewBinary(compute.BinOpKindAnd, col(t, "id"), col(t, "status"))
			return err
		}},
		{"not of string", func() error {
			_, err := NewUnary(compute.UnaryOpKindNot, col(t, "path"))
			return err
		}},
		{"regex over non-literal", func() error {
			_, err := NewBinary(compute.BinOpKindMatchRe, col(t, "path"), col(t, "path"))
			return err
		}},
		{"invalid regex", func() error {
			_, err := NewBinary(compute.BinOpKindMatchRe, col(t, "path"), NewLiteral(datatype.NewString("(")))
			return err
		}},
		{"cast int to fixed binary", func() error {
			_, err := NewCast(datatype.FixedBinary(8), col(t, "id"))
			return err
		}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.build(), errs.ErrTypeMismatch)
		})
	}

	_, err := ColumnByName(testSchema, "missing")
	require.ErrorIs(t, err, errs.ErrSchemaMismatch)
	_, err = NewColumn(testSchema, 9)
	require.ErrorIs(t, err, errs.ErrOutOfBounds)
}

func TestStaticTypes(t *testing.T) {
	id, status := col(t, "id"), col(t, "status")

	sum := binary(t, compute.BinOpKindAdd, id, id)
	require.Equal(t, datatype.Int64, sum.Type())
	require.False(t, sum.Nullable())

	div := binary(t, compute.BinOpKindDiv, id, id)
	require.True(t, div.Nullable())

	eq := binary(t, compute.BinOpKindEq, id, status)
	require.Equal(t, datatype.Bool, eq.Type())
	require.True(t, eq.Nullable())

	isNull, err := NewUnary(compute.UnaryOpKindIsNull, status)
	require.NoError(t, err)
	require.False(t, isNull.Nullable())

	cast, err := NewCast(datatype.Int64, col(t, "path"))
	require.NoError(t, err)
	require.True(t, cast.Nullable())

	require.Equal(t, "AND(EQ(id, status), MATCH_RE(path, \"^/api\"))",
		binary(t, compute.BinOpKindAnd, eq, binary(t, compute.BinOpKindMatchRe, col(t, "path"), NewLiteral(datatype.NewString("^/api")))).String())
}

func TestEvaluate(t *testing.T) {
	alloc := newCheckedAllocator(t)
	ev := NewEvaluator(alloc, nil)

	batch := newTestBatch(t, alloc,
		[4]any{int64(1), int64(200), "/api/v1", true},
		[4]any{int64(2), nil, "/health", false},
		[4]any{int64(3), int64(500), nil, nil},
	)

	t.Run("column is copied", func(t *testing.T) {
		out, err := ev.Evaluate(col(t, "status"), batch)
		require.NoError(t, err)
		defer out.Release()
		require.False(t, out.ReadOnly())
		require.Equal(t, []any{int64(200), nil, int64(500)}, values(t, out))
	})

	t.Run("literal", func(t *testing.T) {
		out, err := ev.Evaluate(NewLiteral(datatype.NewString("x")), batch)
		require.NoError(t, err)
		defer out.Release()
		require.Equal(t, []any{"x", "x", "x"}, values(t, out))
	})

	t.Run("arithmetic with null", func(t *testing.T) {
		e := binary(t, compute.BinOpKindMul, col(t, "status"), NewLiteral(datatype.NewInt64(2)))
		out, err := ev.Evaluate(e, batch)
		require.NoError(t, err)
		defer out.Release()
		require.Equal(t, []any{int64(400), nil, int64(1000)}, values(t, out))
	})

	t.Run("comparison with null literal", func(t *testing.T) {
		e := binary(t, compute.BinOpKindEq, col(t, "id"), NewLiteral(datatype.NullOf(datatype.Int64)))
		out, err := ev.Evaluate(e, batch)
		require.NoError(t, err)
		defer out.Release()
		require.Equal(t, []any{nil, nil, nil}, values(t, out))
	})

	t.Run("regex", func(t *testing.T) {
		e := binary(t, compute.BinOpKindMatchRe, col(t, "path"), NewLiteral(datatype.NewString(`^/api/`)))
		out, err := ev.Evaluate(e, batch)
		require.NoError(t, err)
		defer out.Release()
		require.Equal(t, []any{true, false, nil}, values(t, out))
	})

	t.Run("cast to string", func(t *testing.T) {
		e, err := NewCast(datatype.VarBinary, col(t, "id"))
		require.NoError(t, err)
		out, err := ev.Evaluate(e, batch)
		require.NoError(t, err)
		defer out.Release()
		require.Equal(t, []any{"1", "2", "3"}, values(t, out))
	})

	t.Run("nested", func(t *testing.T) {
		// NOT(status IS NULL) AND id > 1
		notNull, err := NewUnary(compute.UnaryOpKindIsNotNull, col(t, "status"))
		require.NoError(t, err)
		e := binary(t, compute.BinOpKindAnd, notNull, binary(t, compute.BinOpKindGt, col(t, "id"), NewLiteral(datatype.NewInt64(1))))
		out, err := ev.Evaluate(e, batch)
		require.NoError(t, err)
		defer out.Release()
		require.False(t, out.Nullable())
		require.Equal(t, []any{false, false, true}, values(t, out))
	})
}

func TestEvaluate_ThreeValuedLogic(t *testing.T) {
	alloc := newCheckedAllocator(t)
	ev := NewEvaluator(alloc, nil)
	batch := newTestBatch(t, alloc, [4]any{int64(1), nil, nil, nil})

	null := col(t, "ok") // null in the only row
	tt := []struct {
		op     compute.BinOpKind
		left   bool
		expect any
	}{
		{compute.BinOpKindAnd, true, nil},
		{compute.BinOpKindAnd, false, false},
		{compute.BinOpKindOr, true, true},
		{compute.BinOpKindOr, false, nil},
	}

	for _, tc := range tt {
		for _, swap := range []bool{false, true} {
			left, right := Expression(NewLiteral(datatype.NewBool(tc.left))), Expression(null)
			if swap {
				left, right = right, left
			}
			e := binary(t, tc.op, left, right)
			out, err := ev.Evaluate(e, batch)
			require.NoError(t, err)
			require.Equal(t, []any{tc.expect}, values(t, out), "%s", e)
			out.Release()
		}
	}

	// Any arithmetic or comparison with a null operand yields null.
	for _, op := range []compute.BinOpKind{compute.BinOpKindAdd, compute.BinOpKindSub, compute.BinOpKindLt, compute.BinOpKindEq} {
		e := binary(t, op, col(t, "id"), col(t, "status"))
		out, err := ev.Evaluate(e, batch)
		require.NoError(t, err)
		require.Equal(t, []any{nil}, values(t, out), "%s", e)
		out.Release()
	}
}

func TestBind(t *testing.T) {
	e := binary(t, compute.BinOpKindGt, col(t, "status"), NewLiteral(datatype.NewInt64(300)))
	require.NoError(t, Bind(e, testSchema))

	narrower := columnar.MustSchema(
		columnar.Field{Name: "id", Type: datatype.Int64},
		columnar.Field{Name: "status", Type: datatype.Int64},
	)
	require.NoError(t, Bind(e, narrower), "nullable reference may read a NOT NULL column")

	retyped := columnar.MustSchema(
		columnar.Field{Name: "id", Type: datatype.Int64},
		columnar.Field{Name: "status", Type: datatype.Int32, Nullable: true},
	)
	require.ErrorIs(t, Bind(e, retyped), errs.ErrSchemaMismatch)

	short := columnar.MustSchema(columnar.Field{Name: "id", Type: datatype.Int64})
	require.ErrorIs(t, Bind(e, short), errs.ErrSchemaMismatch)

	idOnly := col(t, "id")
	nullableID := columnar.MustSchema(columnar.Field{Name: "id", Type: datatype.Int64, Nullable: true})
	require.ErrorIs(t, Bind(idOnly, nullableID), errs.ErrSchemaMismatch)
}

func TestEvaluate_CustomKernel(t *testing.T) {
	alloc := newCheckedAllocator(t)

	reg := compute.DefaultRegistry().Clone()
	var calls int
	generic, err := reg.Binary(compute.BinOpKindAdd, datatype.KindInt64)
	require.NoError(t, err)
	reg.RegisterBinary(compute.BinOpKindAdd, datatype.KindInt64, func(alloc *memory.Allocator, inputs ...*columnar.Vector) (*columnar.Vector, error) {
		calls++
		return generic(alloc, inputs...)
	})

	ev := NewEvaluator(alloc, reg)
	batch := newTestBatch(t, alloc, [4]any{int64(1), int64(2), "", true})
	out, err := ev.Evaluate(binary(t, compute.BinOpKindAdd, col(t, "id"), col(t, "status")), batch)
	require.NoError(t, err)
	defer out.Release()

	require.Equal(t, 1, calls)
	require.Equal(t, []any{int64(3)}, values(t, out))
}
