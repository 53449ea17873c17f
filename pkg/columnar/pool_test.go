package columnar

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grafana/vexec/pkg/datatype"
)

func TestPool_Reuse(t *testing.T) {
	alloc := newCheckedAllocator(t)
	pool := NewPool(alloc, 2)
	defer pool.Purge()

	b, err := pool.Get(testSchema, 4)
	require.NoError(t, err)
	fillTestBatch(t, b)
	b.Release()
	b.Release() // double release is ignored

	require.EqualValues(t, 1, pool.Misses())

	again, err := pool.Get(testSchema, 4)
	require.NoError(t, err)
	require.Same(t, b, again)
	require.EqualValues(t, 1, pool.Hits())

	// Recycled batches are zeroed.
	require.Equal(t, 4, again.NumRows())
	for i := range 4 {
		row, err := again.Row(i)
		require.NoError(t, err)
		require.Equal(t, int64(0), row[0].Int64())
		require.False(t, row[2].IsNull())
	}

	// A batch checked out once cannot be handed out twice.
	other, err := pool.Get(testSchema, 4)
	require.NoError(t, err)
	require.NotSame(t, again, other)

	again.Release()
	other.Release()
}

func TestPool_KeyedBySchemaAndCapacity(t *testing.T) {
	alloc := newCheckedAllocator(t)
	pool := NewPool(alloc, 4)
	defer pool.Purge()

	b, err := pool.Get(testSchema, 4)
	require.NoError(t, err)
	b.Release()

	other, err := pool.Get(testSchema, 8)
	require.NoError(t, err)
	require.NotSame(t, b, other)
	other.Release()

	small := MustSchema(Field{Name: "x", Type: datatype.Bool})
	third, err := pool.Get(small, 4)
	require.NoError(t, err)
	require.NotSame(t, b, third)
	third.Release()

	require.EqualValues(t, 3, pool.Misses())
	require.EqualValues(t, 0, pool.Hits())
}

func TestPool_Disabled(t *testing.T) {
	alloc := newCheckedAllocator(t)
	pool := NewPool(alloc, 0)

	b, err := pool.Get(testSchema, 16)
	require.NoError(t, err)
	b.Release()
	require.Zero(t, alloc.InUse())
}
