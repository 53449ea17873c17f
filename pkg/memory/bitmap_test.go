package memory_test

import (
	"testing"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/vexec/pkg/memory"
)

func TestBitmap_Set(t *testing.T) {
	bmap, err := memory.NewBitmap(nil, 16)
	require.NoError(t, err)

	bmap.Set(6, true)
	bmap.Set(8, true)
	bmap.Set(9, false)
	bmap.Set(13, true) // Set bit in another byte

	require.True(t, bmap.Get(6), "bit 6 should be true")
	require.True(t, bmap.Get(8), "bit 8 should be true")
	require.False(t, bmap.Get(9), "bit 9 should be false")
	require.True(t, bmap.Get(13), "bit 13 should be true")

	for i := range bmap.Len() {
		if i == 6 || i == 8 || i == 13 {
			continue
		}
		require.False(t, bmap.Get(i), "bit %d should be false", i)
	}
	require.Equal(t, 3, bmap.Count())
}

func TestBitmap_SetRange(t *testing.T) {
	bmap, err := memory.NewBitmap(nil, 64)
	require.NoError(t, err)
	bmap.SetRange(0, 5, true)
	bmap.SetRange(7, 10, true)

	for i := range bmap.Len() {
		value := bmap.Get(i)

		switch {
		case i >= 0 && i < 5:
			require.True(t, value, "bit %d should be true", i)
		case i >= 7 && i < 10:
			require.True(t, value, "bit %d should be true", i)
		default:
			require.False(t, value, "bit %d should be false", i)
		}
	}
}

func TestBitmap_IterValue_true(t *testing.T) {
	bmap, err := memory.NewBitmap(nil, 128)
	require.NoError(t, err)

	bitsToSet := []int{1, 3, 5, 65, 70, 127}
	for _, bit := range bitsToSet {
		bmap.Set(bit, true)
	}

	var indices []int
	for index := range bmap.IterValues(true) {
		indices = append(indices, index)
	}
	require.Equal(t, bitsToSet, indices)
}

func TestBitmap_IterValue_false(t *testing.T) {
	bmap, err := memory.NewBitmap(nil, 128)
	require.NoError(t, err)

	// Set all bits first
	bmap.SetRange(0, 128, true)

	bitsToClear := []int{0, 2, 4, 64, 69, 126}
	for _, bit := range bitsToClear {
		bmap.Set(bit, false)
	}

	var indices []int
	for index := range bmap.IterValues(false) {
		indices = append(indices, index)
	}
	require.Equal(t, bitsToClear, indices)
}

func TestBitmap_Slice(t *testing.T) {
	bmap, err := memory.NewBitmap(nil, 20)
	require.NoError(t, err)
	bmap.Set(3, true)
	bmap.Set(11, true)

	view := bmap.Slice(3, 10)
	require.Equal(t, 10, view.Len())
	require.True(t, view.Get(0))
	require.True(t, view.Get(8))
	require.Equal(t, 2, view.Count())

	// Slices alias the parent buffer.
	bmap.Set(4, true)
	require.True(t, view.Get(1))
}

func TestBitmap_CopyAndCombine(t *testing.T) {
	left, err := memory.NewBitmap(nil, 10)
	require.NoError(t, err)
	right, err := memory.NewBitmap(nil, 10)
	require.NoError(t, err)
	out, err := memory.NewBitmap(nil, 10)
	require.NoError(t, err)

	left.SetRange(0, 5, true)
	right.SetRange(3, 8, true)

	out.Or(left, right, 10)
	require.Equal(t, 8, out.Count())

	out.And(left, right, 10)
	require.Equal(t, 2, out.Count())
	require.True(t, out.Get(3))
	require.True(t, out.Get(4))

	dst, err := memory.NewBitmap(nil, 10)
	require.NoError(t, err)
	dst.CopyFrom(right, 3, 0, 5)
	require.Equal(t, 5, dst.Count())
	require.True(t, dst.Get(0))
	require.False(t, dst.Get(5))
}

func TestBitmap_ReleaseReturnsMemory(t *testing.T) {
	mem := arrowmem.NewCheckedAllocator(arrowmem.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	alloc := memory.NewAllocator(mem, 0)
	bmap, err := memory.NewBitmap(alloc, 100)
	require.NoError(t, err)
	require.Equal(t, int64(13), alloc.InUse())

	bmap.Release()
	require.Equal(t, int64(0), alloc.InUse())
	require.Equal(t, 0, bmap.Len())
}
