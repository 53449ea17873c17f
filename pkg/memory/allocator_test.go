package memory_test

import (
	"sync"
	"testing"

	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

func TestAllocator_Accounting(t *testing.T) {
	mem := arrowmem.NewCheckedAllocator(arrowmem.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	alloc := memory.NewAllocator(mem, 0)

	a, err := alloc.Allocate(100)
	require.NoError(t, err)
	require.Len(t, a, 100)

	b, err := alloc.Allocate(28)
	require.NoError(t, err)
	require.Equal(t, int64(128), alloc.InUse())

	a, err = alloc.Reallocate(200, a)
	require.NoError(t, err)
	require.Len(t, a, 200)
	require.Equal(t, int64(228), alloc.InUse())

	alloc.Free(a)
	alloc.Free(b)
	require.Equal(t, int64(0), alloc.InUse())
	require.Equal(t, int64(228), alloc.Peak())
}

func TestAllocator_Alignment(t *testing.T) {
	alloc := memory.NewAllocator(nil, 0)
	for _, size := range []int{1, 3, 17, 64, 1000} {
		buf, err := alloc.Allocate(size)
		require.NoError(t, err)
		require.Zero(t, addrOf(buf)%memory.Alignment, "buffer of size %d is not aligned", size)
		alloc.Free(buf)
	}
}

func TestAllocator_Limit(t *testing.T) {
	alloc := memory.NewAllocator(nil, 64)

	buf, err := alloc.Allocate(60)
	require.NoError(t, err)

	_, err = alloc.Allocate(8)
	require.ErrorIs(t, err, errs.ErrMemoryLimit)

	_, err = alloc.Reallocate(65, buf)
	require.ErrorIs(t, err, errs.ErrMemoryLimit)

	alloc.Free(buf)
	buf, err = alloc.Allocate(64)
	require.NoError(t, err)
	alloc.Free(buf)
}

func TestAllocator_ZeroSize(t *testing.T) {
	alloc := memory.NewAllocator(nil, 0)
	buf, err := alloc.Allocate(0)
	require.NoError(t, err)
	require.Nil(t, buf)
	alloc.Free(buf)
	require.Equal(t, int64(0), alloc.InUse())
}

func TestAllocator_Concurrent(t *testing.T) {
	alloc := memory.NewAllocator(nil, 0)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				buf, err := alloc.Allocate(32)
				if err != nil {
					panic(err)
				}
				alloc.Free(buf)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(0), alloc.InUse())
}
