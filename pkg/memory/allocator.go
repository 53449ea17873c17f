// Package memory provides the buffer allocator and bitmap used by columnar
// vectors.
//
// Buffers are obtained from an Arrow [memory.Allocator], which aligns every
// allocation to 64 bytes so that fixed-width element buffers can later be
// consumed by vectorized kernels.
package memory

import (
	arrowmem "github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/atomic"

	"github.com/grafana/vexec/pkg/errs"
)

// Alignment is the minimum alignment of every buffer handed out by an
// [Allocator].
const Alignment = 64

// Allocator hands out aligned byte buffers and keeps track of how many bytes
// are currently in use. An optional limit rejects allocations that would
// bring the in-use total over it.
//
// Allocator is safe for concurrent use; independent pipelines may share one.
type Allocator struct {
	mem   arrowmem.Allocator
	limit int64

	inUse *atomic.Int64
	peak  *atomic.Int64
}

var defaultAllocator = NewAllocator(nil, 0)

// DefaultAllocator returns the process-wide allocator without a limit.
func DefaultAllocator() *Allocator { return defaultAllocator }

// NewAllocator returns an Allocator delegating to mem. If mem is nil the
// Arrow default allocator is used. A limit <= 0 disables the limit.
func NewAllocator(mem arrowmem.Allocator, limit int64) *Allocator {
	if mem == nil {
		mem = arrowmem.DefaultAllocator
	}
	return &Allocator{
		mem:   mem,
		limit: max(limit, 0),
		inUse: atomic.NewInt64(0),
		peak:  atomic.NewInt64(0),
	}
}

// Allocate returns a zeroed buffer of exactly size bytes. Allocate returns
// [errs.ErrMemoryLimit] if the allocation would exceed the limit.
func (a *Allocator) Allocate(size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	if err := a.reserve(int64(size)); err != nil {
		return nil, err
	}
	return a.mem.Allocate(size), nil
}

// Reallocate grows or shrinks b to size bytes, preserving its contents.
func (a *Allocator) Reallocate(size int, b []byte) ([]byte, error) {
	if len(b) == 0 {
		return a.Allocate(size)
	}
	if size <= 0 {
		a.Free(b)
		return nil, nil
	}
	if delta := int64(size - len(b)); delta > 0 {
		if err := a.reserve(delta); err != nil {
			return nil, err
		}
	} else {
		a.inUse.Add(delta)
	}
	return a.mem.Reallocate(size, b), nil
}

// Free returns b to the allocator. b must be a buffer previously returned by
// Allocate or Reallocate of the same allocator, with its original length.
func (a *Allocator) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	a.inUse.Sub(int64(len(b)))
	a.mem.Free(b)
}

func (a *Allocator) reserve(n int64) error {
	for {
		cur := a.inUse.Load()
		next := cur + n
		if a.limit > 0 && next > a.limit {
			return errs.Newf(errs.ErrMemoryLimit, "allocating %d bytes with %d in use (limit %d)", n, cur, a.limit)
		}
		if a.inUse.CompareAndSwap(cur, next) {
			a.updatePeak(next)
			return nil
		}
	}
}

func (a *Allocator) updatePeak(v int64) {
	for {
		p := a.peak.Load()
		if v <= p || a.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

// InUse returns the number of bytes currently allocated and not freed.
func (a *Allocator) InUse() int64 { return a.inUse.Load() }

// Peak returns the highest value InUse has reached.
func (a *Allocator) Peak() int64 { return a.peak.Load() }

// Limit returns the configured limit, or 0 if there is none.
func (a *Allocator) Limit() int64 { return a.limit }
