package columnar

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/grafana/vexec/pkg/memory"
)

type poolKey struct {
	schema   *Schema
	capacity int
}

// Pool recycles batches of the same schema and capacity. A batch obtained
// from [Pool.Get] is exclusively owned by the caller until it is released,
// at which point it is returned to the pool.
//
// Pool is safe for concurrent use.
type Pool struct {
	alloc   *memory.Allocator
	maxIdle int

	mu   sync.Mutex
	free map[poolKey][]*Batch

	hits   *atomic.Int64
	misses *atomic.Int64
}

// NewPool returns a pool allocating from alloc that keeps at most maxIdle
// idle batches per schema and capacity. A maxIdle <= 0 disables pooling.
func NewPool(alloc *memory.Allocator, maxIdle int) *Pool {
	return &Pool{
		alloc:   alloc,
		maxIdle: maxIdle,
		free:    make(map[poolKey][]*Batch),
		hits:    atomic.NewInt64(0),
		misses:  atomic.NewInt64(0),
	}
}

// Get returns a batch of capacity rows for schema. Values start as zero and
// not null.
func (p *Pool) Get(schema *Schema, capacity int) (*Batch, error) {
	key := poolKey{schema: schema, capacity: capacity}

	p.mu.Lock()
	var b *Batch
	if idle := p.free[key]; len(idle) > 0 {
		b = idle[len(idle)-1]
		p.free[key] = idle[:len(idle)-1]
	}
	p.mu.Unlock()

	if b == nil {
		p.misses.Inc()
		nb, err := NewBatch(p.alloc, schema, capacity)
		if err != nil {
			return nil, err
		}
		nb.pool = p
		return nb, nil
	}

	p.hits.Inc()
	for _, c := range b.cols {
		c.Reset()
	}
	if err := b.SetNumRows(capacity); err != nil {
		b.pool = nil
		b.Release()
		return nil, err
	}
	b.checkedIn = false
	return b, nil
}

func (p *Pool) put(b *Batch) {
	if b.checkedIn {
		return
	}
	b.checkedIn = true

	key := poolKey{schema: b.schema, capacity: b.capacity}
	p.mu.Lock()
	if len(p.free[key]) < p.maxIdle {
		p.free[key] = append(p.free[key], b)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for _, c := range b.cols {
		c.Release()
	}
}

// Purge releases all idle batches.
func (p *Pool) Purge() {
	p.mu.Lock()
	free := p.free
	p.free = make(map[poolKey][]*Batch)
	p.mu.Unlock()

	for _, idle := range free {
		for _, b := range idle {
			for _, c := range b.cols {
				c.Release()
			}
		}
	}
}

// Hits returns the number of Get calls served from idle batches.
func (p *Pool) Hits() int64 { return p.hits.Load() }

// Misses returns the number of Get calls that allocated a new batch.
func (p *Pool) Misses() int64 { return p.misses.Load() }
