package executor

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/swiss"

	"github.com/grafana/vexec/pkg/columnar"
	"github.com/grafana/vexec/pkg/datatype"
)

// keyIndex assigns dense ids to distinct tuples of key values. Tuples are
// hashed with xxhash; tuples whose hashes collide are chained and told apart
// by comparing values.
type keyIndex struct {
	digest  *xxhash.Digest
	buf     []byte
	buckets *swiss.Map[uint64, int] // hash -> most recently inserted id
	chain   []int                   // id -> previous id with the same hash, or -1
	keys    [][]datatype.Value      // id -> key tuple
}

func newKeyIndex() *keyIndex {
	return &keyIndex{
		digest:  xxhash.New(),
		buckets: swiss.NewMap[uint64, int](64),
	}
}

// Len returns the number of distinct keys.
func (x *keyIndex) Len() int { return len(x.keys) }

// Key returns the key tuple with the given id.
func (x *keyIndex) Key(id int) []datatype.Value { return x.keys[id] }

func (x *keyIndex) hash(key []datatype.Value) uint64 {
	x.buf = x.buf[:0]
	for _, v := range key {
		x.buf = v.AppendKey(x.buf)
	}
	x.digest.Reset()
	_, _ = x.digest.Write(x.buf)
	return x.digest.Sum64()
}

// Find returns the id of key, or -1 if key has not been inserted.
func (x *keyIndex) Find(key []datatype.Value) int {
	return x.find(x.hash(key), key)
}

func (x *keyIndex) find(h uint64, key []datatype.Value) int {
	id, ok := x.buckets.Get(h)
	if !ok {
		return -1
	}
	for ; id >= 0; id = x.chain[id] {
		if tupleEqual(x.keys[id], key) {
			return id
		}
	}
	return -1
}

// Insert returns the id of key, adding it if it is new. The second result
// reports whether key was added. The index keeps a copy of key.
func (x *keyIndex) Insert(key []datatype.Value) (int, bool) {
	h := x.hash(key)
	if id := x.find(h, key); id >= 0 {
		return id, false
	}

	stored := make([]datatype.Value, len(key))
	for i, v := range key {
		stored[i] = v.Clone()
	}

	id := len(x.keys)
	prev, ok := x.buckets.Get(h)
	if !ok {
		prev = -1
	}
	x.keys = append(x.keys, stored)
	x.chain = append(x.chain, prev)
	x.buckets.Put(h, id)
	return id, true
}

// Iter calls fn for every id in unspecified order until fn returns false.
func (x *keyIndex) Iter(fn func(id int) bool) {
	x.buckets.Iter(func(_ uint64, id int) bool {
		for ; id >= 0; id = x.chain[id] {
			if !fn(id) {
				return true
			}
		}
		return false
	})
}

func tupleEqual(a, b []datatype.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// keyReader reads key tuples row by row out of evaluated key columns.
type keyReader struct {
	cols []*columnar.Vector
	row  []datatype.Value
}

func newKeyReader(n int) *keyReader {
	return &keyReader{row: make([]datatype.Value, n)}
}

// Reset points r at a new set of key columns.
func (r *keyReader) Reset(cols []*columnar.Vector) { r.cols = cols }

// Row returns the key tuple of row i and whether any of its values is null
// or NaN. Such a tuple is not equal to itself under EQ, so joins never match
// it; aggregation still groups it. The returned slice is reused by the next
// call.
func (r *keyReader) Row(i int) ([]datatype.Value, bool, error) {
	incomparable := false
	for c, col := range r.cols {
		v, err := col.Get(i)
		if err != nil {
			return nil, false, err
		}
		incomparable = incomparable || v.IsNull() || v.IsNaN()
		r.row[c] = v
	}
	return r.row, incomparable, nil
}
