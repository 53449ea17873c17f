package memory

import (
	"iter"

	"github.com/apache/arrow-go/v18/arrow/bitutil"
)

// Bitmap is a fixed-length sequence of bits backed by a byte buffer. Bit i
// lives in byte i/8 at position i%8 (LSB numbering, as in Arrow).
//
// A Bitmap created with [Bitmap.Slice] aliases the bytes of its parent; it
// starts at a bit offset within the shared buffer.
type Bitmap struct {
	alloc  *Allocator
	buf    []byte // owned buffer; nil for slices
	data   []byte
	offset int
	length int
}

// NewBitmap allocates a bitmap of n bits, all unset. A nil alloc allocates
// from the Go heap without accounting.
func NewBitmap(alloc *Allocator, n int) (Bitmap, error) {
	size := int(bitutil.BytesForBits(int64(n)))
	var (
		buf []byte
		err error
	)
	if alloc != nil {
		buf, err = alloc.Allocate(size)
		if err != nil {
			return Bitmap{}, err
		}
	} else {
		buf = make([]byte, size)
	}
	return Bitmap{alloc: alloc, buf: buf, data: buf, length: n}, nil
}

// Len returns the number of bits in the bitmap.
func (b Bitmap) Len() int { return b.length }

// Get reports whether bit i is set.
func (b Bitmap) Get(i int) bool {
	return bitutil.BitIsSet(b.data, b.offset+i)
}

// Set sets bit i to v.
func (b Bitmap) Set(i int, v bool) {
	bitutil.SetBitTo(b.data, b.offset+i, v)
}

// SetRange sets bits [from, to) to v.
func (b Bitmap) SetRange(from, to int, v bool) {
	if to <= from {
		return
	}
	bitutil.SetBitsTo(b.data, int64(b.offset+from), int64(to-from), v)
}

// Count returns the number of set bits.
func (b Bitmap) Count() int {
	if b.length == 0 {
		return 0
	}
	return bitutil.CountSetBits(b.data, b.offset, b.length)
}

// CopyFrom copies n bits of src starting at srcOffset into b starting at
// dstOffset.
func (b Bitmap) CopyFrom(src Bitmap, srcOffset, dstOffset, n int) {
	if n <= 0 {
		return
	}
	bitutil.CopyBitmap(src.data, src.offset+srcOffset, n, b.data, b.offset+dstOffset)
}

// Or sets b to the bitwise OR of left and right over the first n bits.
func (b Bitmap) Or(left, right Bitmap, n int) {
	if n <= 0 {
		return
	}
	bitutil.BitmapOr(left.data, right.data, int64(left.offset), int64(right.offset), b.data, int64(b.offset), int64(n))
}

// And sets b to the bitwise AND of left and right over the first n bits.
func (b Bitmap) And(left, right Bitmap, n int) {
	if n <= 0 {
		return
	}
	bitutil.BitmapAnd(left.data, right.data, int64(left.offset), int64(right.offset), b.data, int64(b.offset), int64(n))
}

// Slice returns a view of n bits starting at bit start. The view shares the
// buffer of b and must not outlive it.
func (b Bitmap) Slice(start, n int) Bitmap {
	return Bitmap{data: b.data, offset: b.offset + start, length: n}
}

// IterValues iterates over the indices of all bits equal to value.
func (b Bitmap) IterValues(value bool) iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := range b.length {
			if b.Get(i) == value && !yield(i) {
				return
			}
		}
	}
}

// Bytes returns the backing bytes and the bit offset of the first bit.
func (b Bitmap) Bytes() ([]byte, int) { return b.data, b.offset }

// Release returns the owned buffer to the allocator. Release is a no-op on
// slices.
func (b *Bitmap) Release() {
	if b.buf != nil && b.alloc != nil {
		b.alloc.Free(b.buf)
	}
	*b = Bitmap{}
}
