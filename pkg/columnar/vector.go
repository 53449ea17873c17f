// Package columnar provides typed column vectors, schemas and batches: the
// in-memory representation of data moving through an execution pipeline.
//
// A [Vector] owns an aligned element buffer sized capacity × element width
// (plus a data heap for VarBinary) and, when nullable, a parallel null
// bitmap in which a set bit marks a null slot. The content of a null slot is
// unspecified and never read.
package columnar

import (
	"fmt"

	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
	"github.com/grafana/vexec/pkg/memory"
)

// Vector is a homogeneously typed column of values.
//
// Vectors returned by [Vector.Slice] and [Vector.View] are read-only views
// that share buffers with their parent; writes through them fail with
// [errs.ErrReadOnly]. A parent must not be written to while views of it are
// still being read.
type Vector struct {
	alloc    *memory.Allocator
	typ      datatype.Type
	nullable bool

	data  []byte        // capacity × element width
	nulls memory.Bitmap // capacity bits; zero value if not nullable
	heap  *heap         // VarBinary only

	offset   int
	length   int
	capacity int

	view     bool
	released bool
}

// slot is the layout of one VarBinary element in the primary buffer.
type slot struct {
	Offset uint32
	Length uint32
}

// heap holds the bytes of VarBinary values. It is shared between a vector
// and its views so that views observe reallocation.
type heap struct {
	buf []byte
	n   int
}

// NewVector allocates a vector of type t able to hold capacity elements. The
// vector starts with a length of zero. A nil alloc uses
// [memory.DefaultAllocator].
func NewVector(alloc *memory.Allocator, t datatype.Type, capacity int, nullable bool) (*Vector, error) {
	if !t.Valid() {
		return nil, errs.Newf(errs.ErrTypeMismatch, "cannot allocate vector of invalid type %s", t)
	}
	if capacity < 0 {
		return nil, errs.Newf(errs.ErrOutOfBounds, "negative capacity %d", capacity)
	}
	if alloc == nil {
		alloc = memory.DefaultAllocator()
	}

	data, err := alloc.Allocate(capacity * t.ElementWidth())
	if err != nil {
		return nil, err
	}
	v := &Vector{
		alloc:    alloc,
		typ:      t,
		nullable: nullable,
		data:     data,
		capacity: capacity,
	}
	if nullable {
		v.nulls, err = memory.NewBitmap(alloc, capacity)
		if err != nil {
			alloc.Free(data)
			return nil, err
		}
	}
	if t.Kind == datatype.KindVarBinary {
		v.heap = &heap{}
	}
	return v, nil
}

// Type returns the type of the elements of v.
func (v *Vector) Type() datatype.Type { return v.typ }

// Nullable reports whether v may hold nulls.
func (v *Vector) Nullable() bool { return v.nullable }

// Len returns the number of elements in v.
func (v *Vector) Len() int { return v.length }

// Cap returns the number of elements v can hold.
func (v *Vector) Cap() int { return v.capacity }

// ReadOnly reports whether v is a view.
func (v *Vector) ReadOnly() bool { return v.view }

// IsNull reports whether element i is null. i must be in range.
func (v *Vector) IsNull(i int) bool {
	return v.nullable && v.nulls.Get(v.offset+i)
}

// NullCount returns the number of null elements.
func (v *Vector) NullCount() int {
	if !v.nullable {
		return 0
	}
	return v.nulls.Slice(v.offset, v.length).Count()
}

// NullBitmap returns the null bitmap of the elements of v, or a zero-length
// bitmap if v is not nullable. The bitmap aliases the vector's memory.
func (v *Vector) NullBitmap() memory.Bitmap {
	if !v.nullable {
		return memory.Bitmap{}
	}
	return v.nulls.Slice(v.offset, v.length)
}

// SetLen changes the length of v. Elements exposed by growing the length are
// zeroed and not null.
func (v *Vector) SetLen(n int) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	if n < 0 || n > v.capacity {
		return errs.Newf(errs.ErrOutOfBounds, "length %d exceeds capacity %d", n, v.capacity)
	}
	if n > v.length {
		w := v.typ.ElementWidth()
		clear(v.data[v.length*w : n*w])
		if v.nullable {
			v.nulls.SetRange(v.length, n, false)
		}
	}
	v.length = n
	return nil
}

// Reset sets the length of v to zero and discards VarBinary data.
func (v *Vector) Reset() {
	if v.view || v.released {
		return
	}
	v.length = 0
	if v.heap != nil {
		v.heap.n = 0
	}
}

// Get returns element i. Get returns [errs.ErrOutOfBounds] if i >= Len().
func (v *Vector) Get(i int) (datatype.Value, error) {
	if i < 0 || i >= v.length {
		return datatype.Value{}, errs.Newf(errs.ErrOutOfBounds, "index %d out of range [0, %d)", i, v.length)
	}
	return v.value(i), nil
}

// value returns element i without bounds checks.
func (v *Vector) value(i int) datatype.Value {
	if v.IsNull(i) {
		return datatype.NullOf(v.typ)
	}
	j := v.offset + i
	switch v.typ.Kind {
	case datatype.KindInt8:
		return datatype.NewInt8(memory.Cast[int8](v.data)[j])
	case datatype.KindInt16:
		return datatype.NewInt16(memory.Cast[int16](v.data)[j])
	case datatype.KindInt32:
		return datatype.NewInt32(memory.Cast[int32](v.data)[j])
	case datatype.KindInt64:
		return datatype.NewInt64(memory.Cast[int64](v.data)[j])
	case datatype.KindUInt8:
		return datatype.NewUInt8(v.data[j])
	case datatype.KindUInt16:
		return datatype.NewUInt16(memory.Cast[uint16](v.data)[j])
	case datatype.KindUInt32:
		return datatype.NewUInt32(memory.Cast[uint32](v.data)[j])
	case datatype.KindUInt64:
		return datatype.NewUInt64(memory.Cast[uint64](v.data)[j])
	case datatype.KindFloat32:
		return datatype.NewFloat32(memory.Cast[float32](v.data)[j])
	case datatype.KindFloat64:
		return datatype.NewFloat64(memory.Cast[float64](v.data)[j])
	case datatype.KindBool:
		return datatype.NewBool(v.data[j] != 0)
	case datatype.KindFixedBinary:
		return datatype.NewFixedBinary(v.Bytes(i))
	case datatype.KindVarBinary:
		return datatype.NewVarBinary(v.Bytes(i))
	}
	panic(fmt.Sprintf("unexpected vector type %s", v.typ))
}

// Bytes returns the bytes of element i of a FixedBinary or VarBinary vector.
// The result aliases vector memory.
func (v *Vector) Bytes(i int) []byte {
	j := v.offset + i
	switch v.typ.Kind {
	case datatype.KindFixedBinary:
		w := v.typ.Width
		return v.data[j*w : (j+1)*w : (j+1)*w]
	case datatype.KindVarBinary:
		s := memory.Cast[slot](v.data)[j]
		end := int(s.Offset + s.Length)
		return v.heap.buf[s.Offset:end:end]
	}
	return nil
}

// Bool returns element i of a Bool vector.
func (v *Vector) Bool(i int) bool { return v.data[v.offset+i] != 0 }

// Set stores value at index i.
//
// Set returns [errs.ErrTypeMismatch] if the type of value differs from the
// type of v, [errs.ErrNullNotAllowed] if value is null and v is not
// nullable, [errs.ErrOutOfBounds] if i >= Len() and [errs.ErrReadOnly] if v
// is a view.
func (v *Vector) Set(i int, value datatype.Value) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	if i < 0 || i >= v.length {
		return errs.Newf(errs.ErrOutOfBounds, "index %d out of range [0, %d)", i, v.length)
	}
	if value.Type() != v.typ {
		return errs.Newf(errs.ErrTypeMismatch, "cannot store %s in %s vector", value.Type(), v.typ)
	}
	if value.IsNull() {
		return v.SetNull(i)
	}
	if err := v.put(i, value); err != nil {
		return err
	}
	if v.nullable {
		v.nulls.Set(i, false)
	}
	return nil
}

// SetNull marks element i as null.
func (v *Vector) SetNull(i int) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	if i < 0 || i >= v.length {
		return errs.Newf(errs.ErrOutOfBounds, "index %d out of range [0, %d)", i, v.length)
	}
	if !v.nullable {
		return errs.Newf(errs.ErrNullNotAllowed, "vector of type %s is not nullable", v.typ)
	}
	v.nulls.Set(i, true)
	return nil
}

// Append stores value after the last element, growing the length by one.
func (v *Vector) Append(value datatype.Value) error {
	if v.length >= v.capacity {
		return errs.Newf(errs.ErrOutOfBounds, "vector is full (capacity %d)", v.capacity)
	}
	if err := v.SetLen(v.length + 1); err != nil {
		return err
	}
	if err := v.Set(v.length-1, value); err != nil {
		v.length--
		return err
	}
	return nil
}

// SetBytes stores b at index i of a binary vector. b is copied.
func (v *Vector) SetBytes(i int, b []byte) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	if i < 0 || i >= v.length {
		return errs.Newf(errs.ErrOutOfBounds, "index %d out of range [0, %d)", i, v.length)
	}
	if err := v.putBytes(i, b); err != nil {
		return err
	}
	if v.nullable {
		v.nulls.Set(i, false)
	}
	return nil
}

func (v *Vector) put(i int, value datatype.Value) error {
	switch v.typ.Kind {
	case datatype.KindInt8:
		memory.Cast[int8](v.data)[i] = int8(value.Int64())
	case datatype.KindInt16:
		memory.Cast[int16](v.data)[i] = int16(value.Int64())
	case datatype.KindInt32:
		memory.Cast[int32](v.data)[i] = int32(value.Int64())
	case datatype.KindInt64:
		memory.Cast[int64](v.data)[i] = value.Int64()
	case datatype.KindUInt8:
		v.data[i] = uint8(value.UInt64())
	case datatype.KindUInt16:
		memory.Cast[uint16](v.data)[i] = uint16(value.UInt64())
	case datatype.KindUInt32:
		memory.Cast[uint32](v.data)[i] = uint32(value.UInt64())
	case datatype.KindUInt64:
		memory.Cast[uint64](v.data)[i] = value.UInt64()
	case datatype.KindFloat32:
		memory.Cast[float32](v.data)[i] = float32(value.Float64())
	case datatype.KindFloat64:
		memory.Cast[float64](v.data)[i] = value.Float64()
	case datatype.KindBool:
		if value.Bool() {
			v.data[i] = 1
		} else {
			v.data[i] = 0
		}
	case datatype.KindFixedBinary, datatype.KindVarBinary:
		return v.putBytes(i, value.Bytes())
	}
	return nil
}

func (v *Vector) putBytes(i int, b []byte) error {
	switch v.typ.Kind {
	case datatype.KindFixedBinary:
		w := v.typ.Width
		if len(b) != w {
			return errs.Newf(errs.ErrTypeMismatch, "cannot store %d bytes in %s vector", len(b), v.typ)
		}
		copy(v.data[i*w:(i+1)*w], b)
		return nil
	case datatype.KindVarBinary:
		off, err := v.heap.append(v.alloc, b)
		if err != nil {
			return err
		}
		memory.Cast[slot](v.data)[i] = slot{Offset: off, Length: uint32(len(b))}
		return nil
	}
	return errs.Newf(errs.ErrTypeMismatch, "cannot store bytes in %s vector", v.typ)
}

func (h *heap) append(alloc *memory.Allocator, b []byte) (uint32, error) {
	if need := h.n + len(b); need > len(h.buf) {
		buf, err := alloc.Reallocate(max(need, 2*len(h.buf), 64), h.buf)
		if err != nil {
			return 0, err
		}
		h.buf = buf
	}
	off := h.n
	h.n += copy(h.buf[h.n:], b)
	return uint32(off), nil
}

// Slice returns a read-only view of n elements starting at start. The view
// shares the buffers of v and performs no allocation.
func (v *Vector) Slice(start, n int) (*Vector, error) {
	if start < 0 || n < 0 || start+n > v.length {
		return nil, errs.Newf(errs.ErrOutOfBounds, "slice [%d, %d) out of range [0, %d)", start, start+n, v.length)
	}
	view := *v
	view.offset = v.offset + start
	view.length = n
	view.capacity = n
	view.view = true
	return &view, nil
}

// View returns a read-only view of all elements of v.
func (v *Vector) View() *Vector {
	view, _ := v.Slice(0, v.length)
	return view
}

// Clone returns a deep copy of v owned by the caller, allocated from alloc
// (or the allocator of v if alloc is nil). The clone is writable.
func (v *Vector) Clone(alloc *memory.Allocator) (*Vector, error) {
	if alloc == nil {
		alloc = v.alloc
	}
	out, err := NewVector(alloc, v.typ, v.length, v.nullable)
	if err != nil {
		return nil, err
	}
	if err := out.SetLen(v.length); err != nil {
		out.Release()
		return nil, err
	}

	w := v.typ.ElementWidth()
	if v.typ.Kind == datatype.KindVarBinary {
		for i := range v.length {
			if v.IsNull(i) {
				continue
			}
			if err := out.putBytes(i, v.Bytes(i)); err != nil {
				out.Release()
				return nil, err
			}
		}
	} else {
		copy(out.data, v.data[v.offset*w:(v.offset+v.length)*w])
	}
	if v.nullable {
		out.nulls.CopyFrom(v.nulls, v.offset, 0, v.length)
	}
	return out, nil
}

// SetNullable changes whether v may hold nulls. Making a vector that holds
// nulls non-nullable fails with [errs.ErrNullNotAllowed].
func (v *Vector) SetNullable(nullable bool) error {
	if err := v.checkWritable(); err != nil {
		return err
	}
	switch {
	case nullable == v.nullable:
		return nil
	case nullable:
		nulls, err := memory.NewBitmap(v.alloc, v.capacity)
		if err != nil {
			return err
		}
		v.nulls = nulls
	default:
		if v.NullCount() > 0 {
			return errs.Newf(errs.ErrNullNotAllowed, "vector holds %d nulls", v.NullCount())
		}
		v.nulls.Release()
	}
	v.nullable = nullable
	return nil
}

// Release returns the buffers of v to its allocator. Release is a no-op on
// views and on already released vectors. A released vector must not be
// used.
func (v *Vector) Release() {
	if v == nil || v.view || v.released {
		return
	}
	v.released = true
	v.alloc.Free(v.data)
	v.nulls.Release()
	if v.heap != nil {
		v.alloc.Free(v.heap.buf)
		v.heap.buf, v.heap.n = nil, 0
	}
	v.data = nil
	v.length, v.capacity = 0, 0
}

func (v *Vector) checkWritable() error {
	switch {
	case v.released:
		return errs.Newf(errs.ErrInvalidState, "vector has been released")
	case v.view:
		return errs.Newf(errs.ErrReadOnly, "cannot write through a vector view")
	}
	return nil
}

// String returns a short description of v.
func (v *Vector) String() string {
	return fmt.Sprintf("Vector(%s, len=%d, cap=%d, nullable=%t)", v.typ, v.length, v.capacity, v.nullable)
}
