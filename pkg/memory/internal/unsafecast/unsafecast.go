// Package unsafecast reinterprets raw byte buffers as typed element slices.
package unsafecast

import "unsafe"

// Sizeof returns the size of T in bytes.
func Sizeof[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Slice reinterprets a byte buffer as a slice of T. The length of the result
// is len(in)/Sizeof[T](); trailing bytes are not addressable through it.
//
// The caller is responsible for in being suitably aligned for T.
func Slice[T any](in []byte) []T {
	size := Sizeof[T]()
	if len(in) < size {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(in))), len(in)/size)
}

// Bytes reinterprets a slice of T as its raw bytes.
func Bytes[T any](in []T) []byte {
	if len(in) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(in))), len(in)*Sizeof[T]())
}
