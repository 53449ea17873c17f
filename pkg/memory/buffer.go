package memory

import "github.com/grafana/vexec/pkg/memory/internal/unsafecast"

// Cast reinterprets a buffer obtained from an [Allocator] as a slice of T.
func Cast[T any](buf []byte) []T { return unsafecast.Slice[T](buf) }

// Sizeof returns the size of T in bytes.
func Sizeof[T any]() int { return unsafecast.Sizeof[T]() }
