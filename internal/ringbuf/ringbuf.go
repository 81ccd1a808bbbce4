// Package ringbuf provides a fixed-capacity FIFO that evicts its oldest
// element on overflow.
package ringbuf

// Buffer is a fixed-capacity ring. The zero value is unusable; use New.
// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	start int
	size  int
}

// New creates a buffer holding at most capacity elements.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full. It reports whether
// an element was evicted.
func (b *Buffer[T]) Push(v T) bool {
	c := len(b.items)
	if b.size < c {
		b.items[(b.start+b.size)%c] = v
		b.size++
		return false
	}
	b.items[b.start] = v
	b.start = (b.start + 1) % c
	return true
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int { return b.size }

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int { return len(b.items) }

// At returns the i-th element, oldest first. It panics when i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ringbuf: index out of range")
	}
	return b.items[(b.start+i)%len(b.items)]
}

// Last returns the newest element.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.At(b.size - 1), true
}

// Slice copies the contents, oldest first.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}
