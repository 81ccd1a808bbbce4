package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPushEvictsOldest(t *testing.T) {
	b := New[int](3)
	assert.False(t, b.Push(1))
	assert.False(t, b.Push(2))
	assert.False(t, b.Push(3))
	assert.True(t, b.Push(4))
	assert.True(t, b.Push(5))

	assert.Equal(t, 3, b.Len())
	assert.Equal(t, []int{3, 4, 5}, b.Slice())
	last, ok := b.Last()
	assert.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestNeverExceedsCapacity(t *testing.T) {
	b := New[int](7)
	for i := 0; i < 1000; i++ {
		b.Push(i)
		assert.LessOrEqual(t, b.Len(), b.Cap())
	}
	assert.Equal(t, []int{993, 994, 995, 996, 997, 998, 999}, b.Slice())
}

func TestEmpty(t *testing.T) {
	b := New[int](0)
	assert.Equal(t, 1, b.Cap())
	_, ok := b.Last()
	assert.False(t, ok)
	assert.Panics(t, func() { b.At(0) })
}
