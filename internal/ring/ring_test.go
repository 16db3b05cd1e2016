package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushOverwritesOldest(t *testing.T) {
	r := New[int](3)
	for i := 1; i <= 4; i++ {
		r.Push(i)
	}
	require.Equal(t, 3, r.Len())

	v, ok := r.Get(0)
	assert.True(t, ok)
	assert.Equal(t, 4, v)
	v, _ = r.Get(1)
	assert.Equal(t, 3, v)
	v, _ = r.Get(2)
	assert.Equal(t, 2, v)

	_, ok = r.Get(3)
	assert.False(t, ok, "oldest entry must be gone")
}

func TestGetBeforeFull(t *testing.T) {
	r := New[string](3)
	_, ok := r.Get(0)
	assert.False(t, ok)

	r.Push("a")
	v, ok := r.Get(0)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	_, ok = r.Get(1)
	assert.False(t, ok)
	_, ok = r.Get(-1)
	assert.False(t, ok)
}

func TestRestoreClamps(t *testing.T) {
	r := New[int](3)
	r.Restore(7, 9, []int{10, 20, 30})
	assert.Equal(t, 0, r.Head())
	assert.Equal(t, 3, r.Len())
	v, _ := r.Get(0)
	assert.Equal(t, 30, v)

	src := New[int](3)
	src.Push(1)
	src.Push(2)
	dst := New[int](3)
	dst.Restore(src.Head(), src.Len(), src.Slots())
	for i := 0; i < 2; i++ {
		a, _ := src.Get(i)
		b, _ := dst.Get(i)
		assert.Equal(t, a, b)
	}
}
