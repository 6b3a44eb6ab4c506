package set

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBits(t *testing.T) {
	var s Bits[int]

	assert.False(t, s.IsSet(0))
	assert.False(t, s.IsSet(1000))
	assert.Equal(t, 0, s.Size())

	assert.True(t, s.Add(3))
	assert.False(t, s.Add(3))

	s.Set(64)
	s.Set(200)
	s.Set(0)

	assert.True(t, s.IsSet(64))
	assert.True(t, s.IsSet(200))
	assert.False(t, s.IsSet(65))
	assert.Equal(t, 4, s.Size())

	var l []int
	s.Range(func(k int) bool {
		l = append(l, k)
		return true
	})

	assert.Equal(t, []int{0, 3, 64, 200}, l)

	l = l[:0]
	s.Range(func(k int) bool {
		l = append(l, k)
		return k < 3
	})

	assert.Equal(t, []int{0, 3}, l)

	s.Clear(64)
	s.Clear(1 << 20)
	assert.False(t, s.IsSet(64))
	assert.Equal(t, 3, s.Size())

	s.Reset()
	assert.Equal(t, 0, s.Size())
	assert.False(t, s.IsSet(3))

	assert.Panics(t, func() { s.Set(-1) })
}
