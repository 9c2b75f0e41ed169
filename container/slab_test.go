package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlabInsertGet(t *testing.T) {
	s := NewSlab[string](2)

	k1, ok := s.Insert(func(k Key) string { return "a" + k.String() })
	require.True(t, ok)
	k2, ok := s.Insert(func(Key) string { return "b" })
	require.True(t, ok)

	assert.NotEqual(t, k1.Index, k2.Index)
	v, ok := s.Get(k1)
	assert.True(t, ok)
	assert.Equal(t, "a0/0", v)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, s.Cap())
}

func TestSlabExhaustion(t *testing.T) {
	s := NewSlab[int](1)
	_, ok := s.Insert(func(Key) int { return 1 })
	require.True(t, ok)

	called := false
	_, ok = s.Insert(func(Key) int { called = true; return 2 })
	assert.False(t, ok)
	assert.False(t, called)
}

func TestSlabReuseBumpsGeneration(t *testing.T) {
	s := NewSlab[int](1)
	old, _ := s.Insert(func(Key) int { return 1 })

	v, ok := s.Remove(old)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 0, s.Len())

	reused, ok := s.Insert(func(Key) int { return 2 })
	require.True(t, ok)
	assert.Equal(t, old.Index, reused.Index)
	assert.NotEqual(t, old.Gen, reused.Gen)

	// the stale key must not alias the new occupant
	_, ok = s.Get(old)
	assert.False(t, ok)
	_, ok = s.Remove(old)
	assert.False(t, ok)

	v, ok = s.Get(reused)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestSlabReusesMostRecentlyFreed(t *testing.T) {
	s := NewSlab[int](3)
	keys := make([]Key, 3)
	for i := range keys {
		keys[i], _ = s.Insert(func(Key) int { return i })
	}
	s.Remove(keys[0])
	s.Remove(keys[2])

	k, _ := s.Insert(func(Key) int { return 9 })
	assert.Equal(t, keys[2].Index, k.Index)
}

func TestSlabContainsOutOfRange(t *testing.T) {
	s := NewSlab[int](4)
	assert.False(t, s.Contains(Key{Index: -1}))
	assert.False(t, s.Contains(Key{Index: 3}))
}

func TestSlabRange(t *testing.T) {
	s := NewSlab[int](4)
	for i := 0; i < 4; i++ {
		s.Insert(func(Key) int { return i * 10 })
	}
	s.Remove(Key{Index: 1, Gen: 0})

	var seen []int
	s.Range(func(_ Key, v int) bool {
		seen = append(seen, v)
		return true
	})
	assert.Equal(t, []int{0, 20, 30}, seen)

	var first []int
	s.Range(func(_ Key, v int) bool {
		first = append(first, v)
		return false
	})
	assert.Equal(t, []int{0}, first)
}
