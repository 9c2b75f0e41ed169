package container

import "fmt"

// Key addresses a slab slot. Gen is bumped every time the slot is freed, so a Key kept
// past the removal of its value no longer resolves, even after the index is reused.
type Key struct {
	Index int32
	Gen   uint32
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Index, k.Gen)
}

type slot[T any] struct {
	value    T
	gen      uint32
	occupied bool
}

// Slab is a fixed capacity arena with O(1) insert, lookup and removal. Freed indices are
// reused most recently freed first.
type Slab[T any] struct {
	slots    []slot[T]
	free     []int32
	count    int
	capacity int
}

func NewSlab[T any](capacity int) *Slab[T] {
	return &Slab[T]{
		slots:    make([]slot[T], 0, capacity),
		capacity: capacity,
	}
}

// Insert stores the value built by fn in a vacant slot. fn receives the key the value
// will live under. ok is false, and fn is not called, when every slot is taken.
func (s *Slab[T]) Insert(fn func(Key) T) (key Key, ok bool) {
	var idx int32
	switch {
	case len(s.free) > 0:
		idx = s.free[len(s.free)-1]
		s.free = s.free[:len(s.free)-1]
	case len(s.slots) < s.capacity:
		idx = int32(len(s.slots))
		s.slots = append(s.slots, slot[T]{})
	default:
		return Key{}, false
	}

	sl := &s.slots[idx]
	key = Key{Index: idx, Gen: sl.gen}
	sl.value = fn(key)
	sl.occupied = true
	s.count++
	return key, true
}

// Get returns the value stored under key, if key is still live.
func (s *Slab[T]) Get(key Key) (value T, ok bool) {
	if !s.Contains(key) {
		return value, false
	}
	return s.slots[key.Index].value, true
}

func (s *Slab[T]) Contains(key Key) bool {
	if key.Index < 0 || int(key.Index) >= len(s.slots) {
		return false
	}
	sl := &s.slots[key.Index]
	return sl.occupied && sl.gen == key.Gen
}

// Remove frees the slot behind key and returns its value.
func (s *Slab[T]) Remove(key Key) (value T, ok bool) {
	if !s.Contains(key) {
		return value, false
	}
	sl := &s.slots[key.Index]
	value = sl.value
	var zero T
	sl.value = zero
	sl.occupied = false
	sl.gen++
	s.free = append(s.free, key.Index)
	s.count--
	return value, true
}

// Range calls fn for every live value in index order until fn returns false.
func (s *Slab[T]) Range(fn func(Key, T) bool) {
	for i := range s.slots {
		sl := &s.slots[i]
		if !sl.occupied {
			continue
		}
		if !fn(Key{Index: int32(i), Gen: sl.gen}, sl.value) {
			return
		}
	}
}

func (s *Slab[T]) Len() int {
	return s.count
}

func (s *Slab[T]) Cap() int {
	return s.capacity
}
