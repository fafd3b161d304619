package glim

import "fmt"

// slot is one arena entry. The generation survives removal so stale
// keys are detectable after the slot is recycled.
type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// arena is a generational slot map for one resource kind. Inserting
// returns a key carrying the slot index and current generation; removal
// bumps the generation and recycles the index through a free list.
type arena[T any] struct {
	kind  ResourceKind
	slots []slot[T]
	free  []uint32
	count int
}

func newArena[T any](kind ResourceKind) *arena[T] {
	return &arena[T]{kind: kind}
}

// insert stores v and returns its key.
func (a *arena[T]) insert(v T) ResourceKey {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[idx].value = v
		a.slots[idx].live = true
	} else {
		idx = uint32(len(a.slots))
		// Generations start at 1 so a live key is never the zero key.
		a.slots = append(a.slots, slot[T]{value: v, generation: 1, live: true})
	}
	a.count++
	return ResourceKey{index: idx, generation: a.slots[idx].generation, kind: a.kind}
}

// get returns the value addressed by key.
func (a *arena[T]) get(key ResourceKey) (*T, error) {
	if key.kind != a.kind {
		return nil, fmt.Errorf("%w: %s key in %s table", ErrNotFound, key.kind, a.kind)
	}
	if int(key.index) >= len(a.slots) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	s := &a.slots[key.index]
	if !s.live || s.generation != key.generation {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, key)
	}
	return &s.value, nil
}

// remove destroys the entry addressed by key and returns its value.
// The slot's generation is bumped so the key (and any copy of it) goes
// stale immediately.
func (a *arena[T]) remove(key ResourceKey) (T, error) {
	var zero T
	v, err := a.get(key)
	if err != nil {
		return zero, err
	}
	out := *v
	s := &a.slots[key.index]
	s.value = zero
	s.live = false
	s.generation++
	a.free = append(a.free, key.index)
	a.count--
	return out, nil
}

// len returns the number of live entries.
func (a *arena[T]) len() int { return a.count }

// each calls fn for every live entry.
func (a *arena[T]) each(fn func(ResourceKey, *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.live {
			fn(ResourceKey{index: uint32(i), generation: s.generation, kind: a.kind}, &s.value)
		}
	}
}
