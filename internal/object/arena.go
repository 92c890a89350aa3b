package object

import (
	"errors"
	"fmt"
)

// ErrArenaFull is returned by Spawn when every slot is occupied.
var ErrArenaFull = errors.New("object arena full")

type slot struct {
	obj  Object
	live bool
}

// Arena is a fixed-capacity slot store for objects.
//
// Slots are reused after Kill; every Spawn issues a fresh signature from a
// monotonically increasing counter, so a Handle held across a death and
// respawn no longer resolves.
//
// Thread-safety: Arena is not synchronized. Mutate it only between frames;
// concurrent reads (Get, Resolve) are safe while no goroutine mutates it.
type Arena struct {
	slots   []slot
	free    []int // LIFO free list
	nextSig uint64
	live    int
}

// NewArena creates an arena with room for capacity objects.
func NewArena(capacity int) *Arena {
	a := &Arena{
		slots: make([]slot, capacity),
		free:  make([]int, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		a.free = append(a.free, i)
	}
	return a
}

// Spawn places o in a free slot and returns its new handle.
// The stored object's Handle field is overwritten.
func (a *Arena) Spawn(o Object) (Handle, error) {
	if len(a.free) == 0 {
		return Handle{}, ErrArenaFull
	}
	idx := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]

	a.nextSig++
	if a.nextSig == 0 {
		a.nextSig = 1
	}
	h := Handle{Index: idx, Signature: a.nextSig}
	o.Handle = h
	a.slots[idx] = slot{obj: o, live: true}
	a.live++
	return h, nil
}

// Kill frees the slot referenced by h. It returns false if h is stale.
func (a *Arena) Kill(h Handle) bool {
	if a.Resolve(h) == nil {
		return false
	}
	a.slots[h.Index] = slot{}
	a.free = append(a.free, h.Index)
	a.live--
	return true
}

// Get returns the live object at index, or nil.
func (a *Arena) Get(index int) *Object {
	if index < 0 || index >= len(a.slots) || !a.slots[index].live {
		return nil
	}
	return &a.slots[index].obj
}

// Resolve returns the object for h only if the slot still holds the same occupant.
func (a *Arena) Resolve(h Handle) *Object {
	o := a.Get(h.Index)
	if o == nil || o.Handle.Signature != h.Signature {
		return nil
	}
	return o
}

// Signature returns the current occupant's signature at index.
func (a *Arena) Signature(index int) (uint64, bool) {
	o := a.Get(index)
	if o == nil {
		return 0, false
	}
	return o.Handle.Signature, true
}

// Live returns the indices of all live objects in ascending order.
func (a *Arena) Live() []int {
	out := make([]int, 0, a.live)
	for i := range a.slots {
		if a.slots[i].live {
			out = append(out, i)
		}
	}
	return out
}

// Len returns the number of live objects.
func (a *Arena) Len() int { return a.live }

// MustSpawn is Spawn for fixtures; it panics when the arena is full.
func (a *Arena) MustSpawn(o Object) Handle {
	h, err := a.Spawn(o)
	if err != nil {
		panic(fmt.Sprintf("spawn %s: %v", o.Kind, err))
	}
	return h
}
