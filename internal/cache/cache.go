package cache

import (
	"fmt"

	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

// NextCheck is the frame-clock time (ms) at which a pair becomes eligible
// for another check.
type NextCheck int64

const (
	// Never marks a pair that is permanently skipped.
	Never NextCheck = -1
	// Immediately marks a pair that is due now.
	Immediately NextCheck = 0
)

// State is the per-frame processing state of an entry. It only moves forward.
type State uint8

const (
	Unprocessed State = iota
	Busy
	Evaluated
	Executed
)

var stateNames = [...]string{
	Unprocessed: "unprocessed",
	Busy:        "busy",
	Evaluated:   "evaluated",
	Executed:    "executed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// Path records how an entry was evaluated this frame.
type Path uint8

const (
	// PathParallel entries were evaluated by a pool worker and executed separately.
	PathParallel Path = iota
	// PathSequential entries ran the combined check-and-apply step during execute.
	PathSequential
)

func (p Path) String() string {
	if p == PathSequential {
		return "sequential"
	}
	return "parallel"
}

// ParsePath converts a path name back to a Path.
func ParsePath(s string) (Path, error) {
	switch s {
	case "parallel":
		return PathParallel, nil
	case "sequential":
		return PathSequential, nil
	}
	return 0, fmt.Errorf("unknown path %q", s)
}

// Key addresses an entry. It is derived from the canonicalized participant
// indices, so one unordered pair produces one key.
type Key struct {
	A, B int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.A, k.B)
}

// KeyOf derives the key for two participants already in canonical order.
func KeyOf(first, second *object.Object) Key {
	return Key{A: first.Handle.Index, B: second.Handle.Index}
}

// Entry is the persistent per-pair record.
//
// Entries are owned by the goroutine driving frames. Pool workers never
// receive an *Entry; they get the participants and hand back a result.
type Entry struct {
	Key     Key
	A, B    object.Handle
	Binding *classify.Binding

	NextCheck NextCheck

	State  State
	Path   Path
	Result handler.Result
	Effect handler.Effect

	pass   uint64 // submission pass of the last admission
	queued bool   // admitted at least once; pass is meaningful
	inited bool
}

// Pair returns the binding's pair kind.
func (e *Entry) Pair() classify.PairKind {
	return e.Binding.Pair
}

// Shares reports whether e and other have a participant index in common.
func (e *Entry) Shares(other *Entry) bool {
	return e.A.Index == other.A.Index || e.A.Index == other.B.Index ||
		e.B.Index == other.A.Index || e.B.Index == other.B.Index
}

// Verdict is the outcome of offering a pair to the cache.
type Verdict uint8

const (
	// Admitted means the pair goes on the work list.
	Admitted Verdict = iota
	// Throttled means the pair is not due yet or is marked Never.
	Throttled
	// Pruned means a submission-time heuristic proved the pair can never collide.
	Pruned
	// Duplicate means the pair was already admitted in this pass.
	Duplicate
)

var verdictNames = [...]string{
	Admitted:  "admitted",
	Throttled: "throttled",
	Pruned:    "pruned",
	Duplicate: "duplicate",
}

func (v Verdict) String() string {
	if int(v) < len(verdictNames) {
		return verdictNames[v]
	}
	return fmt.Sprintf("verdict(%d)", v)
}

// Cache is the keyed store of entries.
//
// Thread-safety: not synchronized. Only the frame goroutine touches it.
type Cache struct {
	arena   *object.Arena
	entries map[Key]*Entry
}

// New creates a cache that validates identities against arena.
func New(arena *object.Arena) *Cache {
	return &Cache{
		arena:   arena,
		entries: make(map[Key]*Entry),
	}
}

// GetOrInit returns the entry for key, creating it or hard-resetting it as
// needed. fresh is true when the entry was created or reset, meaning no
// cached throttling state applies.
//
// A reset keeps the submission pass, so an entry already on this pass's work
// list is refreshed in its slot rather than admitted a second time.
func (c *Cache) GetOrInit(key Key, first, second *object.Object, bind *classify.Binding) (e *Entry, fresh bool) {
	e, ok := c.entries[key]
	if !ok {
		e = &Entry{Key: key}
		c.entries[key] = e
	}
	if e.inited && c.current(e.A) && c.current(e.B) && e.Binding == bind {
		return e, false
	}
	*e = Entry{
		Key:       key,
		A:         first.Handle,
		B:         second.Handle,
		Binding:   bind,
		NextCheck: Immediately,
		pass:      e.pass,
		queued:    e.queued,
		inited:    true,
	}
	return e, true
}

func (c *Cache) current(h object.Handle) bool {
	sig, ok := c.arena.Signature(h.Index)
	return ok && sig == h.Signature
}

// IsDue reports whether e may be checked at now.
func IsDue(e *Entry, now int64) bool {
	if e.NextCheck == Never {
		return false
	}
	return int64(e.NextCheck) <= now
}

// Admit offers a canonicalized pair for the submission pass pass at
// frame-clock time now. The first lookup of a pass resets the entry to
// Unprocessed whatever the verdict.
//
// An entry admitted earlier in the same pass is reported Duplicate even when
// a slot was reused in between; it then carries the new participants in its
// existing work-list slot.
func (c *Cache) Admit(first, second *object.Object, bind *classify.Binding, pass uint64, now int64) (*Entry, Verdict) {
	e, fresh := c.GetOrInit(KeyOf(first, second), first, second, bind)

	if e.queued && e.pass == pass {
		return e, Duplicate
	}
	e.State = Unprocessed

	if !fresh && !bind.Pair.IsBeam() {
		if !IsDue(e, now) {
			return e, Throttled
		}
	} else if prune(c.arena, bind.Pair, first, second) {
		e.NextCheck = Never
		return e, Pruned
	}

	e.pass = pass
	e.queued = true
	e.Path = PathParallel
	e.Result = handler.Unevaluated
	e.Effect = nil
	return e, Admitted
}

// Get returns the entry for key.
func (c *Cache) Get(key Key) (*Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// Len returns the number of entries ever created.
func (c *Cache) Len() int {
	return len(c.entries)
}
