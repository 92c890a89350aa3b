package engine

import (
	"github.com/roach88/supercollider/internal/cache"
	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

// Record describes one executed work-list entry.
type Record struct {
	Frame    int64
	Position int // index in the work list
	Key      cache.Key
	Pair     classify.PairKind
	A, B     object.Handle
	Path     cache.Path
	Result   handler.Result
	Effect   handler.Effect // nil unless Result is Collision on the parallel path
	Applied  bool           // an executor or fallback ran
}

// Observer is notified of every executed entry, in execute order, on the
// frame goroutine.
type Observer interface {
	Observe(Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Record)

// Observe implements Observer.
func (f ObserverFunc) Observe(r Record) { f(r) }

// Stats counts what happened in one Clear..Run cycle.
type Stats struct {
	Frame int64

	Submitted  int
	Rejected   int // stale, self, non-colliding or parent/child
	Unbound    int // no handler for the kind pair
	EarlyOut   int // beam could not reach its target
	Throttled  int
	Pruned     int
	Duplicates int
	Admitted   int

	Parallel   int // evaluated on a worker
	Sequential int // evaluated on the frame goroutine
	Deferred   int // assignment attempts skipped for a shared participant
	Executed   int
	Applied    int

	MaxWorkers int // most workers busy at once
}
