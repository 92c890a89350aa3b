package engine

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/roach88/supercollider/internal/broadphase"
	"github.com/roach88/supercollider/internal/cache"
	"github.com/roach88/supercollider/internal/classify"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

const (
	// DefaultSafetyTimeout bounds one frame's dispatch loop.
	DefaultSafetyTimeout = 5 * time.Second

	// DefaultSortGrain is the per-worker range size below which the
	// broad-phase sort stays on one goroutine.
	DefaultSortGrain = 32
)

// Engine runs the per-frame collision pipeline.
//
// Thread-safety model:
//   - Clear, Submit, SubmitColliders, Run, Step and Close must be called
//     from one goroutine (the frame goroutine).
//   - Pool workers only run handler Evaluate functions, on participants
//     handed to them by the dispatcher.
//
// INVARIANTS:
//   - no two workers hold jobs with a participant in common
//   - executes happen on the frame goroutine, in work-list order
//   - every admitted entry reaches Executed exactly once per Run
type Engine struct {
	arena    *object.Arena
	registry *classify.Registry
	cache    *cache.Cache
	sorter   *broadphase.Sorter
	pool     *pool
	clock    *Clock
	mutator  handler.Mutator
	observer Observer
	fatal    FatalHandler
	logger   *slog.Logger

	workers       int
	safetyTimeout time.Duration
	sortGrain     int
	recheck       [classify.NumPairKinds]int64

	work   []*cache.Entry
	cursor int // first work-list slot that may still need a worker
	pass   uint64
	stats  Stats
	record int // most workers ever busy in one Run
	halted bool
	closed bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the worker pool size. Values below 1 are clamped to 1,
// which evaluates every pair on the frame goroutine.
//
// Default: GOMAXPROCS
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithSafetyTimeout bounds how long one frame may spend dispatching.
//
// Default: 5s (DefaultSafetyTimeout)
func WithSafetyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.safetyTimeout = d
	}
}

// WithRecheckIntervals sets how long, in simulated milliseconds, a pair of
// the given kind waits before being checked again. Kinds not present keep
// their current interval (0 by default: every frame).
func WithRecheckIntervals(ms map[classify.PairKind]int64) Option {
	return func(e *Engine) {
		for p, v := range ms {
			if p < classify.NumPairKinds {
				e.recheck[p] = v
			}
		}
	}
}

// WithSortGrain sets the broad-phase parallel sort grain.
//
// Default: 32 (DefaultSortGrain)
func WithSortGrain(n int) Option {
	return func(e *Engine) {
		e.sortGrain = n
	}
}

// WithFatalHandler replaces DefaultFatalHandler.
func WithFatalHandler(h FatalHandler) Option {
	return func(e *Engine) {
		e.fatal = h
	}
}

// WithMutator sets the state executors apply effects to.
//
// Default: a fresh handler.World
func WithMutator(m handler.Mutator) Option {
	return func(e *Engine) {
		e.mutator = m
	}
}

// WithObserver registers a hook called once per executed entry.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// WithClock sets the frame clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over arena using the bindings in reg and starts its
// worker pool. Options are applied in order.
//
// New returns a FatalError with ErrCodeResourceCreation if the engine
// cannot be started; callers are expected to abort.
func New(arena *object.Arena, reg *classify.Registry, opts ...Option) (*Engine, error) {
	if arena == nil {
		return nil, NewStartupError("nil object arena")
	}
	if reg == nil {
		return nil, NewStartupError("nil handler registry")
	}

	e := &Engine{
		arena:         arena,
		registry:      reg,
		cache:         cache.New(arena),
		clock:         NewClock(),
		fatal:         DefaultFatalHandler,
		workers:       runtime.GOMAXPROCS(0),
		safetyTimeout: DefaultSafetyTimeout,
		sortGrain:     DefaultSortGrain,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.mutator == nil {
		e.mutator = handler.NewWorld(e.logger)
	}
	if e.fatal == nil {
		e.fatal = DefaultFatalHandler
	}
	if e.clock == nil {
		e.clock = NewClock()
	}
	if e.workers < 1 {
		e.workers = 1
	}
	if e.safetyTimeout <= 0 {
		return nil, NewStartupError(fmt.Sprintf("safety timeout must be positive, got %s", e.safetyTimeout))
	}
	for p, v := range e.recheck {
		if v < 0 {
			return nil, NewStartupError(fmt.Sprintf("negative recheck interval for %s", classify.PairKind(p)))
		}
	}

	e.sorter = broadphase.NewSorter(e.workers, e.sortGrain)
	if e.workers > 1 {
		e.pool = newPool(e.workers)
	}

	e.logger.Debug("collision engine started",
		"workers", e.workers,
		"safety_timeout", e.safetyTimeout,
		"sort_grain", e.sortGrain,
	)
	return e, nil
}

// Clock returns the engine's frame clock.
func (e *Engine) Clock() *Clock { return e.clock }

// Workers returns the pool size after clamping.
func (e *Engine) Workers() int { return e.workers }

// Stats returns the counters of the most recent Clear..Run cycle.
func (e *Engine) Stats() Stats { return e.stats }

// WorkersRecord returns the most workers ever busy during one Run.
func (e *Engine) WorkersRecord() int { return e.record }

// Halted reports whether a fatal error stopped the engine.
func (e *Engine) Halted() bool { return e.halted }

// WorkList returns a copy of the current work list.
func (e *Engine) WorkList() []*cache.Entry {
	out := make([]*cache.Entry, len(e.work))
	copy(out, e.work)
	return out
}

// Clear empties the work list and starts a new submission pass.
func (e *Engine) Clear() {
	for i := range e.work {
		e.work[i] = nil
	}
	e.work = e.work[:0]
	e.pass++
	e.stats = Stats{Frame: e.clock.Frame()}
}

// Step runs one full frame over the given arena indices: Clear, broad phase
// and Submit, then Run.
func (e *Engine) Step(indices []int) {
	e.Clear()
	e.SubmitColliders(indices)
	e.Run()
}

// SubmitColliders projects every live, colliding object among indices,
// runs the broad-phase sweep and submits each overlapping pair.
func (e *Engine) SubmitColliders(indices []int) {
	colliders := make([]broadphase.Collider, 0, len(indices))
	for _, idx := range indices {
		o := e.arena.Get(idx)
		if o == nil || !o.Has(object.FlagCollides) {
			continue
		}
		colliders = append(colliders, broadphase.Project(o))
	}
	for _, p := range e.sorter.Overlaps(colliders) {
		a, b := e.arena.Get(p.A), e.arena.Get(p.B)
		e.Submit(a.Handle, b.Handle)
	}
}

// Close stops the worker pool and waits for every worker to exit.
//
// After a stall a worker may never return from its evaluator, so a halted
// engine signals its workers without joining them.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.pool != nil {
		e.pool.close(!e.halted)
	}
	e.logger.Debug("collision engine stopped", "workers_record", e.record)
}
