package engine

import (
	"time"

	"github.com/roach88/supercollider/internal/cache"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

// Run evaluates every entry on the work list, then executes them in order.
// It returns once all effects have been applied.
//
// If the work list does not drain within the safety timeout the fatal
// handler is called. Should it return, Run skips the execute phase and the
// engine refuses all further Runs.
func (e *Engine) Run() {
	if e.halted || e.closed {
		e.logger.Warn("run on stopped engine ignored", "halted", e.halted, "closed", e.closed)
		return
	}
	if len(e.work) == 0 {
		return
	}

	if !e.evaluate() {
		return
	}
	e.execute()

	if e.stats.MaxWorkers > e.record {
		e.record = e.stats.MaxWorkers
	}
	e.logger.Debug("collision frame done",
		"frame", e.stats.Frame,
		"submitted", e.stats.Submitted,
		"admitted", e.stats.Admitted,
		"throttled", e.stats.Throttled,
		"pruned", e.stats.Pruned,
		"parallel", e.stats.Parallel,
		"sequential", e.stats.Sequential,
		"deferred", e.stats.Deferred,
		"applied", e.stats.Applied,
		"workers_used", e.stats.MaxWorkers,
		"workers_record", e.record,
	)
}

// evaluate drives every entry to Evaluated. It returns false if the frame
// stalled.
func (e *Engine) evaluate() bool {
	pending := 0
	e.cursor = len(e.work)
	for i, en := range e.work {
		if e.pool == nil || !en.Binding.Handler.Parallel() {
			en.Path = cache.PathSequential
			en.State = cache.Evaluated
			e.stats.Sequential++
			continue
		}
		en.Path = cache.PathParallel
		// a participant replaced after admission is skipped at execute
		if e.arena.Resolve(en.A) == nil || e.arena.Resolve(en.B) == nil {
			en.State = cache.Evaluated
			continue
		}
		if i < e.cursor {
			e.cursor = i
		}
		pending++
	}
	if pending == 0 {
		return true
	}

	timer := time.NewTimer(e.safetyTimeout)
	defer timer.Stop()

	for pending > 0 {
		e.assignIdle()

		select {
		case r := <-e.pool.outbox:
			pending -= e.complete(r)
		case <-timer.C:
			e.stall(pending)
			return false
		}
		// drain whatever else finished without blocking
		for drained := false; !drained; {
			select {
			case r := <-e.pool.outbox:
				pending -= e.complete(r)
			default:
				drained = true
			}
		}
	}

	// every reply has been received, so no worker holds a job
	if busy := e.pool.busyCount(); busy != 0 {
		e.stall(busy)
		return false
	}
	return true
}

// assignIdle walks the work list in order from the first unassigned entry
// and hands each unprocessed entry to an idle worker, deferring entries that
// share a participant with a busy worker.
func (e *Engine) assignIdle() {
	for e.cursor < len(e.work) && !e.waiting(e.work[e.cursor]) {
		e.cursor++
	}
	for slot := e.cursor; slot < len(e.work); slot++ {
		en := e.work[slot]
		if !e.waiting(en) {
			continue
		}
		if e.pool.conflicts(en) {
			e.stats.Deferred++
			continue
		}
		w := e.pool.idle()
		if w == nil {
			return
		}
		en.State = cache.Busy
		e.pool.assign(w, en, job{
			gen:  e.pass,
			slot: slot,
			eval: en.Binding.Handler.Evaluate,
			a:    e.arena.Resolve(en.A),
			b:    e.arena.Resolve(en.B),
		})
		e.stats.Parallel++
		if busy := e.pool.busyCount(); busy > e.stats.MaxWorkers {
			e.stats.MaxWorkers = busy
		}
	}
}

// waiting reports whether en still needs a worker.
func (e *Engine) waiting(en *cache.Entry) bool {
	return en.State == cache.Unprocessed && en.Path == cache.PathParallel
}

// complete records a worker's reply and returns how many entries it
// finished (0 for a reply from an abandoned frame).
func (e *Engine) complete(r reply) int {
	e.pool.release(r)
	if r.gen != e.pass || r.slot >= len(e.work) {
		return 0
	}
	en := e.work[r.slot]
	en.Result = r.result
	if r.result == handler.Collision {
		en.Effect = r.effect
	}
	en.State = cache.Evaluated
	return 1
}

func (e *Engine) stall(pending int) {
	e.halted = true
	stuck := make([]string, 0, pending)
	for _, en := range e.work {
		if en.State == cache.Busy || en.State == cache.Unprocessed {
			stuck = append(stuck, en.Pair().String()+"@"+en.Key.String())
		}
	}
	err := NewStallError(e.stats.Frame, pending, e.pool.busyCount(), e.safetyTimeout.String(), stuck)
	e.fatal(err)
}

// execute applies effects serially in work-list order and updates each
// entry's next check time.
func (e *Engine) execute() {
	now := e.clock.Now()
	for pos, en := range e.work {
		a, b := e.arena.Resolve(en.A), e.arena.Resolve(en.B)
		h := en.Binding.Handler
		applied := false

		// an object destroyed earlier this frame takes no further part
		live := a != nil && b != nil &&
			!a.Has(object.FlagShouldBeDead) && !b.Has(object.FlagShouldBeDead)

		switch en.Path {
		case cache.PathParallel:
			if live && en.Result == handler.Collision && h.Execute != nil {
				h.Execute(e.mutator, a, b, en.Effect)
				applied = true
			}
		case cache.PathSequential:
			if live {
				en.Result = h.Check(e.mutator, a, b)
				applied = true
			}
		}

		en.NextCheck = e.nextCheck(en, now)
		en.State = cache.Executed
		e.stats.Executed++
		if applied {
			e.stats.Applied++
		}

		if e.observer != nil {
			rec := Record{
				Frame:    e.stats.Frame,
				Position: pos,
				Key:      en.Key,
				Pair:     en.Pair(),
				A:        en.A,
				B:        en.B,
				Path:     en.Path,
				Result:   en.Result,
				Applied:  applied,
			}
			if en.Path == cache.PathParallel && en.Result == handler.Collision {
				rec.Effect = en.Effect
			}
			e.observer.Observe(rec)
		}
	}
}

func (e *Engine) nextCheck(en *cache.Entry, now int64) cache.NextCheck {
	if en.Result == handler.NeverAgain {
		return cache.Never
	}
	return cache.NextCheck(now + e.recheck[en.Pair()])
}
