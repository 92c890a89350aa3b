package engine

import (
	"sync"

	"github.com/roach88/supercollider/internal/cache"
	"github.com/roach88/supercollider/internal/handler"
	"github.com/roach88/supercollider/internal/object"
)

// job is one pair handed to a worker. The worker owns a and b until it
// sends its reply; it never sees the cache entry itself.
type job struct {
	gen  uint64
	slot int
	eval handler.EvaluateFunc
	a, b *object.Object
}

// reply carries an evaluation back to the dispatcher.
type reply struct {
	gen    uint64
	worker int
	slot   int
	result handler.Result
	effect handler.Effect
}

// worker is the dispatcher's view of one pool goroutine. Only the
// dispatcher reads or writes these fields.
type worker struct {
	id    int
	inbox chan job
	held  *cache.Entry // nil when idle
}

// pool is a fixed set of long-lived evaluation goroutines.
//
// Each worker has a one-slot inbox; all workers share one outbox sized so a
// reply never blocks. A worker holds at most one job at a time.
type pool struct {
	workers []*worker
	outbox  chan reply
	next    int // round-robin start
	wg      sync.WaitGroup
	closed  bool
}

func newPool(n int) *pool {
	p := &pool{
		workers: make([]*worker, n),
		outbox:  make(chan reply, n),
	}
	p.wg.Add(n)
	for i := range p.workers {
		w := &worker{id: i, inbox: make(chan job, 1)}
		p.workers[i] = w
		go p.loop(w.id, w.inbox)
	}
	return p
}

// loop runs on the worker goroutine until its inbox is closed.
func (p *pool) loop(id int, inbox <-chan job) {
	defer p.wg.Done()
	for j := range inbox {
		res, eff := j.eval(j.a, j.b)
		p.outbox <- reply{gen: j.gen, worker: id, slot: j.slot, result: res, effect: eff}
	}
}

// conflicts reports whether a busy worker holds an entry sharing a
// participant with en.
func (p *pool) conflicts(en *cache.Entry) bool {
	for _, w := range p.workers {
		if w.held != nil && w.held.Shares(en) {
			return true
		}
	}
	return false
}

// idle returns the next idle worker in round-robin order, or nil.
func (p *pool) idle() *worker {
	n := len(p.workers)
	for i := 0; i < n; i++ {
		w := p.workers[(p.next+i)%n]
		if w.held == nil {
			p.next = (w.id + 1) % n
			return w
		}
	}
	return nil
}

// assign hands j, built from en, to w. The caller must have checked w is
// idle and en does not conflict with any busy worker.
func (p *pool) assign(w *worker, en *cache.Entry, j job) {
	w.held = en
	w.inbox <- j
}

// release marks the worker that sent r idle again.
func (p *pool) release(r reply) {
	p.workers[r.worker].held = nil
}

// busyCount returns how many workers hold a job.
func (p *pool) busyCount() int {
	n := 0
	for _, w := range p.workers {
		if w.held != nil {
			n++
		}
	}
	return n
}

// close stops every worker. With wait set it blocks until all of them have
// exited.
func (p *pool) close(wait bool) {
	if p.closed {
		return
	}
	p.closed = true
	for _, w := range p.workers {
		close(w.inbox)
	}
	if wait {
		p.wg.Wait()
	}
}
