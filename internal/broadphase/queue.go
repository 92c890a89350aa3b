package broadphase

import "sync"

// span is an inclusive index range of the list being sorted.
type span struct {
	lo, hi int
}

// rangeQueue is the shared work queue for one parallel sort.
//
// pending counts ranges that are queued or being partitioned. When it drops
// to zero the queue closes and every sort worker returns.
type rangeQueue struct {
	mu      sync.Mutex
	spans   []span
	pending int
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newRangeQueue() *rangeQueue {
	return &rangeQueue{
		spans:  make([]span, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Push adds a range and wakes one idle worker.
func (q *rangeQueue) Push(s span) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.spans = append(q.spans, s)
	q.pending++
	q.notify()
}

// TryPop takes a range without blocking. If more remain, another waiter is
// woken so idle workers chain awake.
func (q *rangeQueue) TryPop() (span, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.spans)
	if n == 0 {
		return span{}, false
	}
	s := q.spans[n-1]
	q.spans = q.spans[:n-1]
	if n > 1 {
		q.notify()
	}
	return s, true
}

// Done marks one popped range as fully handled.
func (q *rangeQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending--
	if q.pending == 0 && !q.closed {
		q.closed = true
		close(q.signal)
	}
}

// Wait returns the channel that signals new work or completion.
func (q *rangeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether all work is done.
func (q *rangeQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *rangeQueue) notify() {
	if q.closed {
		return
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
