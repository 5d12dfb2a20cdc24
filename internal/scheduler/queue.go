package scheduler

import (
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/burstflow/internal/task"
)

// QuiescentFunc reports whether nothing outside the queue can still produce
// tasks. It is called with the park lock held, after every worker parked.
type QuiescentFunc func() bool

// Stats are cumulative counters for metrics and tests.
type Stats struct {
	Pushed int64
	Popped int64
	Stolen int64
	Parked int64
}

type localQueue struct {
	mu sync.Mutex
	q  fifo
}

// Queue is the two-tier task queue shared by one executor's workers.
type Queue struct {
	locals []*localQueue

	globalMu sync.Mutex
	global   fifo

	mu        sync.Mutex
	cond      *sync.Cond
	closed    bool
	done      atomic.Bool
	stalled   bool
	idle      atomic.Int32
	quiescent QuiescentFunc

	pushed atomic.Int64
	popped atomic.Int64
	stolen atomic.Int64
	parked atomic.Int64
}

// New creates a queue for the given number of workers. quiescent may be nil,
// in which case stalls are never reported.
func New(workers int, quiescent QuiescentFunc) *Queue {
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		locals:    make([]*localQueue, workers),
		quiescent: quiescent,
	}
	for i := range q.locals {
		q.locals[i] = &localQueue{}
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Workers returns the number of local queues.
func (q *Queue) Workers() int {
	return len(q.locals)
}

// Push enqueues t on worker's local queue. A negative or out-of-range worker
// pushes to the global queue.
func (q *Queue) Push(worker int, t task.Task) {
	if worker < 0 || worker >= len(q.locals) {
		q.PushGlobal(t)
		return
	}
	l := q.locals[worker]
	l.mu.Lock()
	l.q.push(t)
	l.mu.Unlock()
	q.pushed.Add(1)
	q.wake()
}

// PushGlobal enqueues t on the global queue.
func (q *Queue) PushGlobal(t task.Task) {
	q.globalMu.Lock()
	q.global.push(t)
	q.globalMu.Unlock()
	q.pushed.Add(1)
	q.wake()
}

func (q *Queue) wake() {
	if q.idle.Load() == 0 {
		return
	}
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// Pop returns the next task for worker, parking until one is available.
// It returns false once the queue is closed or a stall was detected.
func (q *Queue) Pop(worker int) (task.Task, bool) {
	for {
		if q.done.Load() {
			return task.Task{}, false
		}
		if t, ok := q.tryPop(worker); ok {
			return t, true
		}

		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return task.Task{}, false
		}
		idle := q.idle.Add(1)
		// A push that read idle == 0 before the increment is visible now.
		if t, ok := q.tryPop(worker); ok {
			q.idle.Add(-1)
			q.mu.Unlock()
			return t, true
		}
		if int(idle) == len(q.locals) && q.quiescent != nil && q.quiescent() {
			// Async completions push before they leave the in-flight set,
			// so a last scan after the check cannot miss one.
			if t, ok := q.tryPop(worker); ok {
				q.idle.Add(-1)
				q.mu.Unlock()
				return t, true
			}
			q.stalled = true
			q.closed = true
			q.done.Store(true)
			q.idle.Add(-1)
			q.cond.Broadcast()
			q.mu.Unlock()
			return task.Task{}, false
		}
		q.parked.Add(1)
		q.cond.Wait()
		q.idle.Add(-1)
		q.mu.Unlock()
	}
}

func (q *Queue) tryPop(worker int) (task.Task, bool) {
	if worker >= 0 && worker < len(q.locals) {
		l := q.locals[worker]
		l.mu.Lock()
		t, ok := l.q.pop()
		l.mu.Unlock()
		if ok {
			q.popped.Add(1)
			return t, true
		}
	}

	q.globalMu.Lock()
	t, ok := q.global.pop()
	q.globalMu.Unlock()
	if ok {
		q.popped.Add(1)
		return t, true
	}

	n := len(q.locals)
	for i := 1; i <= n; i++ {
		victim := (worker + i) % n
		if victim < 0 {
			victim += n
		}
		if victim == worker {
			continue
		}
		l := q.locals[victim]
		l.mu.Lock()
		t, ok := l.q.pop()
		l.mu.Unlock()
		if ok {
			q.popped.Add(1)
			q.stolen.Add(1)
			return t, true
		}
	}
	return task.Task{}, false
}

// Close wakes every parked worker and makes Pop return false. Queued tasks
// stay until Drain. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.done.Store(true)
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Closed reports whether Close was called or a stall was detected.
func (q *Queue) Closed() bool {
	return q.done.Load()
}

// Stalled reports whether the queue closed itself because no worker could
// make progress.
func (q *Queue) Stalled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stalled
}

// Drain discards every queued task without running it and returns how many
// were dropped.
func (q *Queue) Drain() int {
	n := 0
	q.globalMu.Lock()
	n += q.global.reset()
	q.globalMu.Unlock()
	for _, l := range q.locals {
		l.mu.Lock()
		n += l.q.reset()
		l.mu.Unlock()
	}
	return n
}

// Len returns the number of queued tasks. The value is a snapshot.
func (q *Queue) Len() int {
	q.globalMu.Lock()
	n := q.global.len()
	q.globalMu.Unlock()
	for _, l := range q.locals {
		l.mu.Lock()
		n += l.q.len()
		l.mu.Unlock()
	}
	return n
}

// Stats returns cumulative counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Pushed: q.pushed.Load(),
		Popped: q.popped.Load(),
		Stolen: q.stolen.Load(),
		Parked: q.parked.Load(),
	}
}
