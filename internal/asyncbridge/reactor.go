// Package asyncbridge runs the futures of processors in WaitingAsync off the
// worker pool and feeds their completion back into the task queue.
//
// Completion is the only path by which asynchronous work re-enters
// scheduling: the reactor asks the graph to resume the processor and, if the
// graph is still running, pushes a task onto the global queue. The in-flight
// counter is incremented before the hand-off and decremented only after that
// push, so a worker that sees zero in flight and an empty queue knows no
// completion is on its way.
package asyncbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/task"
)

// ErrGraceExceeded is returned by Close when futures were still running at
// the end of the grace period.
var ErrGraceExceeded = errors.New("async operations still running after grace period")

// Resumer is told about every completed future. It reports whether the
// processor must be scheduled again.
type Resumer interface {
	Resume(ctx context.Context, processor int, err error) bool
}

// Enqueuer accepts tasks with no worker affinity.
type Enqueuer interface {
	PushGlobal(t task.Task)
}

// Reactor owns a bounded goroutine pool for one execution.
type Reactor struct {
	pool     *ants.Pool
	resumer  Resumer
	queue    Enqueuer
	logger   *slog.Logger
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// New creates a reactor whose pool runs at most size futures at once.
func New(size int, resumer Resumer, queue Enqueuer, logger *slog.Logger) (*Reactor, error) {
	if size < 1 {
		return nil, fmt.Errorf("async pool size must be positive, got %d", size)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Reactor{resumer: resumer, queue: queue, logger: logger}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(v any) {
		r.logger.Error("Async bridge goroutine panicked.", "panic", v)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create async pool: %w", err)
	}
	r.pool = pool
	return r, nil
}

// InFlight returns the number of submitted futures whose completion has not
// been delivered yet.
func (r *Reactor) InFlight() int64 {
	return r.inFlight.Load()
}

// Submit schedules fut on behalf of processor id. It never blocks the
// caller: when the pool is saturated the hand-off waits on its own
// goroutine. ctx is passed to the future and should be cancelled when the
// graph stops.
func (r *Reactor) Submit(ctx context.Context, id int, fut processor.Future) {
	r.inFlight.Add(1)
	r.wg.Add(1)
	go func() {
		err := r.pool.Submit(func() {
			defer r.wg.Done()
			defer r.inFlight.Add(-1)
			r.complete(ctx, id, r.run(ctx, fut))
		})
		if err != nil {
			// The pool was released: the execution is over.
			r.logger.Debug("Dropping async operation, pool closed.", "processor", id, "error", err)
			r.inFlight.Add(-1)
			r.wg.Done()
		}
	}()
}

func (r *Reactor) run(ctx context.Context, fut processor.Future) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in async operation: %v", rec)
		}
	}()
	return fut(ctx)
}

func (r *Reactor) complete(ctx context.Context, id int, err error) {
	if !r.resumer.Resume(ctx, id, err) {
		return
	}
	r.queue.PushGlobal(task.Task{Processor: id, Origin: task.Async})
}

// Close waits up to grace for in-flight futures, then releases the pool.
// Results delivered after the graph stopped are discarded by the resumer.
func (r *Reactor) Close(grace time.Duration) error {
	if grace <= 0 {
		r.pool.Release()
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return r.pool.ReleaseTimeout(grace)
	case <-timer.C:
		r.pool.Release()
		return fmt.Errorf("%w: %d in flight", ErrGraceExceeded, r.inFlight.Load())
	}
}
