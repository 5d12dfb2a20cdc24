package localexecutor

import (
	"context"
	"fmt"

	"github.com/specialistvlad/burstflow/internal/asyncbridge"
	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/graph"
	"github.com/specialistvlad/burstflow/internal/scheduler"
)

// work is the processing loop for a single worker: pop a task, claim the
// processor, drive it, and hand any future to the async bridge. It returns
// once the queue is closed. A panic that escapes the graph cancels it and is
// returned as the worker's error.
func (e *Executor) work(ctx context.Context, g *graph.Graph, q *scheduler.Queue, reactor *asyncbridge.Reactor, worker int) (err error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.")
	defer logger.Debug("Worker stopped.")
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker %d panicked: %v", worker, r)
			logger.Error("Worker panicked, cancelling graph.", "panic", r)
			g.Cancel(err)
		}
	}()

	for {
		tk, ok := q.Pop(worker)
		if !ok {
			return nil
		}
		if g.Stopped() || !g.Claim(tk.Processor) {
			e.opts.Metrics.TaskDropped()
			continue
		}
		e.opts.Metrics.TaskDriven()

		fut := g.Drive(ctx, tk.Processor, worker)
		if fut == nil {
			continue
		}
		e.opts.Metrics.AsyncStarted()
		reactor.Submit(ctx, tk.Processor, func(ctx context.Context) error {
			defer e.opts.Metrics.AsyncFinished()
			return fut(ctx)
		})
	}
}
