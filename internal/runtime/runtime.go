package runtime

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/executor"
	"github.com/specialistvlad/burstflow/internal/metrics"
	"github.com/specialistvlad/burstflow/internal/pipeline"
	"github.com/specialistvlad/burstflow/internal/plan"
	"github.com/specialistvlad/burstflow/internal/registry"
)

// Options configures a Runtime.
type Options struct {
	Registry *registry.Registry
	Executor executor.Executor
	// Timeout cancels a query that runs longer; zero disables it.
	Timeout time.Duration
	// Meta, Tenant and Output are handed to operators through registry.Env.
	Meta    registry.MetaReader
	Tenant  string
	Output  io.Writer
	Clock   quartz.Clock
	Metrics *metrics.Metrics
}

// Runtime executes plans.
type Runtime struct {
	opts Options
}

// New creates a Runtime. Registry and Executor are required.
func New(opts Options) *Runtime {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	return &Runtime{opts: opts}
}

// Execute runs p to completion and returns its results.
func (r *Runtime) Execute(ctx context.Context, p *plan.Plan) (*ResultStream, error) {
	q, err := r.ExecuteAsync(ctx, p)
	if err != nil {
		return nil, err
	}
	return q.Wait()
}

// ExecuteAsync compiles p and starts it in the background. Compilation
// errors are returned directly; everything after that is reported by
// Query.Wait.
func (r *Runtime) ExecuteAsync(ctx context.Context, p *plan.Plan) (*Query, error) {
	if r.opts.Registry == nil || r.opts.Executor == nil {
		return nil, errors.New("runtime needs a registry and an executor")
	}

	id := uuid.New()
	ctx = ctxlog.With(ctx, "query_id", id.String())
	logger := ctxlog.FromContext(ctx)

	runCtx, cancel := context.WithCancelCause(ctx)
	results := &collector{}
	env := &registry.Env{
		Results: results,
		Meta:    r.opts.Meta,
		Tenant:  r.opts.Tenant,
		Output:  r.opts.Output,
		Clock:   r.opts.Clock,
	}

	g, err := pipeline.Build(runCtx, r.opts.Registry, p, env)
	if err != nil {
		cancel(nil)
		r.opts.Metrics.ObserveQuery("invalid", 0)
		return nil, err
	}

	q := &Query{
		ID:     id,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var timer *quartz.Timer
	if r.opts.Timeout > 0 {
		timer = r.opts.Clock.AfterFunc(r.opts.Timeout, func() {
			logger.Warn("Query timed out.", "timeout", r.opts.Timeout)
			cancel(executor.ErrTimeout)
		}, "query_timeout")
	}

	start := r.opts.Clock.Now()
	logger.Info("Query started.", "processors", g.Len())
	go func() {
		defer close(q.done)
		err := r.opts.Executor.Run(runCtx, g)
		if timer != nil {
			timer.Stop()
		}
		cancel(nil)

		elapsed := r.opts.Clock.Since(start)
		r.opts.Metrics.ObserveQuery(outcome(err), elapsed)
		if err != nil {
			logger.Error("Query failed.", "error", err, "duration", elapsed)
			q.err = err
			return
		}
		logger.Info("Query finished.", "batches", results.len(), "duration", elapsed)
		q.results = &ResultStream{batches: results.take()}
	}()
	return q, nil
}

// Query is a running execution.
type Query struct {
	ID uuid.UUID

	cancel  context.CancelCauseFunc
	done    chan struct{}
	results *ResultStream
	err     error
}

// Cancel stops the query with executor.ErrCancelled. It is safe to call
// more than once and after the query finished.
func (q *Query) Cancel() {
	q.cancel(executor.ErrCancelled)
}

// Done is closed once the query stopped and every goroutine it started has
// returned.
func (q *Query) Done() <-chan struct{} {
	return q.done
}

// Wait blocks until the query stops and returns its results or its error.
func (q *Query) Wait() (*ResultStream, error) {
	<-q.done
	if q.err != nil {
		return nil, q.err
	}
	return q.results, nil
}

func outcome(err error) string {
	var perr *executor.ProcessorError
	switch {
	case err == nil:
		return "completed"
	case errors.As(err, &perr):
		return "failed"
	case errors.Is(err, executor.ErrTimeout):
		return "timeout"
	case errors.Is(err, executor.ErrCancelled):
		return "cancelled"
	case errors.Is(err, executor.ErrStalled):
		return "stalled"
	default:
		return "error"
	}
}
