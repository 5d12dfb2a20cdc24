// Package localexecutor provides the in-process executor.Executor
// strategies: a fixed pool of worker goroutines (New) and a single worker on
// the caller's goroutine (NewInline).
package localexecutor

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/burstflow/internal/asyncbridge"
	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/executor"
	"github.com/specialistvlad/burstflow/internal/graph"
	"github.com/specialistvlad/burstflow/internal/metrics"
	"github.com/specialistvlad/burstflow/internal/scheduler"
)

const (
	// DefaultAsyncPoolSize bounds concurrently running futures.
	DefaultAsyncPoolSize = 64
	// DefaultGracePeriod is how long Run waits for in-flight futures after
	// the graph stopped.
	DefaultGracePeriod = 5 * time.Second
)

// Options configures an Executor. Zero values select defaults.
type Options struct {
	// Workers is the pool size; runtime.GOMAXPROCS(0) when zero.
	Workers       int
	AsyncPoolSize int
	GracePeriod   time.Duration
	Metrics       *metrics.Metrics
}

// Executor implements executor.Executor for local execution.
type Executor struct {
	opts   Options
	inline bool
}

var _ executor.Executor = (*Executor)(nil)

// New creates the threaded strategy.
func New(opts Options) *Executor {
	return &Executor{opts: withDefaults(opts)}
}

// NewInline creates a strategy that runs one worker on the goroutine calling
// Run. Asynchronous operations still run on the async bridge.
func NewInline(opts Options) *Executor {
	opts.Workers = 1
	return &Executor{opts: withDefaults(opts), inline: true}
}

func withDefaults(opts Options) Options {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.AsyncPoolSize <= 0 {
		opts.AsyncPoolSize = DefaultAsyncPoolSize
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	return opts
}

// Workers returns the effective pool size.
func (e *Executor) Workers() int {
	return e.opts.Workers
}

// Run drives g until it stops and joins every goroutine it started before
// returning.
func (e *Executor) Run(ctx context.Context, g *graph.Graph) error {
	logger := ctxlog.FromContext(ctx).With("workers", e.opts.Workers, "inline", e.inline)
	logger.Debug("Executor starting.", "processors", g.Len(), "edges", len(g.Edges()))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var reactor *asyncbridge.Reactor
	q := scheduler.New(e.opts.Workers, func() bool {
		return reactor.InFlight() == 0 && !g.Stopped()
	})
	reactor, err := asyncbridge.New(e.opts.AsyncPoolSize, g, q, logger)
	if err != nil {
		return fmt.Errorf("failed to start async bridge: %w", err)
	}

	g.Attach(q)
	stopOnCancel := context.AfterFunc(ctx, func() {
		g.Cancel(context.Cause(ctx))
	})
	defer stopOnCancel()
	// Steps and futures observe a cancelled context once the graph stops.
	go func() {
		select {
		case <-g.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	g.Seed()
	var workErr error
	if e.inline {
		workErr = e.work(ctxlog.With(runCtx, "worker", 0), g, q, reactor, 0)
	} else {
		var eg errgroup.Group
		for w := 0; w < e.opts.Workers; w++ {
			eg.Go(func() error {
				return e.work(ctxlog.With(runCtx, "worker", w), g, q, reactor, w)
			})
		}
		workErr = eg.Wait()
	}

	dropped := q.Drain()
	cancel()
	closeErr := reactor.Close(e.opts.GracePeriod)
	cancelled := g.Finalize()

	stats := q.Stats()
	var steps int64
	for _, n := range g.Nodes() {
		steps += n.Steps()
	}
	e.opts.Metrics.ObserveRun(steps, stats.Stolen, stats.Parked)

	runErr := executor.GraphError(g)
	if workErr != nil {
		runErr = workErr
	}
	logger.Debug("Executor finished.",
		"outcome", g.Outcome().String(),
		"stalled", q.Stalled(),
		"steps", steps,
		"steals", stats.Stolen,
		"dropped_tasks", dropped,
		"cancelled_processors", cancelled,
	)
	if closeErr != nil {
		if runErr == nil {
			logger.Warn("Async operations outlived the execution.", "error", closeErr)
			return nil
		}
		return multierr.Append(runErr, closeErr)
	}
	return runErr
}
