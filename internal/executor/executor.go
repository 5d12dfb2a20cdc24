// Package executor defines the contract shared by the strategies that drive
// a graph to completion, and the errors they report.
package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/burstflow/internal/graph"
)

var (
	// ErrCancelled is returned when an execution was stopped from outside.
	ErrCancelled = errors.New("execution cancelled")
	// ErrTimeout is returned when the execution deadline fired. It matches
	// ErrCancelled with errors.Is.
	ErrTimeout = fmt.Errorf("%w: timeout exceeded", ErrCancelled)
	// ErrStalled is returned when no processor can make progress and no
	// asynchronous operation is pending, yet not every sink finished.
	ErrStalled = errors.New("execution stalled: no runnable processors and no pending async work")
)

// ProcessorError is the terminal error of an execution that failed inside
// a processor.
type ProcessorError struct {
	// Processor is the failing processor's address, e.g. "filter.even[0]".
	Processor string
	Err       error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor '%s' failed: %v", e.Processor, e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// Executor drives a built graph until it stops. Implementations own their
// worker pool, task queue and async bridge for the duration of Run and
// release them before returning.
type Executor interface {
	// Run blocks until the graph completed, failed, was cancelled or
	// stalled, and returns nil only on completion. Cancelling ctx cancels
	// the graph with ErrCancelled.
	Run(ctx context.Context, g *graph.Graph) error
}

// GraphError maps how g stopped to the error Run must return.
func GraphError(g *graph.Graph) error {
	switch g.Outcome() {
	case graph.Completed:
		return nil
	case graph.Failed:
		f := g.Failure()
		return &ProcessorError{Processor: f.Address.String(), Err: f.Err}
	case graph.Cancelled:
		cause := g.Cause()
		switch {
		case cause == nil:
			return ErrCancelled
		case errors.Is(cause, ErrCancelled):
			return cause
		case errors.Is(cause, context.DeadlineExceeded):
			return fmt.Errorf("%w: %w", ErrTimeout, cause)
		default:
			return fmt.Errorf("%w: %w", ErrCancelled, cause)
		}
	default:
		return ErrStalled
	}
}
