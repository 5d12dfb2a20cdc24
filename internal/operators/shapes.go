package operators

import (
	"context"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
)

// NextFunc returns the next batch of a source. more is false once the
// source is exhausted; the block returned with it is ignored.
type NextFunc func(ctx context.Context) (b data.Block, more bool, err error)

// ApplyFunc maps one input block of a transform to an output block. An
// empty output drops the input; stop ends the stream after out is pushed.
type ApplyFunc func(ctx context.Context, b data.Block) (out data.Block, stop bool, err error)

type source struct {
	processor.Ports
	pending   *data.Block
	exhausted bool
	next      NextFunc
}

// NewSource returns a processor with one output that emits the batches
// returned by next until it reports the end.
func NewSource(next NextFunc) processor.Processor {
	return &source{Ports: processor.NewPorts(0, 1), next: next}
}

func (s *source) PollState() processor.State {
	out := s.Out[0]
	switch {
	case out.IsFinished():
		return processor.Finished
	case s.pending == nil && s.exhausted:
		return processor.Finished
	case out.CanPush():
		return processor.Runnable
	default:
		return processor.HasOutputReady
	}
}

func (s *source) Step(ctx context.Context) error {
	if s.pending == nil {
		b, more, err := s.next(ctx)
		if err != nil {
			return err
		}
		if !more {
			s.exhausted = true
			return nil
		}
		if b.IsEmpty() {
			return nil
		}
		s.pending = &b
	}
	if s.Out[0].Push(*s.pending) {
		s.pending = nil
	}
	return nil
}

type transform struct {
	processor.Ports
	pending *data.Block
	stopped bool
	apply   ApplyFunc
}

// NewTransform returns a one-in, one-out processor that pulls one block at
// a time and pushes what apply returns. Once apply asks to stop, the input
// is closed by the graph.
func NewTransform(apply ApplyFunc) processor.Processor {
	return newTransform(apply)
}

func newTransform(apply ApplyFunc) *transform {
	return &transform{Ports: processor.NewPorts(1, 1), apply: apply}
}

func (t *transform) PollState() processor.State {
	switch {
	case t.Out[0].IsFinished():
		return processor.Finished
	case t.pending != nil:
		if t.Out[0].CanPush() {
			return processor.Runnable
		}
		return processor.HasOutputReady
	case t.stopped:
		return processor.Finished
	case t.In[0].HasData():
		return processor.Runnable
	case t.In[0].IsFinished():
		return processor.Finished
	default:
		return processor.NeedsInput
	}
}

func (t *transform) Step(ctx context.Context) error {
	if t.pending != nil {
		if t.Out[0].Push(*t.pending) {
			t.pending = nil
		}
		return nil
	}
	in, ok := t.In[0].Pull()
	if !ok {
		return nil
	}
	out, stop, err := t.apply(ctx, in)
	if err != nil {
		return err
	}
	t.stopped = stop
	if out.IsEmpty() {
		return nil
	}
	if !t.Out[0].Push(out) {
		t.pending = &out
	}
	return nil
}
