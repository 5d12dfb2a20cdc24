package operators

import (
	"context"
	"time"

	"github.com/coder/quartz"
	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
)

var delayDefinition = &registry.Definition{
	Kind:        "delay",
	Description: "Holds every batch for duration before forwarding it.",
	Inputs:      registry.One,
	Outputs:     registry.One,
	Params:      []string{"duration"},
	Required:    []string{"duration"},
	New:         newDelay,
}

// delay pulls a block, parks on a timer future and forwards the block when
// the timer fires. The future owns the block while it runs.
type delay struct {
	processor.Ports
	clock    quartz.Clock
	duration time.Duration
	held     *data.Block
	pending  *data.Block
}

func newDelay(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	d, err := spec.Duration("duration", 0)
	if err != nil {
		return nil, err
	}
	if d < 0 {
		return nil, spec.Errorf("argument 'duration' must not be negative, got %s", d)
	}
	return &delay{
		Ports:    processor.NewPorts(1, 1),
		clock:    spec.Env.ClockOrReal(),
		duration: d,
	}, nil
}

func (d *delay) PollState() processor.State {
	switch {
	case d.Out[0].IsFinished():
		return processor.Finished
	case d.pending != nil:
		if d.Out[0].CanPush() {
			return processor.Runnable
		}
		return processor.HasOutputReady
	case d.held != nil:
		return processor.WaitingAsync
	case d.In[0].HasData():
		return processor.Runnable
	case d.In[0].IsFinished():
		return processor.Finished
	default:
		return processor.NeedsInput
	}
}

func (d *delay) Step(context.Context) error {
	if d.pending != nil {
		if d.Out[0].Push(*d.pending) {
			d.pending = nil
		}
		return nil
	}
	if b, ok := d.In[0].Pull(); ok {
		d.held = &b
	}
	return nil
}

func (d *delay) BeginAsync(context.Context) processor.Future {
	b := d.held
	d.held = nil
	return func(ctx context.Context) error {
		t := d.clock.NewTimer(d.duration, "delay")
		defer t.Stop()
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-t.C:
		}
		d.pending = b
		return nil
	}
}
