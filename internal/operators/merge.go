package operators

import (
	"context"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
)

var mergeDefinition = &registry.Definition{
	Kind:        "merge",
	Description: "Forwards batches from any ready input.",
	Inputs:      registry.Many,
	Outputs:     registry.One,
	New:         newMerge,
}

// merge polls its inputs round-robin starting after the last one it read,
// so a busy input cannot starve the others.
type merge struct {
	processor.Ports
	pending *data.Block
	next    int
}

func newMerge(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	return &merge{Ports: processor.NewPorts(spec.Inputs, 1)}, nil
}

func (m *merge) PollState() processor.State {
	if m.Out[0].IsFinished() {
		return processor.Finished
	}
	if m.pending != nil {
		if m.Out[0].CanPush() {
			return processor.Runnable
		}
		return processor.HasOutputReady
	}
	for _, in := range m.In {
		if in.HasData() {
			return processor.Runnable
		}
	}
	if m.AllInputsFinished() {
		return processor.Finished
	}
	return processor.NeedsInput
}

func (m *merge) Step(context.Context) error {
	if m.pending != nil {
		if m.Out[0].Push(*m.pending) {
			m.pending = nil
		}
		return nil
	}
	for i := range m.In {
		idx := (m.next + i) % len(m.In)
		b, ok := m.In[idx].Pull()
		if !ok {
			continue
		}
		m.next = idx + 1
		if !m.Out[0].Push(b) {
			m.pending = &b
		}
		return nil
	}
	return nil
}

var broadcastDefinition = &registry.Definition{
	Kind:        "broadcast",
	Description: "Copies every batch to all outputs.",
	Inputs:      registry.One,
	Outputs:     registry.Many,
	New:         newBroadcast,
}

// broadcast holds one block until every live output took it. An output
// closed by its consumer no longer counts.
type broadcast struct {
	processor.Ports
	pending   *data.Block
	delivered []bool
}

func newBroadcast(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	return &broadcast{
		Ports:     processor.NewPorts(1, spec.Outputs),
		delivered: make([]bool, spec.Outputs),
	}, nil
}

func (b *broadcast) PollState() processor.State {
	if b.AllOutputsFinished() {
		return processor.Finished
	}
	if b.pending != nil {
		waiting := false
		for i, out := range b.Out {
			if b.delivered[i] || out.IsFinished() {
				continue
			}
			if out.CanPush() {
				return processor.Runnable
			}
			waiting = true
		}
		if waiting {
			return processor.HasOutputReady
		}
		// Every live output has the block; Step will release it.
		return processor.Runnable
	}
	if b.In[0].HasData() {
		return processor.Runnable
	}
	if b.In[0].IsFinished() {
		return processor.Finished
	}
	return processor.NeedsInput
}

func (b *broadcast) Step(context.Context) error {
	if b.pending == nil {
		blk, ok := b.In[0].Pull()
		if !ok {
			return nil
		}
		b.pending = &blk
		clear(b.delivered)
	}

	done := true
	for i, out := range b.Out {
		if b.delivered[i] || out.IsFinished() {
			continue
		}
		if out.Push(*b.pending) {
			b.delivered[i] = true
			continue
		}
		done = false
	}
	if done {
		b.pending = nil
	}
	return nil
}
