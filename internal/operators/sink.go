package operators

import (
	"context"

	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
)

var sinkDefinition = &registry.Definition{
	Kind:        "sink",
	Description: "Hands every batch to the query result.",
	Inputs:      registry.One,
	Outputs:     registry.None,
	New:         newSink,
}

// sink delivers blocks to the collector under the operator name. All
// instances of a parallel sink share that name.
type sink struct {
	processor.Ports
	name    string
	results registry.Collector
}

func newSink(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	s := &sink{Ports: processor.NewPorts(1, 0), name: spec.Address.Name}
	if spec.Env != nil {
		s.results = spec.Env.Results
	}
	return s, nil
}

func (s *sink) PollState() processor.State {
	switch {
	case s.In[0].HasData():
		return processor.Runnable
	case s.In[0].IsFinished():
		return processor.Finished
	default:
		return processor.NeedsInput
	}
}

func (s *sink) Step(context.Context) error {
	b, ok := s.In[0].Pull()
	if ok && s.results != nil && !b.IsEmpty() {
		s.results.Add(s.name, b)
	}
	return nil
}
