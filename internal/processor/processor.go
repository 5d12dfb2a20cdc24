package processor

import (
	"context"
	"fmt"
)

// State is the readiness of a processor as seen by the scheduler.
type State int32

const (
	// NeedsInput means the processor waits for an upstream edge to get data.
	NeedsInput State = iota
	// HasOutputReady means the processor holds output but a downstream edge
	// is full.
	HasOutputReady
	// Runnable means Step can make progress right now.
	Runnable
	// WaitingAsync means BeginAsync must be called and the processor stays
	// parked until its future completes.
	WaitingAsync
	// Finished is terminal: no further work.
	Finished
	// Failed is terminal and carries an error recorded by the graph.
	Failed
	// Cancelled is the variant of Failed assigned to processors that were
	// still live when the graph was cancelled.
	Cancelled
)

var stateNames = [...]string{
	NeedsInput:     "NeedsInput",
	HasOutputReady: "HasOutputReady",
	Runnable:       "Runnable",
	WaitingAsync:   "WaitingAsync",
	Finished:       "Finished",
	Failed:         "Failed",
	Cancelled:      "Cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == Finished || s == Failed || s == Cancelled
}

// Processor is one operator instance in a graph.
type Processor interface {
	// Inputs returns the processor's input ports in declaration order.
	Inputs() []*InputPort
	// Outputs returns the processor's output ports in declaration order.
	Outputs() []*OutputPort
	// PollState inspects port flags and internal buffers. It must not
	// mutate anything.
	PollState() State
	// Step performs one bounded unit of work. It is only called after
	// PollState returned Runnable. A returned error fails the processor.
	Step(ctx context.Context) error
}

// Future is the blocking half of an asynchronous operation. It runs on the
// async bridge's pool, never on a worker. The context is cancelled when the
// graph is cancelled.
type Future func(ctx context.Context) error

// AsyncProcessor is implemented by processors that can report WaitingAsync.
type AsyncProcessor interface {
	Processor
	// BeginAsync is called once each time PollState reports WaitingAsync.
	// The processor must stop reporting WaitingAsync once it has handed out
	// the future.
	BeginAsync(ctx context.Context) Future
}

// Ports is embedded by operators to satisfy Inputs and Outputs.
type Ports struct {
	In  []*InputPort
	Out []*OutputPort
}

// NewPorts allocates unbound ports.
func NewPorts(inputs, outputs int) Ports {
	p := Ports{
		In:  make([]*InputPort, inputs),
		Out: make([]*OutputPort, outputs),
	}
	for i := range p.In {
		p.In[i] = &InputPort{}
	}
	for i := range p.Out {
		p.Out[i] = &OutputPort{}
	}
	return p
}

func (p *Ports) Inputs() []*InputPort   { return p.In }
func (p *Ports) Outputs() []*OutputPort { return p.Out }

// AllInputsFinished reports whether every input is exhausted.
func (p *Ports) AllInputsFinished() bool {
	for _, in := range p.In {
		if !in.IsFinished() {
			return false
		}
	}
	return true
}

// AllOutputsFinished reports whether every output has been finished or
// closed by its consumer.
func (p *Ports) AllOutputsFinished() bool {
	for _, out := range p.Out {
		if !out.IsFinished() {
			return false
		}
	}
	return true
}

// FinishOutputs marks every output finished.
func (p *Ports) FinishOutputs() {
	for _, out := range p.Out {
		out.Finish()
	}
}

// CloseInputs closes every input.
func (p *Ports) CloseInputs() {
	for _, in := range p.In {
		in.Close()
	}
}
