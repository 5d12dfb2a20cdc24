package graph

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/burstflow/internal/edge"
	"github.com/specialistvlad/burstflow/internal/nodeid"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/task"
)

// ErrCycle is returned by Build when connections form a cycle.
var ErrCycle = errors.New("cycle detected")

// Scheduler receives the tasks produced by propagation.
type Scheduler interface {
	Push(worker int, t task.Task)
	PushGlobal(t task.Task)
	Close()
}

// Node is a processor together with its runtime bookkeeping.
type Node struct {
	id    int
	addr  nodeid.Address
	proc  processor.Processor
	async processor.AsyncProcessor
	rec   processor.Recorder

	inEdges  []int
	outEdges []int

	wake  atomic.Uint32
	state atomic.Int32
	steps atomic.Int64
	err   error
}

// ID returns the node's index in the graph.
func (n *Node) ID() int { return n.id }

// Address returns the node's structured address.
func (n *Node) Address() nodeid.Address { return n.addr }

// Processor returns the wrapped processor.
func (n *Node) Processor() processor.Processor { return n.proc }

// State returns the last observed processor state.
func (n *Node) State() processor.State { return processor.State(n.state.Load()) }

// Steps returns how many times Step was called.
func (n *Node) Steps() int64 { return n.steps.Load() }

// Err returns the error the processor failed with, if any. It is only
// stable after the graph stopped.
func (n *Node) Err() error { return n.err }

// IsSink reports whether the processor has no outputs.
func (n *Node) IsSink() bool { return len(n.outEdges) == 0 }

// Outcome is how a graph stopped.
type Outcome int

const (
	// Running means the graph has not stopped yet.
	Running Outcome = iota
	// Completed means every sink finished.
	Completed
	// Failed means a processor failed first.
	Failed
	// Cancelled means Cancel was called first.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Failure identifies the processor whose error stopped the graph.
type Failure struct {
	Node    int
	Address nodeid.Address
	Err     error
}

// Graph is the arena of processors and edges for one execution.
type Graph struct {
	nodes    []*Node
	edges    []*edge.Edge
	producer []int
	consumer []int
	sinks    []int

	schedMu   sync.Mutex
	sched     Scheduler
	sinksLeft atomic.Int32
	stopped   atomic.Bool

	stopOnce sync.Once
	outcome  Outcome
	failure  *Failure
	cause    error
	done     chan struct{}
}

// Len returns the number of processors.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with index id.
func (g *Graph) Node(id int) *Node { return g.nodes[id] }

// Nodes returns every node in index order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Edges returns every edge in index order.
func (g *Graph) Edges() []*edge.Edge { return g.edges }

// Sinks returns the indexes of processors without outputs.
func (g *Graph) Sinks() []int { return g.sinks }

// Producer returns the node feeding edge e.
func (g *Graph) Producer(e int) int { return g.producer[e] }

// Consumer returns the node reading edge e.
func (g *Graph) Consumer(e int) int { return g.consumer[e] }

// BufferedItems counts the edges that currently hold a block. It can never
// exceed the number of edges.
func (g *Graph) BufferedItems() int {
	n := 0
	for _, e := range g.edges {
		if e.HasData() {
			n++
		}
	}
	return n
}

// Stopped reports whether the graph completed, failed or was cancelled.
// This is the cancellation flag checked on every propagation.
func (g *Graph) Stopped() bool { return g.stopped.Load() }

// Done is closed once the graph stops.
func (g *Graph) Done() <-chan struct{} { return g.done }

// Outcome returns how the graph stopped. It is Running until Done is closed.
func (g *Graph) Outcome() Outcome {
	select {
	case <-g.done:
		return g.outcome
	default:
		return Running
	}
}

// Failure returns the winning processor failure, or nil.
func (g *Graph) Failure() *Failure {
	if g.Outcome() != Failed {
		return nil
	}
	return g.failure
}

// Cause returns the error passed to Cancel when the graph was cancelled.
func (g *Graph) Cause() error {
	if g.Outcome() != Cancelled {
		return nil
	}
	return g.cause
}

// Cancel stops the graph with cause unless it already stopped. It is safe
// to call any number of times from any goroutine.
func (g *Graph) Cancel(cause error) {
	g.stop(Cancelled, nil, cause)
}

func (g *Graph) stop(o Outcome, f *Failure, cause error) bool {
	won := false
	g.stopOnce.Do(func() {
		won = true
		g.outcome = o
		g.failure = f
		g.cause = cause
		g.stopped.Store(true)
		close(g.done)
		g.schedMu.Lock()
		if g.sched != nil {
			g.sched.Close()
		}
		g.schedMu.Unlock()
	})
	return won
}

// Finalize marks every processor that is not terminal as Cancelled. It must
// be called after all workers have returned. It returns how many processors
// it cancelled.
func (g *Graph) Finalize() int {
	cancelled := 0
	for _, n := range g.nodes {
		if n.State().IsTerminal() {
			continue
		}
		n.state.Store(int32(processor.Cancelled))
		n.wake.Store(wakeDone)
		cancelled++
	}
	return cancelled
}
