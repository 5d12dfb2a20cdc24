package graph

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/task"
)

const (
	wakeIdle uint32 = iota
	wakeQueued
	wakeRunning
	wakeAsync
	wakeDone

	wakeDirty   uint32 = 1 << 8
	wakeStateMk        = wakeDirty - 1
)

// Attach connects the graph to the queue its tasks go to. It must be called
// once, before Seed. A graph that already stopped closes s right away.
func (g *Graph) Attach(s Scheduler) {
	g.schedMu.Lock()
	defer g.schedMu.Unlock()
	g.sched = s
	if g.stopped.Load() {
		s.Close()
	}
}

// Seed queues every processor once so each can report its first state.
func (g *Graph) Seed() {
	for _, n := range g.nodes {
		if g.notify(n) {
			g.sched.PushGlobal(task.Task{Processor: n.id, Origin: task.Seed})
		}
	}
}

// notify marks n as needing a poll and reports whether the caller must
// enqueue a task for it.
func (g *Graph) notify(n *Node) bool {
	for {
		w := n.wake.Load()
		switch w & wakeStateMk {
		case wakeIdle:
			if n.wake.CompareAndSwap(w, wakeQueued) {
				return true
			}
		case wakeRunning, wakeAsync:
			if w&wakeDirty != 0 || n.wake.CompareAndSwap(w, w|wakeDirty) {
				return false
			}
		default:
			return false
		}
	}
}

// Claim takes exclusive ownership of processor id for the worker that popped
// its task. It returns false if the task is stale and must be dropped.
func (g *Graph) Claim(id int) bool {
	return g.nodes[id].wake.CompareAndSwap(wakeQueued, wakeRunning)
}

// Drive polls and, if runnable, steps the claimed processor once, then
// propagates readiness. worker is the index of the calling worker and
// selects its local queue. A non-nil Future means the processor entered
// WaitingAsync and the caller must hand the future to the async bridge,
// which calls Resume when it completes.
func (g *Graph) Drive(ctx context.Context, id, worker int) processor.Future {
	n := g.nodes[id]
	if g.stopped.Load() {
		return nil
	}

	for {
		st, err := g.poll(n)
		if err != nil {
			g.fail(ctx, n, err)
			return nil
		}
		n.state.Store(int32(st))

		switch st {
		case processor.Runnable:
			n.rec.Reset()
			err := g.step(ctx, n)
			n.steps.Add(1)
			if err != nil {
				g.fail(ctx, n, err)
				return nil
			}
			g.propagate(n, worker)
			if g.stopped.Load() {
				return nil
			}
			next, err := g.poll(n)
			if err != nil {
				g.fail(ctx, n, err)
				return nil
			}
			switch next {
			case processor.Runnable, processor.Finished:
				// One step per task; the requeued task keeps ownership.
				n.wake.Store(wakeQueued)
				g.sched.Push(worker, task.Task{Processor: n.id, Origin: task.Step})
				return nil
			case processor.WaitingAsync:
				// Nothing else will wake a processor that parked itself, so
				// its future is started by this task.
				continue
			}
			if g.release(n) {
				return nil
			}

		case processor.WaitingAsync:
			if n.async == nil {
				g.fail(ctx, n, fmt.Errorf("processor reported %s but does not implement BeginAsync", st))
				return nil
			}
			fut, err := g.beginAsync(ctx, n)
			if err != nil {
				g.fail(ctx, n, err)
				return nil
			}
			n.wake.Store(wakeAsync)
			ctxlog.FromContext(ctx).Debug("Processor waiting on async operation.", "processor", n.addr.String())
			return fut

		case processor.Finished:
			g.finish(ctx, n, worker)
			return nil

		case processor.Failed, processor.Cancelled:
			g.fail(ctx, n, fmt.Errorf("processor reported %s", st))
			return nil

		default:
			if g.release(n) {
				return nil
			}
		}
	}
}

// release moves a running node back to idle. It returns false if a
// notification arrived while it ran, in which case the node stays running
// and the caller must poll again.
func (g *Graph) release(n *Node) bool {
	for {
		w := n.wake.Load()
		if w&wakeDirty != 0 {
			n.wake.Store(wakeRunning)
			return false
		}
		if n.wake.CompareAndSwap(wakeRunning, wakeIdle) {
			return true
		}
	}
}

// Resume is called by the async bridge when a future returned by Drive
// completes. It reports whether a task must be queued for the processor.
// After the graph stopped the result is discarded.
func (g *Graph) Resume(ctx context.Context, id int, err error) bool {
	n := g.nodes[id]
	if g.stopped.Load() {
		return false
	}
	if err != nil {
		g.fail(ctx, n, err)
		return false
	}
	n.wake.Store(wakeQueued)
	return true
}

func (g *Graph) propagate(n *Node, worker int) {
	if g.stopped.Load() {
		return
	}
	for _, e := range n.rec.Downstream() {
		if c := g.nodes[g.consumer[e]]; g.notify(c) {
			g.sched.Push(worker, task.Task{Processor: c.id, Origin: task.Step})
		}
	}
	for _, e := range n.rec.Upstream() {
		if p := g.nodes[g.producer[e]]; g.notify(p) {
			g.sched.Push(worker, task.Task{Processor: p.id, Origin: task.Step})
		}
	}
}

func (g *Graph) finish(ctx context.Context, n *Node, worker int) {
	n.rec.Reset()
	for _, in := range n.proc.Inputs() {
		in.Close()
	}
	for _, out := range n.proc.Outputs() {
		out.Finish()
	}
	n.state.Store(int32(processor.Finished))
	n.wake.Store(wakeDone)
	ctxlog.FromContext(ctx).Debug("Processor finished.", "processor", n.addr.String(), "steps", n.steps.Load())

	g.propagate(n, worker)
	if n.IsSink() && g.sinksLeft.Add(-1) == 0 {
		g.stop(Completed, nil, nil)
	}
}

func (g *Graph) fail(ctx context.Context, n *Node, err error) {
	n.err = err
	n.state.Store(int32(processor.Failed))
	n.wake.Store(wakeDone)
	if g.stop(Failed, &Failure{Node: n.id, Address: n.addr, Err: err}, nil) {
		ctxlog.FromContext(ctx).Error("Processor failed, cancelling graph.", "processor", n.addr.String(), "error", err)
		return
	}
	ctxlog.FromContext(ctx).Debug("Discarding error after graph stopped.", "processor", n.addr.String(), "error", err)
}

func (g *Graph) poll(n *Node) (st processor.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			st, err = processor.Failed, fmt.Errorf("panic in PollState: %v", r)
		}
	}()
	return n.proc.PollState(), nil
}

func (g *Graph) step(ctx context.Context, n *Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			ctxlog.FromContext(ctx).Error("Recovered from panic in Step.", "processor", n.addr.String(), "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic in step: %v", r)
		}
	}()
	return n.proc.Step(ctx)
}

func (g *Graph) beginAsync(ctx context.Context, n *Node) (fut processor.Future, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in BeginAsync: %v", r)
		}
	}()
	fut = n.async.BeginAsync(ctx)
	if fut == nil {
		return nil, fmt.Errorf("BeginAsync returned no future")
	}
	return fut, nil
}
