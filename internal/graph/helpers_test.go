package graph_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/graph"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/scheduler"
	"github.com/specialistvlad/burstflow/internal/task"
)

// exclusion counts concurrent Step calls per processor.
type exclusion struct {
	active     atomic.Int32
	violations *atomic.Int32
}

func (x *exclusion) enter() {
	if x.active.Add(1) > 1 && x.violations != nil {
		x.violations.Add(1)
	}
}

func (x *exclusion) leave() { x.active.Add(-1) }

// source emits n single-row blocks 0..n-1.
type source struct {
	processor.Ports
	exclusion
	next, n int64
}

func newSource(n int64) *source {
	return &source{Ports: processor.NewPorts(0, 1), n: n}
}

func (s *source) PollState() processor.State {
	if s.Out[0].IsFinished() || s.next >= s.n {
		return processor.Finished
	}
	if s.Out[0].CanPush() {
		return processor.Runnable
	}
	return processor.HasOutputReady
}

func (s *source) Step(context.Context) error {
	s.enter()
	defer s.leave()
	if s.Out[0].Push(data.Ints(s.next)) {
		s.next++
	}
	return nil
}

// relay forwards blocks, optionally sleeping a random few microseconds and
// failing once failAt rows went through.
type relay struct {
	processor.Ports
	exclusion
	pending *data.Block
	jitter  bool
	seen    int
	failAt  int
	keep    func(int64) bool
}

func newRelay() *relay {
	return &relay{Ports: processor.NewPorts(1, 1), failAt: -1}
}

func (r *relay) PollState() processor.State {
	if r.Out[0].IsFinished() {
		return processor.Finished
	}
	if r.pending != nil {
		if r.Out[0].CanPush() {
			return processor.Runnable
		}
		return processor.HasOutputReady
	}
	if r.In[0].HasData() {
		return processor.Runnable
	}
	if r.In[0].IsFinished() {
		return processor.Finished
	}
	return processor.NeedsInput
}

var errBoom = errors.New("boom")

func (r *relay) Step(context.Context) error {
	r.enter()
	defer r.leave()
	if r.jitter {
		time.Sleep(time.Duration(rand.Intn(20)) * time.Microsecond)
	}
	if r.pending != nil {
		if r.Out[0].Push(*r.pending) {
			r.pending = nil
		}
		return nil
	}
	b, ok := r.In[0].Pull()
	if !ok {
		return nil
	}
	if r.failAt >= 0 && r.seen >= r.failAt {
		return errBoom
	}
	r.seen++
	if r.keep != nil {
		v, err := data.Int64(b.Rows[0])
		if err != nil {
			return err
		}
		if !r.keep(v) {
			return nil
		}
	}
	if !r.Out[0].Push(b) {
		r.pending = &b
	}
	return nil
}

// merge forwards blocks from any of its inputs.
type merge struct {
	processor.Ports
	exclusion
	pending *data.Block
}

func newMerge(inputs int) *merge {
	return &merge{Ports: processor.NewPorts(inputs, 1)}
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
	m.enter()
	defer m.leave()
	if m.pending != nil {
		if m.Out[0].Push(*m.pending) {
			m.pending = nil
		}
		return nil
	}
	for _, in := range m.In {
		if b, ok := in.Pull(); ok {
			if !m.Out[0].Push(b) {
				m.pending = &b
			}
			return nil
		}
	}
	return nil
}

// collector is a sink that records every value it receives and samples the
// number of buffered blocks in the graph.
type collector struct {
	processor.Ports
	exclusion
	mu          sync.Mutex
	values      []int64
	g           *graph.Graph
	maxBuffered int
}

func newCollector() *collector {
	return &collector{Ports: processor.NewPorts(1, 0)}
}

func (c *collector) PollState() processor.State {
	if c.In[0].HasData() {
		return processor.Runnable
	}
	if c.In[0].IsFinished() {
		return processor.Finished
	}
	return processor.NeedsInput
}

func (c *collector) Step(context.Context) error {
	c.enter()
	defer c.leave()
	b, ok := c.In[0].Pull()
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g != nil {
		if n := c.g.BufferedItems(); n > c.maxBuffered {
			c.maxBuffered = n
		}
	}
	for _, row := range b.Rows {
		v, err := data.Int64(row)
		if err != nil {
			return err
		}
		c.values = append(c.values, v)
	}
	return nil
}

func (c *collector) Values() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.values...)
}

// stub only exposes ports; it is used for topology tests.
type stub struct {
	processor.Ports
}

func newStub(in, out int) *stub {
	return &stub{Ports: processor.NewPorts(in, out)}
}

func (s *stub) PollState() processor.State  { return processor.NeedsInput }
func (s *stub) Step(context.Context) error { return nil }

// drive runs g with a minimal worker pool and returns whether the queue
// reported a stall. Futures run on their own goroutines and re-enter the
// queue through Resume, the way the async bridge feeds them back.
func drive(t *testing.T, g *graph.Graph, workers int) bool {
	t.Helper()
	var inFlight atomic.Int64
	q := scheduler.New(workers, func() bool { return inFlight.Load() == 0 })
	g.Attach(q)
	g.Seed()

	ctx := context.Background()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				tk, ok := q.Pop(w)
				if !ok {
					return
				}
				if !g.Claim(tk.Processor) {
					continue
				}
				fut := g.Drive(ctx, tk.Processor, w)
				if fut == nil {
					continue
				}
				inFlight.Add(1)
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					defer inFlight.Add(-1)
					if g.Resume(ctx, id, fut(ctx)) {
						q.PushGlobal(task.Task{Processor: id, Origin: task.Async})
					}
				}(tk.Processor)
			}
		}(w)
	}
	wg.Wait()
	q.Drain()
	g.Finalize()
	return q.Stalled()
}

// parker holds every block it pulls until a future hands it back. It
// reports WaitingAsync straight after the step that pulled the block.
type parker struct {
	processor.Ports
	held    *data.Block
	pending atomic.Pointer[data.Block]
}

func newParker() *parker {
	return &parker{Ports: processor.NewPorts(1, 1)}
}

func (p *parker) PollState() processor.State {
	switch {
	case p.Out[0].IsFinished():
		return processor.Finished
	case p.pending.Load() != nil:
		if p.Out[0].CanPush() {
			return processor.Runnable
		}
		return processor.HasOutputReady
	case p.held != nil:
		return processor.WaitingAsync
	case p.In[0].HasData():
		return processor.Runnable
	case p.In[0].IsFinished():
		return processor.Finished
	default:
		return processor.NeedsInput
	}
}

func (p *parker) Step(context.Context) error {
	if b := p.pending.Load(); b != nil {
		if p.Out[0].Push(*b) {
			p.pending.Store(nil)
		}
		return nil
	}
	if b, ok := p.In[0].Pull(); ok {
		p.held = &b
	}
	return nil
}

func (p *parker) BeginAsync(context.Context) processor.Future {
	b := p.held
	p.held = nil
	return func(ctx context.Context) error {
		time.Sleep(time.Duration(rand.Intn(50)) * time.Microsecond)
		p.pending.Store(b)
		return ctx.Err()
	}
}

// brokenPoll emits one block and then panics whenever it is polled.
type brokenPoll struct {
	processor.Ports
	stepped bool
}

func (b *brokenPoll) PollState() processor.State {
	if b.stepped {
		panic("state lost")
	}
	return processor.Runnable
}

func (b *brokenPoll) Step(context.Context) error {
	b.stepped = b.Out[0].Push(data.Ints(1))
	return nil
}
