package processor

import (
	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/edge"
)

// Recorder collects the edges a processor touched during one step.
// Downstream holds edges whose consumer must be re-polled (filled or
// finished); Upstream holds edges whose producer must be re-polled (drained
// or closed). One Recorder belongs to one processor and is only used by the
// goroutine currently driving it.
type Recorder struct {
	downstream []int
	upstream   []int
}

// Reset clears the recorded edges, keeping the backing arrays.
func (r *Recorder) Reset() {
	r.downstream = r.downstream[:0]
	r.upstream = r.upstream[:0]
}

// Downstream returns the edges whose consumers were affected.
func (r *Recorder) Downstream() []int { return r.downstream }

// Upstream returns the edges whose producers were affected.
func (r *Recorder) Upstream() []int { return r.upstream }

func (r *Recorder) down(id int) {
	if r != nil {
		r.downstream = append(r.downstream, id)
	}
}

func (r *Recorder) up(id int) {
	if r != nil {
		r.upstream = append(r.upstream, id)
	}
}

// InputPort is the consuming end of an edge.
type InputPort struct {
	edge *edge.Edge
	rec  *Recorder
}

// Bind attaches the port to its edge and to the owner's recorder.
func (p *InputPort) Bind(e *edge.Edge, rec *Recorder) {
	p.edge = e
	p.rec = rec
}

// IsBound reports whether the port is connected.
func (p *InputPort) IsBound() bool { return p.edge != nil }

// Edge returns the bound edge, or nil.
func (p *InputPort) Edge() *edge.Edge { return p.edge }

// Pull takes the queued block if there is one.
func (p *InputPort) Pull() (data.Block, bool) {
	if p.edge == nil {
		return data.Block{}, false
	}
	b, ok := p.edge.TryPull()
	if ok {
		p.rec.up(p.edge.ID())
	}
	return b, ok
}

// HasData reports whether a block is waiting.
func (p *InputPort) HasData() bool {
	return p.edge != nil && p.edge.HasData()
}

// IsFinished reports end of stream: the producer finished and nothing is
// queued. An unbound port is always finished.
func (p *InputPort) IsFinished() bool {
	return p.edge == nil || p.edge.Exhausted()
}

// Close tells the producer no more data is wanted.
func (p *InputPort) Close() {
	if p.edge == nil || p.edge.Exhausted() {
		return
	}
	p.edge.Close()
	p.rec.up(p.edge.ID())
}

// OutputPort is the producing end of an edge.
type OutputPort struct {
	edge *edge.Edge
	rec  *Recorder
}

// Bind attaches the port to its edge and to the owner's recorder.
func (p *OutputPort) Bind(e *edge.Edge, rec *Recorder) {
	p.edge = e
	p.rec = rec
}

// IsBound reports whether the port is connected.
func (p *OutputPort) IsBound() bool { return p.edge != nil }

// Edge returns the bound edge, or nil.
func (p *OutputPort) Edge() *edge.Edge { return p.edge }

// Push hands b to the consumer. It fails if the edge is full or finished.
func (p *OutputPort) Push(b data.Block) bool {
	if p.edge == nil {
		return false
	}
	if !p.edge.TryPush(b) {
		return false
	}
	p.rec.down(p.edge.ID())
	return true
}

// CanPush reports whether Push would currently succeed.
func (p *OutputPort) CanPush() bool {
	return p.edge != nil && p.edge.CanPush()
}

// IsFinished reports whether the port was finished or the consumer closed
// it. Either way nothing more can be pushed.
func (p *OutputPort) IsFinished() bool {
	return p.edge == nil || p.edge.IsFinished()
}

// Finish signals end of stream to the consumer.
func (p *OutputPort) Finish() {
	if p.edge == nil || p.edge.IsFinished() {
		return
	}
	p.edge.MarkFinished()
	p.rec.down(p.edge.ID())
}
