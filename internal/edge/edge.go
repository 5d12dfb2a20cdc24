// Package edge implements the capacity-one channel that connects one
// processor output port to one processor input port.
//
// An Edge holds at most one data.Block. A producer cannot push into a full
// edge and a consumer cannot pull from an empty one, so the memory buffered
// by a graph is bounded by its number of edges no matter how fast producers
// run. The edge state is a single atomic tag word plus a payload slot:
//
//   - the has-data bit is set by the producer and cleared by the consumer
//   - the finished bit is set once and never cleared
//
// The slot is owned by the producer while the tag is zero and by the
// consumer while the has-data bit is set, which makes push and pull
// linearizable without a lock.
package edge

import (
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/burstflow/internal/data"
)

const (
	hasData uint32 = 1 << iota
	finished
)

// Edge is a single-slot, flow-controlled channel between two processors.
// Exactly one goroutine may act as producer and one as consumer at a time;
// the graph's per-processor exclusion provides that guarantee.
type Edge struct {
	id   int
	tag  atomic.Uint32
	slot data.Block
}

// New creates an empty, open edge.
func New(id int) *Edge {
	return &Edge{id: id}
}

// ID returns the edge's index within its graph.
func (e *Edge) ID() int {
	return e.id
}

// TryPush places b into the edge. It returns false if the edge is full or
// finished; in that case b is not retained.
func (e *Edge) TryPush(b data.Block) bool {
	if e.tag.Load() != 0 {
		return false
	}
	e.slot = b
	if !e.tag.CompareAndSwap(0, hasData) {
		// The consumer closed the edge between the load and the swap.
		e.slot = data.Block{}
		return false
	}
	return true
}

// TryPull removes and returns the queued block. The second return value is
// false if the edge is empty.
func (e *Edge) TryPull() (data.Block, bool) {
	if e.tag.Load()&hasData == 0 {
		return data.Block{}, false
	}
	b := e.slot
	e.slot = data.Block{}
	for {
		s := e.tag.Load()
		if e.tag.CompareAndSwap(s, s&^hasData) {
			return b, true
		}
	}
}

// MarkFinished is called by the producer to signal that no more data will
// be pushed. A block already queued stays available to the consumer.
// Calling it more than once has no further effect.
func (e *Edge) MarkFinished() {
	for {
		s := e.tag.Load()
		if s&finished != 0 || e.tag.CompareAndSwap(s, s|finished) {
			return
		}
	}
}

// Close is called by the consumer when it no longer wants data. The edge
// becomes finished and a queued block, if any, is discarded.
func (e *Edge) Close() {
	for {
		s := e.tag.Load()
		if s == finished {
			return
		}
		if e.tag.CompareAndSwap(s, finished) {
			if s&hasData != 0 {
				e.slot = data.Block{}
			}
			return
		}
	}
}

// IsFinished reports whether the edge has been finished by either side.
// Data may still be queued; see Exhausted.
func (e *Edge) IsFinished() bool {
	return e.tag.Load()&finished != 0
}

// Exhausted reports whether the edge is finished and holds no data: the
// end-of-stream condition seen by the consumer.
func (e *Edge) Exhausted() bool {
	return e.tag.Load() == finished
}

// HasData reports whether a block is queued.
func (e *Edge) HasData() bool {
	return e.tag.Load()&hasData != 0
}

// CanPush reports whether the producer may push right now.
func (e *Edge) CanPush() bool {
	return e.tag.Load() == 0
}

// String implements fmt.Stringer for logs.
func (e *Edge) String() string {
	s := e.tag.Load()
	return fmt.Sprintf("edge[%d](data=%t finished=%t)", e.id, s&hasData != 0, s&finished != 0)
}
