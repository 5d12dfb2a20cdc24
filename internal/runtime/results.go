package runtime

import (
	"context"
	"io"
	"sync"

	"github.com/specialistvlad/burstflow/internal/data"
)

// Batch is one block delivered by a sink.
type Batch struct {
	Sink  string
	Block data.Block
}

// collector implements registry.Collector. Sinks of a query add to it
// concurrently.
type collector struct {
	mu      sync.Mutex
	batches []Batch
}

func (c *collector) Add(sink string, b data.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, Batch{Sink: sink, Block: b})
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *collector) take() []Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.batches
	c.batches = nil
	return out
}

// ResultStream yields the batches of a finished query in the order sinks
// delivered them. It can be read once.
type ResultStream struct {
	batches []Batch
	pos     int
}

// Next returns the next batch, or io.EOF once the stream is exhausted.
func (s *ResultStream) Next(ctx context.Context) (data.Block, error) {
	b, err := s.NextBatch(ctx)
	return b.Block, err
}

// NextBatch is Next with the name of the sink that produced the block.
func (s *ResultStream) NextBatch(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if s.pos >= len(s.batches) {
		return Batch{}, io.EOF
	}
	b := s.batches[s.pos]
	s.batches[s.pos] = Batch{}
	s.pos++
	return b, nil
}

// Remaining returns the number of unread batches.
func (s *ResultStream) Remaining() int {
	return len(s.batches) - s.pos
}
