package testutil

import (
	"sort"
	"sync"
	"testing"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// Collector records what sinks deliver. It implements registry.Collector.
type Collector struct {
	mu     sync.Mutex
	blocks map[string][]data.Block
}

// Add implements registry.Collector.
func (c *Collector) Add(sink string, b data.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocks == nil {
		c.blocks = make(map[string][]data.Block)
	}
	c.blocks[sink] = append(c.blocks[sink], b)
}

// Blocks returns the blocks delivered to sink in arrival order.
func (c *Collector) Blocks(sink string) []data.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]data.Block(nil), c.blocks[sink]...)
}

// Rows returns the rows delivered to sink in arrival order.
func (c *Collector) Rows(sink string) []cty.Value {
	var out []cty.Value
	for _, b := range c.Blocks(sink) {
		out = append(out, b.Rows...)
	}
	return out
}

// Ints returns the rows of sink as integers, failing the test on any other
// row.
func (c *Collector) Ints(t *testing.T, sink string) []int64 {
	t.Helper()
	rows := c.Rows(sink)
	out := make([]int64, 0, len(rows))
	for _, row := range rows {
		v, err := data.Int64(row)
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

// SortedInts is Ints in ascending order, for sinks fed by merges.
func (c *Collector) SortedInts(t *testing.T, sink string) []int64 {
	t.Helper()
	out := c.Ints(t, sink)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Seq returns the integers in [from, to).
func Seq(from, to int64) []int64 {
	out := make([]int64, 0, max(to-from, 0))
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}
