package graph

import (
	"fmt"

	"github.com/specialistvlad/burstflow/internal/edge"
	"github.com/specialistvlad/burstflow/internal/nodeid"
	"github.com/specialistvlad/burstflow/internal/processor"
)

// Builder assembles a Graph. It is not safe for concurrent use.
type Builder struct {
	g      *Graph
	byAddr map[string]int
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		g:      &Graph{done: make(chan struct{})},
		byAddr: make(map[string]int),
	}
}

// AddProcessor registers p under addr and returns its index.
func (b *Builder) AddProcessor(addr nodeid.Address, p processor.Processor) (int, error) {
	key := addr.String()
	if key == "" {
		return 0, fmt.Errorf("processor address is empty")
	}
	if _, exists := b.byAddr[key]; exists {
		return 0, fmt.Errorf("duplicate processor '%s'", key)
	}
	if p == nil {
		return 0, fmt.Errorf("processor '%s' is nil", key)
	}

	n := &Node{id: len(b.g.nodes), addr: addr, proc: p}
	if ap, ok := p.(processor.AsyncProcessor); ok {
		n.async = ap
	}
	n.state.Store(int32(processor.NeedsInput))
	b.g.nodes = append(b.g.nodes, n)
	b.byAddr[key] = n.id
	return n.id, nil
}

// Lookup returns the index of the processor registered under addr.
func (b *Builder) Lookup(addr nodeid.Address) (int, bool) {
	id, ok := b.byAddr[addr.String()]
	return id, ok
}

// Connect creates an edge from output port out of processor from to input
// port in of processor to.
func (b *Builder) Connect(from, out, to, in int) error {
	if from < 0 || from >= len(b.g.nodes) || to < 0 || to >= len(b.g.nodes) {
		return fmt.Errorf("connect %d -> %d: processor index out of range", from, to)
	}
	if from == to {
		return fmt.Errorf("%w: self-referential edge on processor '%s'", ErrCycle, b.g.nodes[from].addr)
	}
	src, dst := b.g.nodes[from], b.g.nodes[to]

	outs := src.proc.Outputs()
	if out < 0 || out >= len(outs) {
		return fmt.Errorf("processor '%s' has no output port %d", src.addr, out)
	}
	ins := dst.proc.Inputs()
	if in < 0 || in >= len(ins) {
		return fmt.Errorf("processor '%s' has no input port %d", dst.addr, in)
	}
	if outs[out].IsBound() {
		return fmt.Errorf("output port %d of '%s' is already connected", out, src.addr)
	}
	if ins[in].IsBound() {
		return fmt.Errorf("input port %d of '%s' is already connected", in, dst.addr)
	}

	e := edge.New(len(b.g.edges))
	outs[out].Bind(e, &src.rec)
	ins[in].Bind(e, &dst.rec)
	b.g.edges = append(b.g.edges, e)
	b.g.producer = append(b.g.producer, from)
	b.g.consumer = append(b.g.consumer, to)
	src.outEdges = append(src.outEdges, e.ID())
	dst.inEdges = append(dst.inEdges, e.ID())
	return nil
}

// Build validates the topology and returns the graph. The builder must not
// be used afterwards.
func (b *Builder) Build() (*Graph, error) {
	g := b.g
	if len(g.nodes) == 0 {
		return nil, fmt.Errorf("graph has no processors")
	}
	for _, n := range g.nodes {
		for i, p := range n.proc.Inputs() {
			if !p.IsBound() {
				return nil, fmt.Errorf("input port %d of '%s' is not connected", i, n.addr)
			}
		}
		for i, p := range n.proc.Outputs() {
			if !p.IsBound() {
				return nil, fmt.Errorf("output port %d of '%s' is not connected", i, n.addr)
			}
		}
		if n.IsSink() {
			g.sinks = append(g.sinks, n.id)
		}
	}
	if len(g.sinks) == 0 {
		return nil, fmt.Errorf("graph has no sink")
	}
	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	g.sinksLeft.Store(int32(len(g.sinks)))
	b.g = nil
	return g, nil
}

// detectCycles runs a depth-first search with temporary and permanent marks.
func (g *Graph) detectCycles() error {
	const (
		unvisited = iota
		temporary
		permanent
	)
	marks := make([]int, len(g.nodes))

	var visit func(id int) error
	visit = func(id int) error {
		switch marks[id] {
		case permanent:
			return nil
		case temporary:
			return fmt.Errorf("%w involving processor '%s'", ErrCycle, g.nodes[id].addr)
		}
		marks[id] = temporary
		for _, e := range g.nodes[id].outEdges {
			if err := visit(g.consumer[e]); err != nil {
				return err
			}
		}
		marks[id] = permanent
		return nil
	}

	for id := range g.nodes {
		if marks[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}
