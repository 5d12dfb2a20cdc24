// Package pipeline compiles a plan.Plan into an executable graph.Graph.
//
// Each operator becomes Parallelism processor instances. An input edge
// between two operators is expanded by their instance counts:
//
//   - equal counts pair instance i with instance i
//   - a consumer with a single instance gathers one input port per
//     producer instance
//
// Any other combination is rejected. An instance feeding more than one
// consumer gets an implicit broadcast processor inserted after it, so every
// non-broadcast kind keeps at most one output port.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/burstflow/internal/ctxlog"
	"github.com/specialistvlad/burstflow/internal/graph"
	"github.com/specialistvlad/burstflow/internal/nodeid"
	"github.com/specialistvlad/burstflow/internal/plan"
	"github.com/specialistvlad/burstflow/internal/registry"
)

// BroadcastKind is the kind used for implicit fan-out processors.
const BroadcastKind = "broadcast"

// compiled tracks one operator while its instances are built and wired.
type compiled struct {
	op        *plan.Operator
	def       *registry.Definition
	instances int
	inPorts   int
	// consumers is the number of output edges each instance feeds.
	consumers int
	// fanout holds the implicit broadcast node of every instance, if any.
	fanout []int
	nodes  []int
	// nextOut is the next free output port of each instance's emitter.
	nextOut []int
	// nextIn is the next free input port of each instance.
	nextIn []int
}

func (c *compiled) emitter(i int) int {
	if c.fanout != nil {
		return c.fanout[i]
	}
	return c.nodes[i]
}

// Build validates p against reg and returns the wired graph. env is shared
// by every processor.
func Build(ctx context.Context, reg *registry.Registry, p *plan.Plan, env *registry.Env) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}

	ops, err := resolve(reg, p)
	if err != nil {
		return nil, err
	}
	if err := countPorts(p, ops); err != nil {
		return nil, err
	}

	b := graph.NewBuilder()
	for _, op := range p.Operators {
		if err := addInstances(ctx, b, reg, ops[op.Key()], env); err != nil {
			return nil, err
		}
	}
	for _, op := range p.Operators {
		if err := connectInputs(b, ops, ops[op.Key()]); err != nil {
			return nil, err
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline: %w", err)
	}
	logger.Debug("Pipeline compiled.", "operators", len(p.Operators), "processors", g.Len(), "edges", len(g.Edges()))
	return g, nil
}

func resolve(reg *registry.Registry, p *plan.Plan) (map[string]*compiled, error) {
	var errs []error
	ops := make(map[string]*compiled, len(p.Operators))
	for _, op := range p.Operators {
		def, ok := reg.Lookup(op.Kind)
		if !ok {
			errs = append(errs, fmt.Errorf("operator %s: unknown kind '%s'", op.Key(), op.Kind))
			continue
		}
		if err := def.CheckArgs(op.Arguments); err != nil {
			errs = append(errs, fmt.Errorf("operator %s: %w", op.Key(), err))
			continue
		}
		ops[op.Key()] = &compiled{op: op, def: def, instances: op.Instances()}
	}
	return ops, errors.Join(errs...)
}

// countPorts sizes every instance's ports and decides where fan-out
// processors are needed.
func countPorts(p *plan.Plan, ops map[string]*compiled) error {
	var errs []error
	for _, op := range p.Operators {
		c := ops[op.Key()]
		for _, in := range op.Inputs {
			src := ops[in]
			switch {
			case src.instances == c.instances:
				c.inPorts++
			case c.instances == 1:
				c.inPorts += src.instances
			default:
				errs = append(errs, fmt.Errorf("cannot connect %s (parallelism %d) to %s (parallelism %d): counts must match or the consumer must have parallelism 1",
					in, src.instances, op.Key(), c.instances))
				continue
			}
			src.consumers++
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, op := range p.Operators {
		c := ops[op.Key()]
		if !c.def.Inputs.Accepts(c.inPorts) {
			errs = append(errs, fmt.Errorf("operator %s: kind '%s' takes %s inputs, got %d", op.Key(), c.def.Kind, c.def.Inputs, c.inPorts))
		}
		switch {
		case c.def.IsSink() && c.consumers > 0:
			errs = append(errs, fmt.Errorf("operator %s: kind '%s' is a sink and cannot be an input", op.Key(), c.def.Kind))
		case !c.def.IsSink() && c.consumers == 0:
			errs = append(errs, fmt.Errorf("operator %s: output is not consumed by any operator", op.Key()))
		case !c.def.Outputs.Accepts(c.consumers) && c.def.Outputs.Accepts(1):
			c.fanout = make([]int, c.instances)
		case !c.def.Outputs.Accepts(c.consumers):
			errs = append(errs, fmt.Errorf("operator %s: kind '%s' takes %s outputs, got %d", op.Key(), c.def.Kind, c.def.Outputs, c.consumers))
		}
	}
	return errors.Join(errs...)
}

func addInstances(ctx context.Context, b *graph.Builder, reg *registry.Registry, c *compiled, env *registry.Env) error {
	op := c.op
	outPorts := c.consumers
	if c.fanout != nil {
		outPorts = 1
	}
	c.nodes = make([]int, c.instances)
	c.nextOut = make([]int, c.instances)
	c.nextIn = make([]int, c.instances)

	for i := range c.instances {
		spec := &registry.Spec{
			Address:     nodeid.New(op.Kind, op.Name, i),
			Instance:    i,
			Parallelism: c.instances,
			Inputs:      c.inPorts,
			Outputs:     outPorts,
			Args:        op.Arguments,
			Env:         env,
		}
		id, err := addProcessor(ctx, b, c.def, spec)
		if err != nil {
			return err
		}
		c.nodes[i] = id
	}
	if c.fanout == nil {
		return nil
	}

	def, ok := reg.Lookup(BroadcastKind)
	if !ok {
		return fmt.Errorf("operator %s feeds %d operators but kind '%s' is not registered", op.Key(), c.consumers, BroadcastKind)
	}
	for i := range c.instances {
		spec := &registry.Spec{
			Address:     nodeid.New(BroadcastKind, fmt.Sprintf("%s-%s-fanout", op.Kind, op.Name), i),
			Instance:    i,
			Parallelism: c.instances,
			Inputs:      1,
			Outputs:     c.consumers,
			Env:         env,
		}
		id, err := addProcessor(ctx, b, def, spec)
		if err != nil {
			return err
		}
		if err := b.Connect(c.nodes[i], 0, id, 0); err != nil {
			return err
		}
		c.fanout[i] = id
	}
	return nil
}

func addProcessor(ctx context.Context, b *graph.Builder, def *registry.Definition, spec *registry.Spec) (int, error) {
	proc, err := def.New(ctx, spec)
	if err != nil {
		return 0, fmt.Errorf("building %s: %w", spec.Address, err)
	}
	if len(proc.Inputs()) != spec.Inputs || len(proc.Outputs()) != spec.Outputs {
		return 0, fmt.Errorf("building %s: kind '%s' created %d inputs and %d outputs, want %d and %d",
			spec.Address, def.Kind, len(proc.Inputs()), len(proc.Outputs()), spec.Inputs, spec.Outputs)
	}
	return b.AddProcessor(spec.Address, proc)
}

// connectInputs wires c's input ports in the order of its plan inputs.
func connectInputs(b *graph.Builder, ops map[string]*compiled, c *compiled) error {
	for _, in := range c.op.Inputs {
		src := ops[in]
		if src.instances == c.instances {
			for i := range c.instances {
				if err := connect(b, src, i, c, i); err != nil {
					return err
				}
			}
			continue
		}
		for i := range src.instances {
			if err := connect(b, src, i, c, 0); err != nil {
				return err
			}
		}
	}
	return nil
}

func connect(b *graph.Builder, src *compiled, si int, dst *compiled, di int) error {
	out := src.nextOut[si]
	in := dst.nextIn[di]
	if err := b.Connect(src.emitter(si), out, dst.nodes[di], in); err != nil {
		return fmt.Errorf("connecting %s to %s: %w", src.op.Key(), dst.op.Key(), err)
	}
	src.nextOut[si]++
	dst.nextIn[di]++
	return nil
}
