package operators

import (
	"context"
	"fmt"
	"sort"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// buffering consumes its whole input and then emits one block built by
// flush. It is the shape of aggregate and sort.
type buffering struct {
	processor.Ports
	pending *data.Block
	flushed bool
	consume func(b data.Block) error
	flush   func() (data.Block, error)
}

func (s *buffering) PollState() processor.State {
	switch {
	case s.Out[0].IsFinished():
		return processor.Finished
	case s.pending != nil:
		if s.Out[0].CanPush() {
			return processor.Runnable
		}
		return processor.HasOutputReady
	case s.flushed:
		return processor.Finished
	case s.In[0].HasData(), s.In[0].IsFinished():
		return processor.Runnable
	default:
		return processor.NeedsInput
	}
}

func (s *buffering) Step(context.Context) error {
	if s.pending == nil {
		if b, ok := s.In[0].Pull(); ok {
			return s.consume(b)
		}
		if !s.In[0].IsFinished() {
			return nil
		}
		out, err := s.flush()
		if err != nil {
			return err
		}
		s.flushed = true
		if out.IsEmpty() {
			return nil
		}
		s.pending = &out
	}
	if s.Out[0].Push(*s.pending) {
		s.pending = nil
	}
	return nil
}

var aggregateDefinition = &registry.Definition{
	Kind:        "aggregate",
	Description: "Reduces the stream with count, sum, min or max and emits one row.",
	Inputs:      registry.One,
	Outputs:     registry.One,
	Params:      []string{"function", "expr"},
	Required:    []string{"function"},
	New:         newAggregate,
}

func newAggregate(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	fn, err := spec.String("function", "")
	if err != nil {
		return nil, err
	}
	expr := newRowExpr(spec, "expr")

	var (
		count int64
		acc   = cty.NullVal(cty.Number)
	)
	var reduce func(acc, v cty.Value) cty.Value
	switch fn {
	case "count":
	case "sum":
		acc = cty.Zero
		reduce = func(acc, v cty.Value) cty.Value { return acc.Add(v) }
	case "min":
		reduce = func(acc, v cty.Value) cty.Value {
			if acc.IsNull() || v.LessThan(acc).True() {
				return v
			}
			return acc
		}
	case "max":
		reduce = func(acc, v cty.Value) cty.Value {
			if acc.IsNull() || v.GreaterThan(acc).True() {
				return v
			}
			return acc
		}
	default:
		return nil, spec.Errorf("argument 'function' must be one of count, sum, min, max; got %q", fn)
	}

	return &buffering{
		Ports: processor.NewPorts(1, 1),
		consume: func(b data.Block) error {
			count += int64(b.Len())
			if reduce == nil {
				return nil
			}
			for _, row := range b.Rows {
				v, err := numericValue(expr, row)
				if err != nil {
					return spec.Errorf("%v", err)
				}
				if v.IsNull() {
					continue
				}
				acc = reduce(acc, v)
			}
			return nil
		},
		flush: func() (data.Block, error) {
			if fn == "count" {
				return data.Ints(count), nil
			}
			return data.NewBlock(acc), nil
		},
	}, nil
}

var sortDefinition = &registry.Definition{
	Kind:        "sort",
	Description: "Buffers all rows and emits them ordered by a numeric key.",
	Inputs:      registry.One,
	Outputs:     registry.One,
	Params:      []string{"key", "descending"},
	New:         newSort,
}

func newSort(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	desc, err := spec.Bool("descending", false)
	if err != nil {
		return nil, err
	}
	key := newRowExpr(spec, "key")

	type keyed struct {
		key float64
		row cty.Value
	}
	var rows []keyed
	return &buffering{
		Ports: processor.NewPorts(1, 1),
		consume: func(b data.Block) error {
			for _, row := range b.Rows {
				v, err := numericValue(key, row)
				if err != nil {
					return spec.Errorf("%v", err)
				}
				if v.IsNull() {
					return spec.Errorf("sort key of row %s is null", row.GoString())
				}
				f, err := data.Float64(v)
				if err != nil {
					return spec.Errorf("%v", err)
				}
				rows = append(rows, keyed{key: f, row: row})
			}
			return nil
		},
		flush: func() (data.Block, error) {
			sort.SliceStable(rows, func(i, j int) bool {
				if desc {
					return rows[i].key > rows[j].key
				}
				return rows[i].key < rows[j].key
			})
			out := make([]cty.Value, len(rows))
			for i, r := range rows {
				out[i] = r.row
			}
			rows = nil
			return data.NewBlock(out...), nil
		},
	}, nil
}

// numericValue evaluates expr (or takes the row itself) and requires a
// number or null.
func numericValue(expr *rowExpr, row cty.Value) (cty.Value, error) {
	v, err := expr.eval(row)
	if err != nil {
		return cty.NilVal, err
	}
	if v.IsNull() {
		return cty.NullVal(cty.Number), nil
	}
	if !v.IsKnown() || v.Type() != cty.Number {
		return cty.NilVal, fmt.Errorf("value %s is not a number", v.GoString())
	}
	return v, nil
}
