package operators

import (
	"context"
	"fmt"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

var filterDefinition = &registry.Definition{
	Kind:        "filter",
	Description: "Keeps the rows for which predicate is true.",
	Inputs:      registry.One,
	Outputs:     registry.One,
	Params:      []string{"predicate"},
	Required:    []string{"predicate"},
	New:         newFilter,
}

func newFilter(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	pred := newRowExpr(spec, "predicate")
	return NewTransform(func(_ context.Context, b data.Block) (data.Block, bool, error) {
		var kept []cty.Value
		for _, row := range b.Rows {
			ok, err := pred.test(row)
			if err != nil {
				return data.Block{}, false, spec.Errorf("%v", err)
			}
			if ok {
				kept = append(kept, row)
			}
		}
		return data.NewBlock(kept...), false, nil
	}), nil
}

var projectDefinition = &registry.Definition{
	Kind:        "project",
	Description: "Maps every row through expr.",
	Inputs:      registry.One,
	Outputs:     registry.One,
	Params:      []string{"expr"},
	Required:    []string{"expr"},
	New:         newProject,
}

func newProject(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	expr := newRowExpr(spec, "expr")
	return NewTransform(func(_ context.Context, b data.Block) (data.Block, bool, error) {
		rows := make([]cty.Value, len(b.Rows))
		for i, row := range b.Rows {
			v, err := expr.eval(row)
			if err != nil {
				return data.Block{}, false, spec.Errorf("%v", err)
			}
			rows[i] = v
		}
		return data.NewBlock(rows...), false, nil
	}), nil
}

var limitDefinition = &registry.Definition{
	Kind:        "limit",
	Description: "Passes the first n rows, then closes its input.",
	Inputs:      registry.One,
	Outputs:     registry.One,
	Params:      []string{"n"},
	Required:    []string{"n"},
	New:         newLimit,
}

func newLimit(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	n, err := spec.Int("n", 0)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, spec.Errorf("argument 'n' must not be negative, got %d", n)
	}
	left := int(n)
	t := newTransform(func(_ context.Context, b data.Block) (data.Block, bool, error) {
		if b.Len() >= left {
			out := data.NewBlock(b.Rows[:left:left]...)
			left = 0
			return out, true, nil
		}
		left -= b.Len()
		return b, false, nil
	})
	t.stopped = left == 0
	return t, nil
}

var failAfterDefinition = &registry.Definition{
	Kind:        "fail_after",
	Description: "Forwards rows and fails once more than rows rows went through.",
	Inputs:      registry.One,
	Outputs:     registry.One,
	Params:      []string{"rows", "message"},
	Required:    []string{"rows"},
	New:         newFailAfter,
}

// ErrInjected is the failure raised by fail_after.
var ErrInjected = fmt.Errorf("injected failure")

func newFailAfter(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	limit, err := spec.Int("rows", 0)
	if err != nil {
		return nil, err
	}
	msg, err := spec.String("message", "")
	if err != nil {
		return nil, err
	}
	var seen int64
	return NewTransform(func(_ context.Context, b data.Block) (data.Block, bool, error) {
		seen += int64(b.Len())
		if seen > limit {
			if msg != "" {
				return data.Block{}, false, fmt.Errorf("%w: %s", ErrInjected, msg)
			}
			return data.Block{}, false, fmt.Errorf("%w after %d rows", ErrInjected, limit)
		}
		return b, false, nil
	}), nil
}
