package operators

import (
	"context"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

var valuesDefinition = &registry.Definition{
	Kind:        "values",
	Description: "Emits literal rows.",
	Inputs:      registry.None,
	Outputs:     registry.One,
	Params:      []string{"rows", "batch_size"},
	Required:    []string{"rows"},
	New:         newValues,
}

// newValues partitions rows across instances: instance i emits every row
// whose index is i modulo the instance count.
func newValues(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	v, _, err := spec.Value("rows")
	if err != nil {
		return nil, err
	}
	if v.IsNull() || !(v.Type().IsTupleType() || v.Type().IsListType() || v.Type().IsSetType()) {
		return nil, spec.Errorf("argument 'rows' must be a list")
	}
	batch, err := batchSize(spec)
	if err != nil {
		return nil, err
	}

	var rows []cty.Value
	idx, count := 0, instanceCount(spec)
	for it := v.ElementIterator(); it.Next(); idx++ {
		_, row := it.Element()
		if idx%count == spec.Instance {
			rows = append(rows, row)
		}
	}

	return NewSource(func(context.Context) (data.Block, bool, error) {
		if len(rows) == 0 {
			return data.Block{}, false, nil
		}
		n := min(batch, len(rows))
		b := data.NewBlock(rows[:n:n]...)
		rows = rows[n:]
		return b, true, nil
	}), nil
}

var rangeDefinition = &registry.Definition{
	Kind:        "range",
	Description: "Emits the integers in [from, to).",
	Inputs:      registry.None,
	Outputs:     registry.One,
	Params:      []string{"from", "to", "batch_size"},
	Required:    []string{"to"},
	New:         newRange,
}

// newRange partitions the range like newValues.
func newRange(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	from, err := spec.Int("from", 0)
	if err != nil {
		return nil, err
	}
	to, err := spec.Int("to", 0)
	if err != nil {
		return nil, err
	}
	batch, err := batchSize(spec)
	if err != nil {
		return nil, err
	}

	stride := int64(instanceCount(spec))
	next := from + int64(spec.Instance)
	return NewSource(func(context.Context) (data.Block, bool, error) {
		if next >= to {
			return data.Block{}, false, nil
		}
		rows := make([]cty.Value, 0, batch)
		for ; next < to && len(rows) < batch; next += stride {
			rows = append(rows, cty.NumberIntVal(next))
		}
		return data.NewBlock(rows...), true, nil
	}), nil
}

func batchSize(spec *registry.Spec) (int, error) {
	n, err := spec.Int("batch_size", DefaultBatchSize)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, spec.Errorf("argument 'batch_size' must be positive, got %d", n)
	}
	return int(n), nil
}

func instanceCount(spec *registry.Spec) int {
	return max(spec.Parallelism, 1)
}
