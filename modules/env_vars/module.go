// Package env_vars provides the `env` source, which emits the process
// environment as rows of {name, value}.
package env_vars

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/specialistvlad/burstflow/internal/data"
	"github.com/specialistvlad/burstflow/internal/operators"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Kind is the operator kind registered by this module.
const Kind = "env"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the env kind.
func (m *Module) Register(r *registry.Registry) {
	r.Register(&registry.Definition{
		Kind:        Kind,
		Description: "Emits environment variables as {name, value} rows, sorted by name.",
		Inputs:      registry.None,
		Outputs:     registry.One,
		Params:      []string{"prefix", "strip_prefix"},
		New:         newEnv,
	})
}

func newEnv(_ context.Context, spec *registry.Spec) (processor.Processor, error) {
	prefix, err := spec.String("prefix", "")
	if err != nil {
		return nil, err
	}
	strip, err := spec.Bool("strip_prefix", false)
	if err != nil {
		return nil, err
	}

	rows := envRows(os.Environ(), prefix, strip, spec.Instance, max(spec.Parallelism, 1))
	done := false
	return operators.NewSource(func(context.Context) (data.Block, bool, error) {
		if done {
			return data.Block{}, false, nil
		}
		done = true
		return data.NewBlock(rows...), true, nil
	}), nil
}

// envRows keeps the variables starting with prefix and returns the share of
// instance out of count.
func envRows(env []string, prefix string, strip bool, instance, count int) []cty.Value {
	vars := make(map[string]string)
	for _, e := range env {
		name, value, ok := strings.Cut(e, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		if strip {
			name = strings.TrimPrefix(name, prefix)
		}
		if name == "" {
			continue
		}
		vars[name] = value
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []cty.Value
	for i, name := range names {
		if i%count != instance {
			continue
		}
		rows = append(rows, cty.ObjectVal(map[string]cty.Value{
			"name":  cty.StringVal(name),
			"value": cty.StringVal(vars[name]),
		}))
	}
	return rows
}
