package operators_test

import (
	"testing"

	"github.com/specialistvlad/burstflow/internal/graph"
	"github.com/specialistvlad/burstflow/internal/operators"
	"github.com/specialistvlad/burstflow/internal/plan"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/specialistvlad/burstflow/internal/testutil"
)

// build compiles ops with the builtin kinds.
func build(t *testing.T, env *registry.Env, ops ...*plan.Operator) (*graph.Graph, *testutil.Collector) {
	t.Helper()
	return testutil.Build(t, registry.NewWithModules(operators.Module{}), env, ops...)
}

// run builds ops and executes them on a small pool.
func run(t *testing.T, env *registry.Env, ops ...*plan.Operator) (*testutil.Collector, error) {
	t.Helper()
	return testutil.Run(t, registry.NewWithModules(operators.Module{}), env, ops...)
}
