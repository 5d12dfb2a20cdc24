package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/burstflow/internal/graph"
	"github.com/specialistvlad/burstflow/internal/localexecutor"
	"github.com/specialistvlad/burstflow/internal/pipeline"
	"github.com/specialistvlad/burstflow/internal/plan"
	"github.com/specialistvlad/burstflow/internal/registry"
	"github.com/stretchr/testify/require"
)

// Build compiles ops with reg. The collector is installed as env.Results;
// a nil env is replaced by an empty one.
func Build(t *testing.T, reg *registry.Registry, env *registry.Env, ops ...*plan.Operator) (*graph.Graph, *Collector) {
	t.Helper()
	res := &Collector{}
	if env == nil {
		env = &registry.Env{}
	}
	env.Results = res

	g, err := pipeline.Build(context.Background(), reg, plan.New(ops...), env)
	require.NoError(t, err)
	return g, res
}

// Run builds ops and executes them on a small threaded pool.
func Run(t *testing.T, reg *registry.Registry, env *registry.Env, ops ...*plan.Operator) (*Collector, error) {
	t.Helper()
	g, res := Build(t, reg, env, ops...)
	err := localexecutor.New(localexecutor.Options{Workers: 4}).Run(context.Background(), g)
	return res, err
}

// WriteFiles writes files, keyed by relative path, under a fresh temporary
// directory and returns the directory.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}
