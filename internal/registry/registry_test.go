package registry

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/specialistvlad/burstflow/internal/nodeid"
	"github.com/specialistvlad/burstflow/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return e
}

type testModule struct{}

func (testModule) Register(r *Registry) {
	r.Register(&Definition{
		Kind:    "noop",
		Inputs:  One,
		Outputs: None,
		New: func(context.Context, *Spec) (processor.Processor, error) {
			return nil, nil
		},
	})
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewWithModules(testModule{})

	def, ok := r.Lookup("noop")
	require.True(t, ok)
	assert.True(t, def.IsSink())
	assert.Equal(t, []string{"noop"}, r.Kinds())

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Panics(t, func() { testModule{}.Register(r) }, "duplicate kinds must panic")
}

func TestArity(t *testing.T) {
	assert.True(t, Many.Accepts(3))
	assert.False(t, Many.Accepts(0))
	assert.True(t, None.Accepts(0))
	assert.False(t, One.Accepts(2))
	assert.Equal(t, "at least 1", Many.String())
	assert.Equal(t, "exactly 1", One.String())
	assert.Equal(t, "1 to 3", Arity{1, 3}.String())
}

func TestSpec_Arguments(t *testing.T) {
	// Arrange
	spec := &Spec{
		Address:     nodeid.New("range", "r", 1),
		Instance:    1,
		Parallelism: 4,
		Args: map[string]hcl.Expression{
			"to":       expr(t, "instance.index * 100 + instance.count"),
			"label":    expr(t, `"x-${instance.index}"`),
			"flag":     expr(t, "true"),
			"wait":     expr(t, `"150ms"`),
			"bad":      expr(t, `"nope"`),
			"unknowns": expr(t, "row.id"),
		},
	}

	// Act & Assert
	to, err := spec.Int("to", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(104), to)

	def, err := spec.Int("from", 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), def)

	label, err := spec.String("label", "")
	require.NoError(t, err)
	assert.Equal(t, "x-1", label)

	flag, err := spec.Bool("flag", false)
	require.NoError(t, err)
	assert.True(t, flag)

	wait, err := spec.Duration("wait", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, wait)

	_, err = spec.Int("bad", 0)
	require.ErrorContains(t, err, "range.r[1]: argument 'bad'")

	_, _, err = spec.Value("unknowns")
	require.Error(t, err, "row is only bound per row")
}

func TestDefinition_CheckArgs(t *testing.T) {
	def := &Definition{Kind: "limit", Params: []string{"n"}, Required: []string{"n"}}

	require.NoError(t, def.CheckArgs(map[string]hcl.Expression{"n": expr(t, "1")}))

	err := def.CheckArgs(map[string]hcl.Expression{"count": expr(t, "1")})
	require.EqualError(t, err, "operator kind 'limit': missing required argument 'n'; unknown argument 'count'")
}
