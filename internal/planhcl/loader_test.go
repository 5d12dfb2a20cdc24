package planhcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const evenPlan = `
operator "range" "numbers" {
  arguments {
    to = 100
  }
}

operator "filter" "even" {
  inputs      = [range.numbers]
  parallelism = 2
  arguments {
    predicate = row % 2 == 0
  }
}

operator "sink" "out" {
  inputs = ["filter.even"]
}
`

func TestLoader_Parse(t *testing.T) {
	// Arrange
	l := NewLoader()

	// Act
	p, err := l.Parse(context.Background(), []byte(evenPlan), "even.hcl")

	// Assert
	require.NoError(t, err)
	require.Len(t, p.Operators, 3)

	src := p.Operators[0]
	assert.Equal(t, "range.numbers", src.Key())
	assert.Empty(t, src.Inputs)
	assert.Equal(t, 1, src.Instances())
	to, diags := src.Arguments["to"].Value(nil)
	require.False(t, diags.HasErrors())
	assert.True(t, to.RawEquals(cty.NumberIntVal(100)))

	filter := p.Operators[1]
	assert.Equal(t, []string{"range.numbers"}, filter.Inputs)
	assert.Equal(t, 2, filter.Parallelism)
	assert.Contains(t, filter.Arguments, "predicate")
	assert.Equal(t, "even.hcl", filter.DeclRange.Filename)

	assert.Equal(t, []string{"filter.even"}, p.Operators[2].Inputs)
}

func TestLoader_ParseErrors(t *testing.T) {
	testCases := []struct {
		name      string
		src       string
		expectErr string
	}{
		{
			name:      "syntax error",
			src:       `operator "range" {`,
			expectErr: "failed to parse",
		},
		{
			name:      "missing label",
			src:       `operator "range" {}`,
			expectErr: "failed to decode",
		},
		{
			name: "inputs not a list",
			src: `operator "sink" "out" {
  inputs = "range.a"
}`,
			expectErr: "inputs must be a list",
		},
		{
			name: "input with index",
			src: `operator "sink" "out" {
  inputs = [range.a[0]]
}`,
			expectErr: "must be kind.name",
		},
		{
			name: "zero parallelism",
			src: `operator "range" "a" {
  parallelism = 0
}`,
			expectErr: "at least 1",
		},
		{
			name: "unknown input",
			src: `operator "sink" "out" {
  inputs = [range.missing]
}`,
			expectErr: "unknown operator",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLoader().Parse(context.Background(), []byte(tc.src), "bad.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectErr)
		})
	}
}

func TestLoader_LoadMergesFiles(t *testing.T) {
	// Arrange
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(`
operator "range" "numbers" {
  arguments {
    to = 3
  }
}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.hcl"), []byte(`
operator "sink" "out" {
  inputs = [range.numbers]
}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	// Act
	p, err := NewLoader().Load(context.Background(), dir, filepath.Join(dir, "a.hcl"), filepath.Join(dir, "missing"))

	// Assert
	require.NoError(t, err)
	require.Len(t, p.Operators, 2, "a file listed twice is loaded once")
	assert.Equal(t, "range.numbers", p.Operators[0].Key())
	assert.Equal(t, "sink.out", p.Operators[1].Key())
}

func TestLoader_LoadNoFiles(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), t.TempDir())
	require.Error(t, err)
}
