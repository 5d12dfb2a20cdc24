package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/burstflow/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestRun_InvalidPlan(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	invalidHCL := `
		operator "range" "numbers" {
			arguments {
		// Missing closing brace here
	`
	filePath := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600), "failed to set up test file")
	out, logs := &bytes.Buffer{}, &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, logs, []string{"run", filePath})

	// --- Assert ---
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 1, exitErr.Code)
	require.Contains(t, exitErr.Message, "failed to load plan")
}

func TestRun_Help(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	out, logs := &bytes.Buffer{}, &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, logs, []string{"-h"})

	// --- Assert ---
	require.NoError(t, err, "help must not be an error")
	require.Contains(t, out.String(), "Usage:")
	require.Contains(t, out.String(), "meta")
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	filePath := filepath.Join(t.TempDir(), "main.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(`
operator "range" "numbers" {
  arguments {
    to = 100000000
  }
}

operator "sink" "out" {
  inputs = [range.numbers]
}
`), 0o600))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// --- Act ---
	err := run(ctx, &bytes.Buffer{}, &bytes.Buffer{}, []string{"run", filePath})

	// --- Assert ---
	require.ErrorContains(t, err, "execution cancelled")
}
