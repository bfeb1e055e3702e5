package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	invalidHCL := `
pass "draw" {
  output "color" {
`
	filePath := filepath.Join(t.TempDir(), "graph.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(invalidHCL), 0o600))

	out := &bytes.Buffer{}
	runErr := run(out, &bytes.Buffer{}, []string{filePath})

	require.Error(t, runErr, "run() should return the recovered panic as an error")
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	require.NoError(t, run(out, &bytes.Buffer{}, []string{"-h"}))
	require.Contains(t, out.String(), "Usage:")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_CompilesGraph(t *testing.T) {
	t.Parallel()

	graph := `
buffer "scratch" {
  size = 256
}

pass "clear" {
  queue = queue.compute

  transient "tmp" {
    resource = buffer.scratch
    access   = [access.shader_write]
    stage    = [stage.compute_shader]
  }
}
`
	filePath := filepath.Join(t.TempDir(), "graph.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(graph), 0o600))

	out := &bytes.Buffer{}
	require.NoError(t, run(out, &bytes.Buffer{}, []string{"-replay", filePath}))
	require.Contains(t, out.String(), "pass clear (queue compute)")
}
