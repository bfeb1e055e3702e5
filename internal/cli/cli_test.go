package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/app"
)

func TestParse(t *testing.T) {
	var out bytes.Buffer
	cfg, exit, err := Parse([]string{
		"-output", "JSON", "-replay", "-workers", "8",
		"-publish-url", "http://localhost:3000/socket.io/", "-publish-timeout", "2s",
		"graphs/deferred",
	}, &out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, &app.Config{
		GraphPath:      "graphs/deferred",
		LogFormat:      "text",
		LogLevel:       "info",
		Output:         app.OutputJSON,
		Replay:         true,
		Workers:        8,
		PublishURL:     "http://localhost:3000/socket.io/",
		PublishTimeout: 2 * time.Second,
	}, cfg)
}

func TestParse_PathPrecedence(t *testing.T) {
	cfg, _, err := Parse([]string{"-graph", "a.hcl", "-g", "b.hcl", "c.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "a.hcl", cfg.GraphPath)

	cfg, _, err = Parse([]string{"-g", "b.hcl", "c.hcl"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "b.hcl", cfg.GraphPath)
}

func TestParse_ExitsCleanly(t *testing.T) {
	for _, args := range [][]string{{"-h"}, {}} {
		var out bytes.Buffer
		cfg, exit, err := Parse(args, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string][]string{
		"flag provided but not defined": {"-nope", "g.hcl"},
		"invalid log-format":            {"-log-format", "xml", "g.hcl"},
		"invalid log-level":             {"-log-level", "loud", "g.hcl"},
		"invalid workers":               {"-workers", "0", "g.hcl"},
		`invalid output "yaml"`:         {"-output", "yaml", "g.hcl"},
	}
	for want, args := range tests {
		t.Run(want, func(t *testing.T) {
			_, _, err := Parse(args, &bytes.Buffer{})
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, want)
		})
	}
}
