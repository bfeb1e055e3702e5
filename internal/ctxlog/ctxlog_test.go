package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := With(WithLogger(context.Background(), logger), "pass", "gbuffer")
	FromContext(ctx).Info("Compile: Pass started.")

	assert.Contains(t, buf.String(), "pass=gbuffer")
	assert.Contains(t, buf.String(), `msg="Compile: Pass started."`)
}

func TestFromContext_PanicsWithoutLogger(t *testing.T) {
	assert.PanicsWithValue(t, "ctxlog: logger missing from context", func() {
		FromContext(context.Background())
	})
}
