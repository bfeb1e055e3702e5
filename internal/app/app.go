package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/framegraph/internal/config"
	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/gfx"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	model  *config.Model
	queues map[string]gfx.QueueClass
}

// NewApp loads the graph declaration named by cfg and returns an App ready to
// run. Logs go to logW and reports to outW. A declaration that fails to load
// is fatal and panics.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.GraphPath)
	if err != nil {
		panic(fmt.Errorf("failed to load frame graph: %w", err))
	}
	logger.Debug("Frame graph declaration loaded.",
		"images", len(model.Images), "buffers", len(model.Buffers), "passes", len(model.Passes))

	queues := make(map[string]gfx.QueueClass, len(model.Passes))
	for _, p := range model.Passes {
		q := p.Queue
		if q == gfx.QueueIgnored {
			q = gfx.QueueGraphics
		}
		queues[p.Name] = q
	}

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		model:  model,
		queues: queues,
	}
}

// Model returns the loaded declaration. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
