package app

import (
	"context"
	"fmt"

	"github.com/vk/framegraph/internal/builder"
	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/device"
	"github.com/vk/framegraph/internal/executor"
	"github.com/vk/framegraph/internal/hcl_adapter"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/plan"
	"github.com/vk/framegraph/internal/publish"
)

// Run compiles the loaded frame graph and reports the plan.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.Format {
		_, err := a.outW.Write(hcl_adapter.Format(a.model))
		return err
	}

	mem := device.NewMemory()
	b, err := builder.FromModel(ctx, a.model, a.recorder(mem))
	if err != nil {
		return fmt.Errorf("failed to declare frame graph: %w", err)
	}
	p, err := b.Compile(ctx, mem)
	if err != nil {
		return fmt.Errorf("failed to compile frame graph: %w", err)
	}

	if a.config.Replay {
		a.logger.Info("Replaying plan.", "workers", a.config.Workers)
		if err := executor.New(p, mem, a.config.Workers).Run(ctx); err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
		a.logger.Info("Replay finished.", "device_calls", len(mem.Calls()))
	}

	if err := a.report(p); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	if a.config.PublishURL != "" {
		pub := publish.New(a.config.PublishURL)
		pub.Namespace = a.config.PublishNamespace
		pub.AckEvent = a.config.PublishAckEvent
		if a.config.PublishTimeout > 0 {
			pub.Timeout = a.config.PublishTimeout
		}
		if err := pub.Publish(ctx, p); err != nil {
			return fmt.Errorf("failed to publish plan: %w", err)
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) report(p *plan.Plan) error {
	if a.config.Output == OutputJSON {
		return p.WriteJSON(a.outW)
	}
	return p.WriteText(a.outW)
}

// recorder gives every pass a body that marks its execution on the device.
func (a *App) recorder(mem *device.Memory) func(string) node.ExecuteFunc {
	return func(pass string) node.ExecuteFunc {
		queue := a.queues[pass]
		return func(context.Context, node.Resources) error {
			mem.Mark(pass, queue)
			return nil
		}
	}
}
