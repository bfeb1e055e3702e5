package executor

import (
	"context"
	"fmt"

	"github.com/vk/framegraph/internal/ctxlog"
)

// worker is the processing loop for a single concurrent worker. It records
// every pass of a lane before taking the next lane.
func (r *waveRun) worker(ctx context.Context, readyChan <-chan lane, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for l := range readyChan {
		r.runLane(ctx, l, workerID)
		r.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

func (r *waveRun) runLane(ctx context.Context, l lane, workerID int) {
	logger := ctxlog.FromContext(ctx).With("workerID", workerID, "queue", l.queue)
	for _, p := range l.passes {
		passLogger := logger.With("pass", p.Name)
		if err := ctx.Err(); err != nil {
			passLogger.Debug("Skipping pass after failure.")
			continue
		}

		passLogger.Debug("Worker picked up pass for execution.")
		if err := r.e.runPass(ctx, p); err != nil {
			passLogger.Error("Pass execution failed.", "error", err)
			r.fail(fmt.Errorf("pass '%s': %w", p.Name, err))
			continue
		}
		passLogger.Debug("Pass execution succeeded.")
	}
}
