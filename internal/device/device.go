// Package device declares the capabilities the frame graph consumes from a
// GPU backend, and Memory, a backend that only records what it is asked to
// do. Memory backs dry runs, tests and the command line tool.
package device

import (
	"context"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/plan"
	"github.com/vk/framegraph/internal/resource"
)

// Factory creates and destroys device objects. The returned objects are
// opaque to the frame graph.
type Factory interface {
	CreateImage(ctx context.Context, desc resource.ImageDesc) (any, error)
	CreateBuffer(ctx context.Context, desc resource.BufferDesc) (any, error)
	Destroy(ctx context.Context, object any) error
}

// Recorder records synchronization commands on a queue.
type Recorder interface {
	PipelineBarrier(ctx context.Context, queue gfx.QueueClass, barriers []plan.Barrier) error
	WaitSemaphore(ctx context.Context, queue gfx.QueueClass, semaphore int, stage gfx.Stage) error
	SignalSemaphore(ctx context.Context, queue gfx.QueueClass, semaphore int) error
}
