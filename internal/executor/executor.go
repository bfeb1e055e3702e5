// Package executor runs a compiled plan against a device. Waves run one after
// another. Within a wave the passes of each queue class form a lane that is
// recorded in plan order, since every pass's synchronization assumes the
// passes before it on its queue have been recorded. Lanes of different
// queues are dispatched to a pool of workers.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/device"
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/plan"
)

// Executor orchestrates the execution of one plan.
type Executor struct {
	Plan     *plan.Plan
	Recorder device.Recorder
	Workers  int
}

// New creates an executor. A worker count below one means one worker.
func New(p *plan.Plan, rec device.Recorder, workers int) *Executor {
	return &Executor{Plan: p, Recorder: rec, Workers: max(workers, 1)}
}

// Run executes every wave in order and stops at the first wave in which a
// pass fails. Passes of the failing wave that have not started are skipped.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Executor: Starting.", "waves", len(e.Plan.Waves), "workers", e.Workers)

	for i := range e.Plan.Waves {
		if err := e.runWave(ctx, &e.Plan.Waves[i]); err != nil {
			logger.Error("Executor: Wave failed.", "wave", i, "error", err)
			return err
		}
	}
	logger.Info("Executor: All waves completed.", "waves", len(e.Plan.Waves))
	return nil
}

// lane is the ordered list of passes a wave records on one queue.
type lane struct {
	queue  gfx.QueueClass
	passes []*plan.PassPlan
}

// lanes splits a wave by queue class, keeping plan order inside each lane
// and ordering lanes by the first pass that uses them.
func lanes(w *plan.Wave) []lane {
	var out []lane
	index := make(map[gfx.QueueClass]int)
	for i := range w.Passes {
		p := &w.Passes[i]
		k, ok := index[p.Queue]
		if !ok {
			k = len(out)
			index[p.Queue] = k
			out = append(out, lane{queue: p.Queue})
		}
		out[k].passes = append(out[k].passes, p)
	}
	return out
}

// waveRun is the state shared by the workers of one wave.
type waveRun struct {
	e      *Executor
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
}

func (e *Executor) runWave(ctx context.Context, w *plan.Wave) error {
	ctx, cancel := context.WithCancel(ctxlog.With(ctx, "wave", w.Index))
	defer cancel()

	ls := lanes(w)
	run := &waveRun{e: e, cancel: cancel}
	readyChan := make(chan lane, len(ls))
	for _, l := range ls {
		run.wg.Add(1)
		readyChan <- l
	}
	close(readyChan)

	for id := range min(e.Workers, len(ls)) {
		go run.worker(ctx, readyChan, id)
	}
	run.wg.Wait()
	return errors.Join(run.errs...)
}

func (r *waveRun) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
	r.cancel()
}

// runPass records the synchronization around one pass and runs its work.
func (e *Executor) runPass(ctx context.Context, p *plan.PassPlan) error {
	rec := e.Recorder
	for _, w := range p.Waits {
		if err := rec.WaitSemaphore(ctx, p.Queue, w.Semaphore, w.Stage); err != nil {
			return fmt.Errorf("wait on semaphore %d: %w", w.Semaphore, err)
		}
	}
	if len(p.Acquires) > 0 {
		if err := rec.PipelineBarrier(ctx, p.Queue, p.Acquires); err != nil {
			return fmt.Errorf("acquire: %w", err)
		}
	}
	if len(p.Barriers) > 0 {
		if err := rec.PipelineBarrier(ctx, p.Queue, p.Barriers); err != nil {
			return fmt.Errorf("barrier: %w", err)
		}
	}
	if p.Execute != nil {
		if err := p.Execute(ctx, &resources{pass: p, instances: e.Plan.Instances}); err != nil {
			return err
		}
	}
	if len(p.Releases) > 0 {
		if err := rec.PipelineBarrier(ctx, p.Queue, p.Releases); err != nil {
			return fmt.Errorf("release: %w", err)
		}
	}
	for _, s := range p.Signals {
		if err := rec.SignalSemaphore(ctx, p.Queue, s); err != nil {
			return fmt.Errorf("signal semaphore %d: %w", s, err)
		}
	}
	return nil
}

// resources resolves slot names to the device objects of a plan.
type resources struct {
	pass      *plan.PassPlan
	instances []plan.Instance
}

func (r *resources) Object(slot string) (any, bool) {
	idx, ok := r.pass.Objects[slot]
	if !ok || idx < 0 || idx >= len(r.instances) {
		return nil, false
	}
	return r.instances[idx].Object, true
}
