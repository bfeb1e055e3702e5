// Package compile synthesizes the synchronization of a frame graph. For each
// pass it compares the state every attachment requires with the state stored
// for the backing instance, emits the barriers that bridge the two, pairs
// queue ownership transfers through semaphores, and commits the states the
// pass produces.
package compile

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/plan"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/substate"
)

var (
	// ErrUnassignedHandle is returned when state is requested for a handle
	// that no instance backs yet.
	ErrUnassignedHandle = errors.New("handle has no assigned instance")
	// ErrUnpairedQueueTransfer is returned when an acquire has no matching
	// release, or a release is never acquired.
	ErrUnpairedQueueTransfer = errors.New("unpaired queue ownership transfer")
	// ErrConflictingQueueTransfer is returned when consumers of overlapping
	// ranges of one output require different queues.
	ErrConflictingQueueTransfer = errors.New("conflicting queue ownership transfer")
)

// Instances resolves handles to their backing instances.
type Instances interface {
	Instance(h resource.Handle) (*resource.Instance, bool)
	Info(h resource.Handle) (resource.Info, error)
}

// Context carries the synchronization state of one compile.
type Context struct {
	graph     *node.Graph
	instances Instances

	semaphores []plan.Semaphore
	pending    []*transfer
}

// transfer is a released but not yet fully acquired queue transfer.
type transfer struct {
	sem       int
	handle    resource.Handle
	instance  int
	rng       substate.Range
	remaining uint64
}

// New creates a compile context over the graph and its instances.
func New(graph *node.Graph, instances Instances) *Context {
	return &Context{graph: graph, instances: instances}
}

// Semaphores returns every semaphore registered so far.
func (c *Context) Semaphores() []plan.Semaphore { return c.semaphores }

func (c *Context) resourceName(h resource.Handle) string {
	if info, err := c.instances.Info(h); err == nil && info.Name != "" {
		return info.Name
	}
	return h.String()
}

func (c *Context) lookup(pass *plan.PassPlan, h resource.Handle, r substate.Range) (*resource.Instance, substate.Range, error) {
	inst, ok := c.instances.Instance(h)
	if !ok {
		return nil, nil, fmt.Errorf("pass '%s': %w: %s", pass.Name, ErrUnassignedHandle, c.resourceName(h))
	}
	if r == nil {
		r = inst.State.Full()
	}
	return inst, r, nil
}

// RequireSubResourceStateBeforePass brings range r of h into the required
// state before pass runs. Divergent intervals get a barrier; intervals owned
// by another queue consume the matching released transfer and get an acquire
// barrier plus a semaphore wait. A nil range selects the whole resource.
func (c *Context) RequireSubResourceStateBeforePass(ctx context.Context, pass *plan.PassPlan, h resource.Handle, r substate.Range, required substate.State) error {
	inst, r, err := c.lookup(pass, h, r)
	if err != nil {
		return err
	}
	entries, err := inst.State.GetSubResourceState(r)
	if err != nil {
		return fmt.Errorf("pass '%s' %s: %w", pass.Name, c.resourceName(h), err)
	}

	logger := ctxlog.FromContext(ctx)
	for _, e := range entries {
		cur := e.State
		synced := false
		switch {
		case needsTransfer(cur, required, inst.Image):
			if err := c.acquire(pass, h, inst, e.Range, cur, required); err != nil {
				return err
			}
			synced = true
		case needsBarrier(cur, required, inst.Image):
			pass.Barriers = append(pass.Barriers, plan.Barrier{
				Handle:    h,
				Resource:  c.resourceName(h),
				Instance:  inst.Index,
				Range:     e.Range,
				Src:       cur,
				Dst:       required,
				Semaphore: plan.NoSemaphore,
			})
			synced = true
			logger.Debug("Compile: Barrier.", "resource", c.resourceName(h), "range", e.Range, "src", cur, "dst", required)
		}
		if err := inst.State.SetSubResourceState(e.Range, afterRequire(cur, required, synced)); err != nil {
			return err
		}
	}
	inst.LastQueue = pass.Queue
	return nil
}

// acquire consumes the released transfers covering rng and records the
// acquire half on pass.
func (c *Context) acquire(pass *plan.PassPlan, h resource.Handle, inst *resource.Instance, rng substate.Range, cur, req substate.State) error {
	need := substate.Volume(rng)
	var covered uint64
	type piece struct {
		t   *transfer
		rng substate.Range
	}
	var pieces []piece
	for _, t := range c.pending {
		if t.handle != h || t.instance != inst.Index || c.semaphores[t.sem].DstQueue != req.Queue {
			continue
		}
		if sub, ok := substate.Intersect(t.rng, rng); ok {
			pieces = append(pieces, piece{t, sub})
			covered += substate.Volume(sub)
		}
	}
	if covered != need {
		return fmt.Errorf("pass '%s': %w: %s %s moves from %s to %s without a release",
			pass.Name, ErrUnpairedQueueTransfer, c.resourceName(h), rng, cur.Queue, req.Queue)
	}

	for _, p := range pieces {
		src, dst := acquireHalf(cur, req)
		pass.Acquires = append(pass.Acquires, plan.Barrier{
			Handle:    h,
			Resource:  c.resourceName(h),
			Instance:  inst.Index,
			Range:     p.rng,
			Src:       src,
			Dst:       dst,
			Semaphore: p.t.sem,
		})
		c.wait(pass, p.t.sem, req)
		p.t.remaining -= substate.Volume(p.rng)
	}
	c.prune()
	return nil
}

func (c *Context) wait(pass *plan.PassPlan, sem int, req substate.State) {
	s := &c.semaphores[sem]
	for i := range pass.Waits {
		if pass.Waits[i].Semaphore == sem {
			pass.Waits[i].Stage |= waitStage(req)
			s.WaitStage = pass.Waits[i].Stage
			return
		}
	}
	pass.Waits = append(pass.Waits, plan.Wait{Semaphore: sem, Stage: waitStage(req)})
	s.Waiter = pass.Name
	s.WaitStage = waitStage(req)
}

func (c *Context) prune() {
	kept := c.pending[:0]
	for _, t := range c.pending {
		if t.remaining > 0 {
			kept = append(kept, t)
		}
	}
	clear(c.pending[len(kept):])
	c.pending = kept
}

// MergeSubResourceStateAfterPass records the state pass leaves range r of h
// in. A nil range selects the whole resource.
func (c *Context) MergeSubResourceStateAfterPass(ctx context.Context, pass *plan.PassPlan, h resource.Handle, r substate.Range, produced substate.State) error {
	inst, r, err := c.lookup(pass, h, r)
	if err != nil {
		return err
	}
	if err := inst.State.SetSubResourceState(r, produced); err != nil {
		return fmt.Errorf("pass '%s' %s: %w", pass.Name, c.resourceName(h), err)
	}
	inst.LastQueue = pass.Queue
	return nil
}

// PresageSubResourceStateNextPass looks at every consumer connected to
// output out. Where a consumer runs on another queue, the release half of
// the transfer is recorded on pass now, and a semaphore is registered for the
// consumer's queue to wait on.
func (c *Context) PresageSubResourceStateNextPass(ctx context.Context, pass *plan.PassPlan, out int) error {
	o := &c.graph.Outputs[out]
	inst, _, err := c.lookup(pass, o.Handle, nil)
	if err != nil {
		return err
	}

	// released marks the sub-ranges already handed to a queue by this output.
	released := inst.State.Like(substate.State{})
	for _, idx := range o.Inputs {
		in := &c.graph.Inputs[idx]
		rng := in.Range
		if rng == nil {
			rng = inst.State.Full()
		}
		marks, err := released.GetSubResourceState(rng)
		if err != nil {
			return fmt.Errorf("pass '%s' %s: %w", pass.Name, c.resourceName(o.Handle), err)
		}
		for _, m := range marks {
			switch m.State.Queue {
			case in.Required.Queue:
				continue
			case gfx.QueueIgnored:
			default:
				return fmt.Errorf("pass '%s': %w: %s %s is read on both %s and %s",
					pass.Name, ErrConflictingQueueTransfer, c.resourceName(o.Handle), m.Range, m.State.Queue, in.Required.Queue)
			}
			if err := released.SetSubResourceState(m.Range, substate.State{Queue: in.Required.Queue}); err != nil {
				return err
			}
			if err := c.release(ctx, pass, o.Handle, inst, m.Range, in); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Context) release(ctx context.Context, pass *plan.PassPlan, h resource.Handle, inst *resource.Instance, rng substate.Range, in *node.In) error {
	entries, err := inst.State.GetSubResourceState(rng)
	if err != nil {
		return err
	}
	consumer := c.graph.Node(in.Node).Name
	for _, e := range entries {
		if !needsTransfer(e.State, in.Required, inst.Image) {
			continue
		}
		sem := len(c.semaphores)
		c.semaphores = append(c.semaphores, plan.Semaphore{
			ID:       sem,
			Handle:   h,
			Resource: c.resourceName(h),
			Range:    e.Range,
			SrcQueue: e.State.Queue,
			DstQueue: in.Required.Queue,
			Signaler: pass.Name,
			Waiter:   consumer,
		})
		c.pending = append(c.pending, &transfer{
			sem:       sem,
			handle:    h,
			instance:  inst.Index,
			rng:       e.Range,
			remaining: substate.Volume(e.Range),
		})

		src, dst := releaseHalf(e.State, in.Required)
		pass.Releases = append(pass.Releases, plan.Barrier{
			Handle:    h,
			Resource:  c.resourceName(h),
			Instance:  inst.Index,
			Range:     e.Range,
			Src:       src,
			Dst:       dst,
			Semaphore: sem,
		})
		pass.Signals = append(pass.Signals, sem)
		ctxlog.FromContext(ctx).Debug("Compile: Queue transfer released.",
			"resource", c.resourceName(h), "range", e.Range, "from", e.State.Queue, "to", in.Required.Queue, "semaphore", sem)
	}
	return nil
}

// Finish checks that every released transfer was acquired.
func (c *Context) Finish() error {
	var errs []error
	for _, t := range c.pending {
		s := c.semaphores[t.sem]
		errs = append(errs, fmt.Errorf("%w: %s %s released by '%s' is never acquired on %s",
			ErrUnpairedQueueTransfer, s.Resource, t.rng, s.Signaler, s.DstQueue))
	}
	return errors.Join(errs...)
}
