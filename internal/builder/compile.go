package builder

import (
	"context"
	"fmt"

	"github.com/vk/framegraph/internal/compile"
	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/dag"
	"github.com/vk/framegraph/internal/device"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/plan"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/scheduler"
)

// Compile schedules the declared passes, binds every handle to a physical
// instance created through factory and synthesizes the synchronization
// between passes. Instances of a previous compile are destroyed first.
func (b *Builder) Compile(ctx context.Context, factory device.Factory) (*plan.Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting frame graph compilation.", "passes", b.graph.Len())

	// First pass: drop the results of the previous compile.
	previous := b.factory
	if previous == nil {
		previous = factory
	}
	if err := b.table.Reset(ctx, previous); err != nil {
		return nil, fmt.Errorf("error releasing previous instances: %w", err)
	}
	b.factory = factory

	// Second pass: link dependencies and validate the topology.
	deps, err := b.link(ctx)
	if err != nil {
		return nil, err
	}
	if err := deps.DetectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Cycle detection passed.")

	// Third pass: schedule.
	waves, err := scheduler.Waves(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("error scheduling passes: %w", err)
	}
	logger.Debug("Build: Scheduling complete.", "wave_count", len(waves))

	// Fourth pass: compile every wave.
	c := &compilation{
		b:       b,
		factory: factory,
		sync:    compile.New(b.graph, b.table),
		lastUse: b.lifetimes(waves),
		reused:  make(map[resource.Handle]bool),
	}
	p := &plan.Plan{}
	for w, ids := range waves {
		wave, err := c.wave(ctx, w, ids)
		if err != nil {
			return nil, err
		}
		p.Waves = append(p.Waves, wave)
	}
	if err := c.sync.Finish(); err != nil {
		return nil, fmt.Errorf("error pairing queue transfers: %w", err)
	}

	// Final pass: assemble the plan.
	c.assemble(p)
	summary := p.Summary()
	logger.Info("Build: Frame graph compiled.",
		"passes", summary.Passes,
		"waves", summary.Waves,
		"instances", summary.Instances,
		"barriers", summary.Barriers,
		"semaphores", summary.Semaphores)
	return p, nil
}

// link builds the dependency graph from connected inputs and explicit
// dependencies.
func (b *Builder) link(ctx context.Context) (*dag.Graph[node.ID], error) {
	logger := ctxlog.FromContext(ctx)
	deps := dag.New[node.ID]()
	for i := range b.graph.Nodes {
		deps.AddNode(b.graph.Nodes[i].ID)
	}
	logger.Debug("Build: Node creation complete.", "node_count", b.graph.Len())

	for i := range b.graph.Nodes {
		id := b.graph.Nodes[i].ID
		for _, producer := range b.graph.Producers(id) {
			if err := deps.AddEdge(producer, id); err != nil {
				return nil, fmt.Errorf("failed to link pass '%s': %w", b.graph.Nodes[i].Name, err)
			}
		}
	}
	for _, d := range b.deps {
		if err := deps.AddEdge(d[0], d[1]); err != nil {
			return nil, fmt.Errorf("failed to link pass '%s': %w", b.graph.Node(d[1]).Name, err)
		}
		logger.Debug("Build: Linked explicit dependency.", "before", b.graph.Node(d[0]).Name, "after", b.graph.Node(d[1]).Name)
	}
	logger.Debug("Build: Node linking complete.")
	return deps, nil
}

// lifetimes returns the last wave in which each handle is used.
func (b *Builder) lifetimes(waves [][]node.ID) map[resource.Handle]int {
	last := make(map[resource.Handle]int)
	for w, ids := range waves {
		for _, id := range ids {
			for _, h := range b.handles(id) {
				last[h] = w
			}
		}
	}
	return last
}

// handles returns the handle of every attachment of a node in attachment
// order. A handle used by several attachments appears several times.
func (b *Builder) handles(id node.ID) []resource.Handle {
	g := b.graph
	var hs []resource.Handle
	for _, a := range g.Node(id).Attachments {
		hs = append(hs, b.attachment(a).handle)
	}
	return hs
}

type attached struct {
	slot   string
	handle resource.Handle
	birth  bool
}

func (b *Builder) attachment(a node.Attachment) attached {
	g := b.graph
	switch a.Kind {
	case node.Input:
		in := g.Inputs[a.Index]
		return attached{slot: in.Slot, handle: in.Handle}
	case node.Output:
		out := g.Outputs[a.Index]
		return attached{slot: out.Slot, handle: out.Handle, birth: out.Birth}
	case node.Transient:
		t := g.Transients[a.Index]
		return attached{slot: t.Slot, handle: t.Handle, birth: true}
	default:
		panic(fmt.Sprintf("builder: unknown attachment kind %s", a.Kind))
	}
}

// compilation is the state of one Compile call.
type compilation struct {
	b       *Builder
	factory device.Factory
	sync    *compile.Context
	lastUse map[resource.Handle]int

	reused   map[resource.Handle]bool
	assigned []resource.Handle
}

func (c *compilation) wave(ctx context.Context, w int, ids []node.ID) (plan.Wave, error) {
	ctx = ctxlog.With(ctx, "wave", w)
	logger := ctxlog.FromContext(ctx)
	g := c.b.graph

	if err := c.assign(ctx, w, ids); err != nil {
		return plan.Wave{}, err
	}
	if err := c.hold(ids, node.Transient, 1); err != nil {
		return plan.Wave{}, err
	}

	wave := plan.Wave{Index: w}
	for _, id := range ids {
		n := g.Node(id)
		pass := plan.PassPlan{
			Node:    n.ID,
			Name:    n.Name,
			Queue:   n.Queue,
			Objects: make(map[string]int),
			Execute: n.Execute,
		}
		if err := c.pass(ctx, n, &pass); err != nil {
			return plan.Wave{}, err
		}
		wave.Passes = append(wave.Passes, pass)
		logger.Debug("Compile: Pass synchronized.",
			"pass", n.Name,
			"queue", n.Queue,
			"barriers", len(pass.Barriers),
			"acquires", len(pass.Acquires),
			"releases", len(pass.Releases))
	}

	if err := c.settle(w, ids); err != nil {
		return plan.Wave{}, err
	}
	return wave, nil
}

// assign binds every handle born in this wave to an instance. Imported
// handles are bound at their first use.
func (c *compilation) assign(ctx context.Context, w int, ids []node.ID) error {
	logger := ctxlog.FromContext(ctx)
	for _, id := range ids {
		n := c.b.graph.Node(id)
		for _, a := range n.Attachments {
			at := c.b.attachment(a)
			if _, ok := c.b.table.Instance(at.handle); ok {
				continue
			}
			info, err := c.b.table.Info(at.handle)
			if err != nil {
				return fmt.Errorf("pass '%s' slot '%s': %w", n.Name, at.slot, err)
			}
			if !at.birth && !info.External {
				// Reported by the synchronization step.
				continue
			}
			inst, reused, err := c.b.table.Assign(ctx, at.handle, n.Queue, w, c.factory)
			if err != nil {
				return fmt.Errorf("pass '%s' slot '%s': %w", n.Name, at.slot, err)
			}
			c.reused[at.handle] = reused
			c.assigned = append(c.assigned, at.handle)
			logger.Debug("Compile: Assigned instance.", "resource", info.Name, "handle", at.handle, "instance", inst.Index, "reused", reused)
		}
	}
	return nil
}

// hold adds n holds for every attachment of the given kind.
func (c *compilation) hold(ids []node.ID, kind node.SlotKind, n int) error {
	for _, id := range ids {
		for _, a := range c.b.graph.Node(id).Attachments {
			if a.Kind != kind {
				continue
			}
			inst, ok := c.b.table.Instance(c.b.attachment(a).handle)
			if !ok {
				return fmt.Errorf("%w: %s", compile.ErrUnassignedHandle, c.b.attachment(a).handle)
			}
			inst.Hold(n)
		}
	}
	return nil
}

// pass synchronizes every attachment of n. Required states are brought in
// first, then produced states are merged, then outputs look ahead at their
// consumers.
func (c *compilation) pass(ctx context.Context, n *node.Node, pass *plan.PassPlan) error {
	g := c.b.graph
	for _, a := range n.Attachments {
		var err error
		switch a.Kind {
		case node.Input:
			in := g.Inputs[a.Index]
			err = c.sync.RequireSubResourceStateBeforePass(ctx, pass, in.Handle, in.Range, in.Required)
		case node.Output:
			if out := g.Outputs[a.Index]; out.Birth {
				err = c.sync.RequireSubResourceStateBeforePass(ctx, pass, out.Handle, out.Range, out.Produced)
			}
		case node.Transient:
			t := g.Transients[a.Index]
			err = c.sync.RequireSubResourceStateBeforePass(ctx, pass, t.Handle, t.Range, t.Initial)
		}
		if err != nil {
			return err
		}

		at := c.b.attachment(a)
		inst, ok := c.b.table.Instance(at.handle)
		if !ok {
			return fmt.Errorf("pass '%s': %w: %s", n.Name, compile.ErrUnassignedHandle, at.handle)
		}
		pass.Objects[at.slot] = inst.Index
	}

	for _, a := range n.Attachments {
		var err error
		switch a.Kind {
		case node.Output:
			out := g.Outputs[a.Index]
			err = c.sync.MergeSubResourceStateAfterPass(ctx, pass, out.Handle, out.Range, out.Produced)
		case node.Transient:
			t := g.Transients[a.Index]
			err = c.sync.MergeSubResourceStateAfterPass(ctx, pass, t.Handle, t.Range, t.Final)
		}
		if err != nil {
			return err
		}
	}

	for _, out := range n.Outputs {
		if err := c.sync.PresageSubResourceStateNextPass(ctx, pass, out); err != nil {
			return err
		}
	}
	return nil
}

// settle updates reference counts at the end of wave w. Outputs are held once
// per consumer, consumed inputs and transients drop their holds, and handles
// whose last use was in this wave are retired.
func (c *compilation) settle(w int, ids []node.ID) error {
	g := c.b.graph
	for _, id := range ids {
		for _, out := range g.Node(id).Outputs {
			o := g.Outputs[out]
			inst, ok := c.b.table.Instance(o.Handle)
			if !ok {
				return fmt.Errorf("%w: %s", compile.ErrUnassignedHandle, o.Handle)
			}
			inst.Hold(len(o.Inputs))
		}
	}
	for _, id := range ids {
		for _, idx := range g.Node(id).Inputs {
			in := g.Inputs[idx]
			if !in.Seeded() {
				if err := c.release(in.Handle); err != nil {
					return fmt.Errorf("pass '%s' slot '%s': %w", g.Node(id).Name, in.Slot, err)
				}
			}
		}
		for _, idx := range g.Node(id).Transients {
			t := g.Transients[idx]
			if err := c.release(t.Handle); err != nil {
				return fmt.Errorf("pass '%s' slot '%s': %w", g.Node(id).Name, t.Slot, err)
			}
		}
	}

	for _, h := range c.assigned {
		if c.lastUse[h] != w {
			continue
		}
		if err := c.b.table.Retire(h, w); err != nil {
			return err
		}
	}
	return nil
}

func (c *compilation) release(h resource.Handle) error {
	inst, ok := c.b.table.Instance(h)
	if !ok {
		return fmt.Errorf("%w: %s", compile.ErrUnassignedHandle, h)
	}
	return inst.Release()
}

func (c *compilation) assemble(p *plan.Plan) {
	p.Semaphores = append([]plan.Semaphore(nil), c.sync.Semaphores()...)

	for _, inst := range c.b.table.Instances() {
		pi := plan.Instance{
			Index:    inst.Index,
			Image:    inst.Image,
			External: inst.External,
			Object:   inst.Object,
			Leases:   append([]resource.Lease(nil), inst.Leases...),
		}
		for _, l := range inst.Leases {
			pi.Handles = append(pi.Handles, c.name(l.Handle))
		}
		p.Instances = append(p.Instances, pi)
	}

	for _, h := range c.assigned {
		inst, _ := c.b.table.Instance(h)
		a := plan.Assignment{
			Handle:   h,
			Resource: c.name(h),
			Instance: inst.Index,
			Reused:   c.reused[h],
		}
		for _, l := range inst.Leases {
			if l.Handle == h {
				a.FirstWave, a.LastWave = l.First, l.Last
			}
		}
		p.Assignments = append(p.Assignments, a)
	}
}

func (c *compilation) name(h resource.Handle) string {
	if info, err := c.b.table.Info(h); err == nil && info.Name != "" {
		return info.Name
	}
	return h.String()
}
