// This file translates the decoded HCL blocks into the format-agnostic
// config model.

package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/framegraph/internal/config"
	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/fghcl"
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/substate"
)

// outputRef is what a later input learns about the output it reads.
type outputRef struct {
	resource string
	image    bool
}

func (l *Loader) translateImage(ctx context.Context, m *config.Model, b *imageBlock) error {
	if _, dup := m.Image(b.Name); dup {
		return fmt.Errorf("image %q is declared more than once", b.Name)
	}
	img := &config.Image{
		Name:        b.Name,
		Format:      gfx.Format(b.Format),
		Width:       b.Width,
		Height:      b.Height,
		Depth:       b.Depth,
		MipLevels:   b.MipLevels,
		ArrayLayers: b.ArrayLayers,
		Dedicated:   b.Dedicated,
		Imported:    b.Imported,
	}
	initial, err := l.translateInitial(ctx, "image", b.Name, b.Imported, b.Initial)
	if err != nil {
		return err
	}
	img.Initial = initial
	m.Images = append(m.Images, img)
	return nil
}

func (l *Loader) translateBuffer(ctx context.Context, m *config.Model, b *bufferBlock) error {
	if _, dup := m.Buffer(b.Name); dup {
		return fmt.Errorf("buffer %q is declared more than once", b.Name)
	}
	if _, clash := m.Image(b.Name); clash {
		return fmt.Errorf("buffer %q has the same name as an image", b.Name)
	}
	initial, err := l.translateInitial(ctx, "buffer", b.Name, b.Imported, b.Initial)
	if err != nil {
		return err
	}
	m.Buffers = append(m.Buffers, &config.Buffer{
		Name:      b.Name,
		Size:      b.Size,
		Dedicated: b.Dedicated,
		Imported:  b.Imported,
		Initial:   initial,
	})
	return nil
}

func (l *Loader) translateInitial(ctx context.Context, kind, name string, imported bool, b *stateBlock) (substate.State, error) {
	if b == nil {
		return substate.State{}, nil
	}
	if !imported {
		return substate.State{}, fmt.Errorf("%s %q: only imported resources have an initial state", kind, name)
	}
	s, diags := l.evalState(ctx, b.exprs(ctx))
	if diags.HasErrors() {
		return substate.State{}, fmt.Errorf("%s %q: %w", kind, name, diags)
	}
	return s, nil
}

// stateExprs are the expressions of one state; nil means omitted.
type stateExprs struct {
	access, stage, layout, queue hcl.Expression
}

func (b *stateBlock) exprs(ctx context.Context) stateExprs {
	pick := func(e hcl.Expression, name string) hcl.Expression {
		if isExprDefined(ctx, e, name) {
			return e
		}
		return nil
	}
	return stateExprs{
		access: pick(b.Access, "access"),
		stage:  pick(b.Stage, "stage"),
		layout: pick(b.Layout, "layout"),
		queue:  pick(b.Queue, "queue"),
	}
}

func attrExprs(attrs hcl.Attributes) stateExprs {
	get := func(name string) hcl.Expression {
		if a, ok := attrs[name]; ok {
			return a.Expr
		}
		return nil
	}
	return stateExprs{access: get("access"), stage: get("stage"), layout: get("layout"), queue: get("queue")}
}

func (l *Loader) evalState(ctx context.Context, e stateExprs) (substate.State, hcl.Diagnostics) {
	var s substate.State
	var diags hcl.Diagnostics

	if e.access != nil {
		names, d := fghcl.StringList(e.access, l.evalCtx)
		diags = append(diags, d...)
		for _, n := range names {
			a, err := gfx.ParseAccess(n)
			if err != nil {
				diags = append(diags, diagError(e.access, "Unknown access", err)...)
			}
			s.Access |= a
		}
	}
	if e.stage != nil {
		names, d := fghcl.StringList(e.stage, l.evalCtx)
		diags = append(diags, d...)
		for _, n := range names {
			st, err := gfx.ParseStage(n)
			if err != nil {
				diags = append(diags, diagError(e.stage, "Unknown stage", err)...)
			}
			s.Stage |= st
		}
	}
	if e.layout != nil {
		name, d := fghcl.String(e.layout, l.evalCtx)
		diags = append(diags, d...)
		if !d.HasErrors() {
			layout, err := gfx.ParseLayout(name)
			if err != nil {
				diags = append(diags, diagError(e.layout, "Unknown layout", err)...)
			}
			s.Layout = layout
		}
	}
	if e.queue != nil {
		q, d := l.evalQueue(e.queue)
		diags = append(diags, d...)
		s.Queue = q
	}
	ctxlog.FromContext(ctx).Debug("Evaluated state.", "state", s)
	return s, diags
}

func (l *Loader) evalQueue(expr hcl.Expression) (gfx.QueueClass, hcl.Diagnostics) {
	name, diags := fghcl.String(expr, l.evalCtx)
	if diags.HasErrors() {
		return gfx.QueueIgnored, diags
	}
	q, err := gfx.ParseQueue(name)
	if err != nil {
		return gfx.QueueIgnored, diagError(expr, "Unknown queue class", err)
	}
	return q, nil
}

func (l *Loader) translatePass(ctx context.Context, m *config.Model, b *passBlock, outputs map[string]outputRef) (*config.Pass, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx).With("pass", b.Name)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Translating HCL pass to internal config model.")

	pass := &config.Pass{Name: b.Name}
	var diags hcl.Diagnostics

	if isExprDefined(ctx, b.Queue, "queue") {
		q, d := l.evalQueue(b.Queue)
		diags = append(diags, d...)
		pass.Queue = q
	}
	if isExprDefined(ctx, b.DependsOn, "depends_on") {
		refs, d := fghcl.References(b.DependsOn, 1, "pass")
		diags = append(diags, d...)
		for _, r := range refs {
			pass.DependsOn = append(pass.DependsOn, r[0])
		}
	}

	content, d := b.Body.Content(passBodySchema)
	diags = append(diags, d...)
	if d.HasErrors() {
		return nil, diags
	}
	for _, block := range content.Blocks {
		slot, d := l.translateSlot(ctx, m, b.Name, block, outputs)
		diags = append(diags, d...)
		if slot != nil {
			pass.Slots = append(pass.Slots, slot)
		}
	}
	return pass, diags
}

func (l *Loader) translateSlot(ctx context.Context, m *config.Model, passName string, block *hcl.Block, outputs map[string]outputRef) (*config.Slot, hcl.Diagnostics) {
	kind, err := node.ParseSlotKind(block.Type)
	if err != nil {
		panic(fmt.Sprintf("hcl_adapter: schema admitted unknown slot kind %q", block.Type))
	}
	slot := &config.Slot{Name: block.Labels[0], Kind: kind}
	where := fmt.Sprintf("%s %q", block.Type, slot.Name)

	content, diags := block.Body.Content(slotBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}

	ref := outputRef{}
	if attr, ok := content.Attributes["resource"]; ok {
		root, names, d := fghcl.Reference(attr.Expr, 1, "image", "buffer")
		diags = append(diags, d...)
		if !d.HasErrors() {
			slot.Resource, slot.Image = names[0], root == "image"
			ref = outputRef{resource: slot.Resource, image: slot.Image}
			diags = append(diags, checkDeclared(m, attr.Expr, slot.Resource, slot.Image)...)
		}
	}
	if attr, ok := content.Attributes["from"]; ok {
		from, d := readFrom(attr.Expr, l.evalCtx)
		diags = append(diags, d...)
		slot.From = from
		if src, known := outputs[from]; known && slot.Resource == "" {
			slot.Image = src.image
			ref = src
		}
	}
	if attr, ok := content.Attributes["as"]; ok {
		as, d := fghcl.String(attr.Expr, l.evalCtx)
		diags = append(diags, d...)
		slot.As = as
	}

	s, d := l.evalState(ctx, attrExprs(content.Attributes))
	diags = append(diags, d...)
	slot.State = s

	final, d := fghcl.FindUniqueBlock(content.Blocks, "final", where)
	diags = append(diags, d...)
	if final != nil {
		var sb stateBlock
		d := gohcl.DecodeBody(final.Body, l.evalCtx, &sb)
		diags = append(diags, d...)
		if !d.HasErrors() {
			fs, d := l.evalState(ctx, sb.exprs(ctx))
			diags = append(diags, d...)
			slot.FinalState = fs
		}
	}

	rng, d := fghcl.FindUniqueBlock(content.Blocks, "range", where)
	diags = append(diags, d...)
	if rng != nil {
		if ref.resource == "" {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unresolved range",
				Detail:   fmt.Sprintf("The resource of %s is unknown, so its range cannot be checked.", where),
				Subject:  rng.DefRange.Ptr(),
			})
		} else {
			r, d := l.translateRange(m, rng, ref)
			diags = append(diags, d...)
			slot.Range = r
		}
	}

	if (kind == node.Output || kind == node.InOut) && ref.resource != "" {
		name := slot.As
		if name == "" {
			name = passName + "." + slot.Name
		}
		outputs[name] = ref
	}
	return slot, diags
}

// readFrom accepts either a reference such as pass.draw.color or a string
// naming an output registered with `as`.
func readFrom(expr hcl.Expression, evalCtx *hcl.EvalContext) (string, hcl.Diagnostics) {
	if _, d := hcl.AbsTraversalForExpr(expr); !d.HasErrors() {
		_, names, diags := fghcl.Reference(expr, 2, "pass")
		if diags.HasErrors() {
			return "", diags
		}
		return names[0] + "." + names[1], nil
	}
	return fghcl.String(expr, evalCtx)
}

func checkDeclared(m *config.Model, expr hcl.Expression, name string, image bool) hcl.Diagnostics {
	var ok bool
	kind := "buffer"
	if image {
		kind = "image"
		_, ok = m.Image(name)
	} else {
		_, ok = m.Buffer(name)
	}
	if ok {
		return nil
	}
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  "Unknown resource",
		Detail:   fmt.Sprintf("No %s named %q is declared.", kind, name),
		Subject:  expr.Range().Ptr(),
	}}
}

// translateRange fills omitted counts with the rest of the resource.
func (l *Loader) translateRange(m *config.Model, block *hcl.Block, ref outputRef) (substate.Range, hcl.Diagnostics) {
	var rb rangeBlock
	if diags := gohcl.DecodeBody(block.Body, l.evalCtx, &rb); diags.HasErrors() {
		return nil, diags
	}

	if !ref.image {
		buf, _ := m.Buffer(ref.resource)
		r := substate.BufferRange{Offset: rb.Offset, Size: rb.Size}
		if r.Size == 0 && buf != nil && buf.Size > r.Offset {
			r.Size = buf.Size - r.Offset
		}
		return r, nil
	}

	img, _ := m.Image(ref.resource)
	mips, layers := uint32(1), uint32(1)
	if img != nil {
		mips, layers = max(img.MipLevels, 1), max(img.ArrayLayers, 1)
	}
	r := substate.ImageRange{BaseMip: rb.BaseMip, MipCount: rb.MipCount, BaseLayer: rb.BaseLayer, LayerCount: rb.LayerCount}
	if r.MipCount == 0 && mips > r.BaseMip {
		r.MipCount = mips - r.BaseMip
	}
	if r.LayerCount == 0 && layers > r.BaseLayer {
		r.LayerCount = layers - r.BaseLayer
	}
	return r, nil
}
