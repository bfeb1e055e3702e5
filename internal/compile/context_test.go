package compile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/device"
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/plan"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/substate"
	"github.com/vk/framegraph/internal/testutil"
)

var (
	colorWrite  = substate.State{Access: gfx.AccessColorWrite, Stage: gfx.StageColorOutput, Layout: gfx.LayoutColorAttachment, Queue: gfx.QueueGraphics}
	fragRead    = substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageFragmentShader, Layout: gfx.LayoutShaderRead, Queue: gfx.QueueGraphics}
	computeRead = substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageComputeShader, Layout: gfx.LayoutShaderRead, Queue: gfx.QueueCompute}
	copyRead    = substate.State{Access: gfx.AccessTransferRead, Stage: gfx.StageTransfer, Layout: gfx.LayoutTransferSrc, Queue: gfx.QueueTransfer}
)

func TestNeedsBarrier(t *testing.T) {
	bufWrite := substate.State{Access: gfx.AccessShaderWrite, Stage: gfx.StageComputeShader}
	bufRead := substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageComputeShader}
	tests := []struct {
		name     string
		cur, req substate.State
		image    bool
		want     bool
	}{
		{"fresh buffer", substate.State{}, bufWrite, false, false},
		{"fresh image needs layout", substate.State{}, colorWrite, true, true},
		{"read after write", bufWrite, bufRead, false, true},
		{"write after write", bufWrite, bufWrite, false, true},
		{"write after read", bufRead, bufWrite, false, true},
		{"covered read after read", bufRead, bufRead, false, false},
		{"read at a new stage", bufRead, substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageFragmentShader}, false, true},
		{"layout change on read", fragRead, substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageFragmentShader, Layout: gfx.LayoutGeneral}, true, true},
		{"layout ignored for buffers", bufRead, substate.State{Access: gfx.AccessShaderRead, Stage: gfx.StageComputeShader, Layout: gfx.LayoutGeneral}, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, needsBarrier(tc.cur, tc.req, tc.image))
		})
	}
}

func TestNeedsTransfer(t *testing.T) {
	assert.True(t, needsTransfer(colorWrite, computeRead, true))
	assert.False(t, needsTransfer(colorWrite, fragRead, true))
	assert.False(t, needsTransfer(substate.State{Queue: gfx.QueueIgnored}, computeRead, true))

	undefinedOnGraphics := colorWrite
	undefinedOnGraphics.Layout = gfx.LayoutUndefined
	assert.False(t, needsTransfer(undefinedOnGraphics, computeRead, true), "discarded contents need no transfer")
	assert.True(t, needsTransfer(undefinedOnGraphics, computeRead, false), "buffers always keep contents")
}

// env is a graph with one producer of an image and any number of consumers,
// with the image already assigned.
type env struct {
	ctx   context.Context
	table *resource.Table
	graph *node.Graph
	img   resource.ImageHandle
	c     *Context
}

func newEnv(t *testing.T, consumers ...node.PassDesc) *env {
	t.Helper()
	ctx, _ := testutil.Context(t)
	e := &env{ctx: ctx, table: resource.NewTable(), graph: node.NewGraph()}
	e.img = e.table.PromiseImage(resource.ImageDesc{Name: "hdr", Width: 4, Height: 4, MipLevels: 2})

	_, err := e.graph.AddPass(node.PassDesc{
		Name:  "draw",
		Slots: []node.Slot{{Name: "color", Kind: node.Output, State: colorWrite}},
	}, node.Bindings{"color": {Handle: e.img}}, e.table)
	require.NoError(t, err)
	for _, desc := range consumers {
		bindings := node.Bindings{}
		for _, s := range desc.Slots {
			bindings[s.Name] = node.Binding{From: "draw.color"}
		}
		_, err := e.graph.AddPass(desc, bindings, e.table)
		require.NoError(t, err)
	}

	_, _, err = e.table.Assign(ctx, e.img, gfx.QueueGraphics, 0, device.NewMemory())
	require.NoError(t, err)
	e.c = New(e.graph, e.table)
	return e
}

func (e *env) pass(id node.ID) *plan.PassPlan {
	n := e.graph.Node(id)
	return &plan.PassPlan{Node: n.ID, Name: n.Name, Queue: n.Queue}
}

// runProducer performs the before, after and look-ahead steps of "draw".
func (e *env) runProducer(t *testing.T) *plan.PassPlan {
	t.Helper()
	pp := e.pass(0)
	require.NoError(t, e.c.RequireSubResourceStateBeforePass(e.ctx, pp, e.img, nil, colorWrite))
	require.NoError(t, e.c.MergeSubResourceStateAfterPass(e.ctx, pp, e.img, nil, colorWrite))
	require.NoError(t, e.c.PresageSubResourceStateNextPass(e.ctx, pp, 0))
	return pp
}

func (e *env) runConsumer(t *testing.T, id node.ID) (*plan.PassPlan, error) {
	t.Helper()
	pp := e.pass(id)
	for _, idx := range e.graph.Node(id).Inputs {
		in := e.graph.Inputs[idx]
		if err := e.c.RequireSubResourceStateBeforePass(e.ctx, pp, in.Handle, in.Range, in.Required); err != nil {
			return pp, err
		}
	}
	return pp, nil
}

func TestRequire_UnassignedHandle(t *testing.T) {
	ctx, _ := testutil.Context(t)
	tbl := resource.NewTable()
	h := tbl.PromiseBuffer(resource.BufferDesc{Name: "lonely", Size: 4})
	c := New(node.NewGraph(), tbl)

	err := c.RequireSubResourceStateBeforePass(ctx, &plan.PassPlan{Name: "p"}, h, nil, substate.State{})
	require.ErrorIs(t, err, ErrUnassignedHandle)
	assert.ErrorContains(t, err, "lonely")
	assert.ErrorIs(t, c.MergeSubResourceStateAfterPass(ctx, &plan.PassPlan{Name: "p"}, h, nil, substate.State{}), ErrUnassignedHandle)
}

func TestRequire_SameQueueBarriers(t *testing.T) {
	e := newEnv(t,
		node.PassDesc{Name: "post", Slots: []node.Slot{{Name: "in", Kind: node.Input, State: fragRead}}},
		node.PassDesc{Name: "ui", Slots: []node.Slot{{Name: "in", Kind: node.Input, State: fragRead}}},
	)

	producer := e.runProducer(t)
	require.Len(t, producer.Barriers, 1, "undefined to color attachment")
	assert.Equal(t, gfx.LayoutUndefined, producer.Barriers[0].Src.Layout)
	assert.Empty(t, producer.Releases)

	post, err := e.runConsumer(t, 1)
	require.NoError(t, err)
	require.Len(t, post.Barriers, 1)
	assert.Equal(t, colorWrite, post.Barriers[0].Src)
	assert.Equal(t, fragRead, post.Barriers[0].Dst)
	assert.Equal(t, plan.NoSemaphore, post.Barriers[0].Semaphore)

	ui, err := e.runConsumer(t, 2)
	require.NoError(t, err)
	assert.Empty(t, ui.Barriers, "second identical read needs no barrier")
	require.NoError(t, e.c.Finish())
}

func TestQueueTransfer_Paired(t *testing.T) {
	e := newEnv(t,
		node.PassDesc{Name: "blur", Queue: gfx.QueueCompute, Slots: []node.Slot{{Name: "in", Kind: node.Input, State: computeRead}}},
	)

	producer := e.runProducer(t)
	require.Len(t, producer.Releases, 1)
	require.Equal(t, []int{0}, producer.Signals)
	rel := producer.Releases[0]
	assert.Equal(t, gfx.QueueGraphics, rel.Src.Queue)
	assert.Equal(t, gfx.QueueCompute, rel.Dst.Queue)
	assert.Equal(t, gfx.AccessColorWrite, rel.Src.Access)
	assert.Equal(t, gfx.AccessNone, rel.Dst.Access)

	blur, err := e.runConsumer(t, 1)
	require.NoError(t, err)
	require.Len(t, blur.Acquires, 1)
	acq := blur.Acquires[0]
	assert.Equal(t, rel.Semaphore, acq.Semaphore)
	assert.Equal(t, rel.Range, acq.Range)
	assert.Equal(t, rel.Src.Layout, acq.Src.Layout)
	assert.Equal(t, rel.Dst.Layout, acq.Dst.Layout)
	assert.Equal(t, computeRead, acq.Dst)
	assert.Empty(t, blur.Barriers)
	assert.Equal(t, []plan.Wait{{Semaphore: 0, Stage: gfx.StageComputeShader}}, blur.Waits)

	sems := e.c.Semaphores()
	require.Len(t, sems, 1)
	assert.Equal(t, "draw", sems[0].Signaler)
	assert.Equal(t, "blur", sems[0].Waiter)
	require.NoError(t, e.c.Finish())
}

func TestQueueTransfer_SubRange(t *testing.T) {
	mip1 := substate.ImageRange{BaseMip: 1, MipCount: 1, LayerCount: 1}
	e := newEnv(t,
		node.PassDesc{Name: "blur", Queue: gfx.QueueCompute, Slots: []node.Slot{{Name: "in", Kind: node.Input, State: computeRead, Range: mip1}}},
	)

	producer := e.runProducer(t)
	require.Len(t, producer.Releases, 1)
	assert.Equal(t, substate.Range(mip1), producer.Releases[0].Range)

	_, err := e.runConsumer(t, 1)
	require.NoError(t, err)
	require.NoError(t, e.c.Finish())
}

func TestQueueTransfer_ReleaseNeverAcquired(t *testing.T) {
	e := newEnv(t,
		node.PassDesc{Name: "blur", Queue: gfx.QueueCompute, Slots: []node.Slot{{Name: "in", Kind: node.Input, State: computeRead}}},
	)
	e.runProducer(t)

	err := e.c.Finish()
	require.ErrorIs(t, err, ErrUnpairedQueueTransfer)
	assert.ErrorContains(t, err, "never acquired on compute")
}

func TestQueueTransfer_AcquireWithoutRelease(t *testing.T) {
	e := newEnv(t,
		node.PassDesc{Name: "blur", Queue: gfx.QueueCompute, Slots: []node.Slot{{Name: "in", Kind: node.Input, State: computeRead}}},
	)
	pp := e.pass(0)
	require.NoError(t, e.c.RequireSubResourceStateBeforePass(e.ctx, pp, e.img, nil, colorWrite))
	require.NoError(t, e.c.MergeSubResourceStateAfterPass(e.ctx, pp, e.img, nil, colorWrite))

	_, err := e.runConsumer(t, 1)
	require.ErrorIs(t, err, ErrUnpairedQueueTransfer)
	assert.ErrorContains(t, err, "from graphics to compute")
}

func TestQueueTransfer_ConflictingConsumers(t *testing.T) {
	e := newEnv(t,
		node.PassDesc{Name: "blur", Queue: gfx.QueueCompute, Slots: []node.Slot{{Name: "in", Kind: node.Input, State: computeRead}}},
		node.PassDesc{Name: "readback", Queue: gfx.QueueTransfer, Slots: []node.Slot{{Name: "in", Kind: node.Input, State: copyRead}}},
	)
	pp := e.pass(0)
	require.NoError(t, e.c.RequireSubResourceStateBeforePass(e.ctx, pp, e.img, nil, colorWrite))
	require.NoError(t, e.c.MergeSubResourceStateAfterPass(e.ctx, pp, e.img, nil, colorWrite))

	err := e.c.PresageSubResourceStateNextPass(e.ctx, pp, 0)
	require.ErrorIs(t, err, ErrConflictingQueueTransfer)
}

func TestQueueTransfer_SameQueueFanOutReleasesOnce(t *testing.T) {
	e := newEnv(t,
		node.PassDesc{Name: "blur", Queue: gfx.QueueCompute, Slots: []node.Slot{{Name: "in", Kind: node.Input, State: computeRead}}},
		node.PassDesc{Name: "bloom", Queue: gfx.QueueCompute, Slots: []node.Slot{{Name: "in", Kind: node.Input, State: computeRead}}},
	)
	producer := e.runProducer(t)
	require.Len(t, producer.Releases, 1)

	blur, err := e.runConsumer(t, 1)
	require.NoError(t, err)
	assert.Len(t, blur.Acquires, 1)
	bloom, err := e.runConsumer(t, 2)
	require.NoError(t, err)
	assert.Empty(t, bloom.Acquires)
	assert.Empty(t, bloom.Barriers)
	require.NoError(t, e.c.Finish())
}
