package resource

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/substate"
)

// fakeAllocator hands out sequential object names and remembers destroyed ones.
type fakeAllocator struct {
	created   []string
	destroyed []any
	failNext  bool
}

func (f *fakeAllocator) CreateImage(_ context.Context, desc ImageDesc) (any, error) {
	if f.failNext {
		f.failNext = false
		return nil, errors.New("out of memory")
	}
	obj := fmt.Sprintf("img%d:%dx%d", len(f.created), desc.Width, desc.Height)
	f.created = append(f.created, obj)
	return obj, nil
}

func (f *fakeAllocator) CreateBuffer(_ context.Context, desc BufferDesc) (any, error) {
	obj := fmt.Sprintf("buf%d:%d", len(f.created), desc.Size)
	f.created = append(f.created, obj)
	return obj, nil
}

func (f *fakeAllocator) Destroy(_ context.Context, object any) error {
	f.destroyed = append(f.destroyed, object)
	return nil
}

func TestHandles_AreUniqueAcrossKinds(t *testing.T) {
	tbl := NewTable()
	a := tbl.PromiseImage(ImageDesc{Name: "a", Width: 4, Height: 4})
	b := tbl.PromiseBuffer(BufferDesc{Name: "b", Size: 16})
	c := tbl.ImportImage(ImageDesc{Name: "c"}, "swapchain", substate.State{})

	assert.Equal(t, []uint32{1, 2, 3}, []uint32{a.ID(), b.ID(), c.ID()})
	assert.True(t, IsImage(a))
	assert.False(t, IsImage(b))

	_, err := tbl.Info(BufferHandle(1))
	assert.ErrorIs(t, err, ErrUnknownHandle)
	_, err = tbl.Info(ImageHandle(9))
	assert.ErrorIs(t, err, ErrUnknownHandle)

	info, err := tbl.Info(c)
	require.NoError(t, err)
	assert.True(t, info.External)
	assert.Equal(t, uint32(1), info.Image.MipLevels)
}

func TestPools_ShareIdenticalDescriptors(t *testing.T) {
	tbl := NewTable()
	a := tbl.PromiseImage(ImageDesc{Name: "a", Format: gfx.FormatRGBA8, Width: 8, Height: 8})
	b := tbl.PromiseImage(ImageDesc{Name: "b", Format: gfx.FormatRGBA8, Width: 8, Height: 8})
	c := tbl.PromiseImage(ImageDesc{Name: "c", Format: gfx.FormatRGBA16F, Width: 8, Height: 8})
	d := tbl.PromiseImage(ImageDesc{Name: "d", Format: gfx.FormatRGBA8, Width: 8, Height: 8, Dedicated: true})

	bp := func(h Handle) int {
		info, err := tbl.Info(h)
		require.NoError(t, err)
		return info.Blueprint
	}
	assert.Equal(t, bp(a), bp(b))
	assert.NotEqual(t, bp(a), bp(c))
	assert.NotEqual(t, bp(a), bp(d))
}

func TestAssign_ReusesFreeInstance(t *testing.T) {
	ctx := context.Background()
	alloc := &fakeAllocator{}
	tbl := NewTable()
	a := tbl.PromiseBuffer(BufferDesc{Name: "a", Size: 64})
	b := tbl.PromiseBuffer(BufferDesc{Name: "b", Size: 64})

	ia, reused, err := tbl.Assign(ctx, a, gfx.QueueGraphics, 0, alloc)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, 1, ia.RefCount())

	// a is still live, so b needs a new instance.
	ib, reused, err := tbl.Assign(ctx, b, gfx.QueueGraphics, 0, alloc)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotEqual(t, ia.Index, ib.Index)

	_, _, err = tbl.Assign(ctx, a, gfx.QueueGraphics, 1, alloc)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	require.NoError(t, tbl.Retire(a, 0))
	assert.Equal(t, 0, ia.RefCount())
	assert.True(t, ia.Free())

	c := tbl.PromiseBuffer(BufferDesc{Name: "c", Size: 64})
	ic, reused, err := tbl.Assign(ctx, c, gfx.QueueGraphics, 1, alloc)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Same(t, ia, ic)
	assert.Equal(t, []Lease{{Handle: a, First: 0, Last: 0}, {Handle: c, First: 1, Last: -1}}, ic.Leases)
	assert.Len(t, alloc.created, 2)
}

func TestAssign_SkipsIncompatibleQueue(t *testing.T) {
	ctx := context.Background()
	alloc := &fakeAllocator{}
	tbl := NewTable()
	a := tbl.PromiseBuffer(BufferDesc{Size: 64})
	b := tbl.PromiseBuffer(BufferDesc{Size: 64})

	ia, _, err := tbl.Assign(ctx, a, gfx.QueueCompute, 0, alloc)
	require.NoError(t, err)
	ia.LastQueue = gfx.QueueCompute
	require.NoError(t, tbl.Retire(a, 0))

	ib, reused, err := tbl.Assign(ctx, b, gfx.QueueGraphics, 1, alloc)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotSame(t, ia, ib)
}

func TestAssign_DiscardsAliasedState(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()
	a := tbl.PromiseImage(ImageDesc{Width: 2, Height: 2})
	b := tbl.PromiseImage(ImageDesc{Width: 2, Height: 2})

	ia, _, err := tbl.Assign(ctx, a, gfx.QueueGraphics, 0, &fakeAllocator{})
	require.NoError(t, err)
	written := substate.State{Access: gfx.AccessColorWrite, Stage: gfx.StageColorOutput, Layout: gfx.LayoutColorAttachment, Queue: gfx.QueueGraphics}
	require.NoError(t, ia.State.SetSubResourceState(ia.State.Full(), written))
	require.NoError(t, tbl.Retire(a, 0))

	ib, reused, err := tbl.Assign(ctx, b, gfx.QueueGraphics, 1, &fakeAllocator{})
	require.NoError(t, err)
	require.True(t, reused)

	entries, err := ib.State.GetSubResourceState(ib.State.Full())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, gfx.LayoutUndefined, entries[0].State.Layout)
	assert.Equal(t, gfx.QueueIgnored, entries[0].State.Queue, "the new owner takes the memory without a transfer")
	assert.Equal(t, gfx.AccessColorWrite, entries[0].State.Access)
}

func TestImported_NeverAliased(t *testing.T) {
	ctx := context.Background()
	alloc := &fakeAllocator{}
	tbl := NewTable()
	initial := substate.State{Layout: gfx.LayoutPresent, Queue: gfx.QueueGraphics}
	ext := tbl.ImportImage(ImageDesc{Name: "swapchain", Width: 8, Height: 8}, "swapchain", initial)

	inst, reused, err := tbl.Assign(ctx, ext, gfx.QueueGraphics, 0, alloc)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.True(t, inst.External)
	assert.Equal(t, "swapchain", inst.Object)
	assert.Empty(t, alloc.created)

	require.NoError(t, tbl.Retire(ext, 0))
	assert.False(t, inst.Free())
}

func TestRelease_Underflow(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()
	a := tbl.PromiseBuffer(BufferDesc{Size: 4})
	inst, _, err := tbl.Assign(ctx, a, gfx.QueueIgnored, 0, &fakeAllocator{})
	require.NoError(t, err)

	inst.Hold(2)
	require.NoError(t, inst.Release())
	require.NoError(t, inst.Release())
	require.NoError(t, tbl.Retire(a, 0))
	assert.ErrorIs(t, inst.Release(), ErrRefCountUnderflow)
	assert.ErrorIs(t, tbl.Retire(a, 0), ErrRefCountUnderflow)
	assert.ErrorIs(t, tbl.Retire(BufferHandle(1), 0), ErrRefCountUnderflow)
}

func TestReset_DestroysPromisedInstances(t *testing.T) {
	ctx := context.Background()
	alloc := &fakeAllocator{}
	tbl := NewTable()
	initial := substate.State{Layout: gfx.LayoutPresent}
	ext := tbl.ImportImage(ImageDesc{Name: "swapchain"}, "swapchain", initial)
	a := tbl.PromiseImage(ImageDesc{Width: 4, Height: 4})

	extInst, _, err := tbl.Assign(ctx, ext, gfx.QueueGraphics, 0, alloc)
	require.NoError(t, err)
	require.NoError(t, extInst.State.SetSubResourceState(extInst.State.Full(), substate.State{Layout: gfx.LayoutGeneral}))
	_, _, err = tbl.Assign(ctx, a, gfx.QueueGraphics, 0, alloc)
	require.NoError(t, err)

	require.NoError(t, tbl.Reset(ctx, alloc))

	assert.Equal(t, []any{"img0:4x4"}, alloc.destroyed)
	require.Len(t, tbl.Instances(), 1)
	assert.Equal(t, 0, tbl.Instances()[0].RefCount())
	_, ok := tbl.Instance(a)
	assert.False(t, ok)
	entries, err := tbl.Instances()[0].State.GetSubResourceState(tbl.Instances()[0].State.Full())
	require.NoError(t, err)
	assert.Equal(t, initial, entries[0].State)
}

func TestResizeImage(t *testing.T) {
	ctx := context.Background()
	alloc := &fakeAllocator{}
	tbl := NewTable()
	a := tbl.PromiseImage(ImageDesc{Width: 4, Height: 4})
	b := tbl.PromiseImage(ImageDesc{Width: 4, Height: 4})
	ext := tbl.ImportImage(ImageDesc{}, "x", substate.State{})

	require.NoError(t, tbl.ResizeImage(a, 16, 8))
	info, err := tbl.Info(a)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), info.Image.Width)
	infoB, err := tbl.Info(b)
	require.NoError(t, err)
	assert.NotEqual(t, infoB.Blueprint, info.Blueprint)

	_, _, err = tbl.Assign(ctx, a, gfx.QueueGraphics, 0, alloc)
	require.NoError(t, err)
	assert.Equal(t, []string{"img0:16x8"}, alloc.created)

	assert.ErrorIs(t, tbl.ResizeImage(ext, 1, 1), ErrImportedHandle)
}

func TestAssign_AllocatorFailure(t *testing.T) {
	tbl := NewTable()
	a := tbl.PromiseImage(ImageDesc{})
	_, _, err := tbl.Assign(context.Background(), a, gfx.QueueGraphics, 0, &fakeAllocator{failNext: true})
	assert.ErrorContains(t, err, "out of memory")
	_, ok := tbl.Instance(a)
	assert.False(t, ok)
}
