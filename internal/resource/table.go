package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/substate"
)

var (
	// ErrUnknownHandle is returned for handles that were not created by the table.
	ErrUnknownHandle = errors.New("unknown resource handle")
	// ErrImportedHandle is returned when an operation needs a promised handle.
	ErrImportedHandle = errors.New("operation not allowed on an imported handle")
	// ErrAlreadyAssigned is returned when a handle is assigned twice in one compile.
	ErrAlreadyAssigned = errors.New("handle already assigned to an instance")
	// ErrNotAssigned is returned when a handle has no backing instance.
	ErrNotAssigned = errors.New("handle not assigned to an instance")
)

// Allocator creates and destroys the device objects behind physical
// instances.
type Allocator interface {
	CreateImage(ctx context.Context, desc ImageDesc) (any, error)
	CreateBuffer(ctx context.Context, desc BufferDesc) (any, error)
	Destroy(ctx context.Context, object any) error
}

// Info is the declaration of one handle.
type Info struct {
	Handle    Handle
	Name      string
	External  bool
	Image     ImageDesc
	Buffer    BufferDesc
	Object    any
	Initial   substate.State
	Blueprint int
}

// Table holds every handle, blueprint and instance of one frame graph.
type Table struct {
	infos         []Info
	blueprints    []*Blueprint
	instances     []*Instance
	pools         map[any]int
	handleToIndex map[Handle]int
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		pools:         make(map[any]int),
		handleToIndex: make(map[Handle]int),
	}
}

func (t *Table) nextID() uint32 { return uint32(len(t.infos) + 1) }

// PromiseImage declares an internally managed image.
func (t *Table) PromiseImage(desc ImageDesc) ImageHandle {
	h := ImageHandle(t.nextID())
	info := Info{Handle: h, Name: desc.Name, Image: desc.normalized()}
	info.Blueprint = t.pool(h, info.Image, BufferDesc{}, desc.Dedicated)
	t.infos = append(t.infos, info)
	return h
}

// PromiseBuffer declares an internally managed buffer.
func (t *Table) PromiseBuffer(desc BufferDesc) BufferHandle {
	h := BufferHandle(t.nextID())
	desc.Size = max(desc.Size, 1)
	info := Info{Handle: h, Name: desc.Name, Buffer: desc}
	info.Blueprint = t.pool(h, ImageDesc{}, desc, desc.Dedicated)
	t.infos = append(t.infos, info)
	return h
}

// ImportImage registers an externally owned image in its initial state.
func (t *Table) ImportImage(desc ImageDesc, object any, initial substate.State) ImageHandle {
	h := ImageHandle(t.nextID())
	desc = desc.normalized()
	t.infos = append(t.infos, Info{Handle: h, Name: desc.Name, External: true, Image: desc, Object: object, Initial: initial})
	t.importInstance(h)
	return h
}

// ImportBuffer registers an externally owned buffer in its initial state.
func (t *Table) ImportBuffer(desc BufferDesc, object any, initial substate.State) BufferHandle {
	h := BufferHandle(t.nextID())
	desc.Size = max(desc.Size, 1)
	t.infos = append(t.infos, Info{Handle: h, Name: desc.Name, External: true, Buffer: desc, Object: object, Initial: initial})
	t.importInstance(h)
	return h
}

func (t *Table) importInstance(h Handle) {
	info := &t.infos[h.ID()-1]
	bp := &Blueprint{Index: len(t.blueprints), External: true, Dedicated: true, Handles: []Handle{h}}
	t.blueprints = append(t.blueprints, bp)
	info.Blueprint = bp.Index

	inst := &Instance{
		Index:     len(t.instances),
		Blueprint: bp.Index,
		Object:    info.Object,
		External:  true,
		Image:     IsImage(h),
		State:     newStore(*info, info.Initial),
		LastQueue: info.Initial.Queue,
	}
	t.instances = append(t.instances, inst)
	bp.Instances = append(bp.Instances, inst.Index)
}

// pool returns the blueprint a promised handle belongs to, creating it when
// needed.
func (t *Table) pool(h Handle, img ImageDesc, buf BufferDesc, dedicated bool) int {
	key := poolKey(h, img, buf)
	if !dedicated {
		if idx, ok := t.pools[key]; ok {
			bp := t.blueprints[idx]
			bp.Handles = append(bp.Handles, h)
			return idx
		}
	}
	bp := &Blueprint{Index: len(t.blueprints), Dedicated: dedicated, Handles: []Handle{h}}
	t.blueprints = append(t.blueprints, bp)
	if !dedicated {
		t.pools[key] = bp.Index
	}
	return bp.Index
}

func newStore(info Info, initial substate.State) *substate.Store {
	if IsImage(info.Handle) {
		return substate.NewImageStore(info.Image.MipLevels, info.Image.ArrayLayers, initial)
	}
	return substate.NewBufferStore(info.Buffer.Size, initial)
}

// Info returns the declaration of h.
func (t *Table) Info(h Handle) (Info, error) {
	if h == nil || h.ID() == 0 || int(h.ID()) > len(t.infos) {
		return Info{}, fmt.Errorf("%w: %v", ErrUnknownHandle, h)
	}
	info := t.infos[h.ID()-1]
	if info.Handle != h {
		return Info{}, fmt.Errorf("%w: %v is a %s", ErrUnknownHandle, h, info.Handle)
	}
	return info, nil
}

// Handles returns the declarations of all handles in creation order.
func (t *Table) Handles() []Info {
	return append([]Info(nil), t.infos...)
}

// Blueprints returns all blueprints in creation order.
func (t *Table) Blueprints() []*Blueprint { return t.blueprints }

// Instances returns all physical instances in creation order.
func (t *Table) Instances() []*Instance { return t.instances }

// ResizeImage changes the extent of a promised image. Instances created
// before the call keep their old extent until the next Reset.
func (t *Table) ResizeImage(h ImageHandle, width, height uint32) error {
	info, err := t.Info(h)
	if err != nil {
		return err
	}
	if info.External {
		return fmt.Errorf("resize %s: %w", h, ErrImportedHandle)
	}

	old := t.blueprints[info.Blueprint]
	for i, other := range old.Handles {
		if other == Handle(h) {
			old.Handles = append(old.Handles[:i], old.Handles[i+1:]...)
			break
		}
	}

	info.Image.Width = max(width, 1)
	info.Image.Height = max(height, 1)
	info.Blueprint = t.pool(h, info.Image, BufferDesc{}, info.Image.Dedicated)
	t.infos[h.ID()-1] = info
	return nil
}

// Instance returns the instance h is currently assigned to.
func (t *Table) Instance(h Handle) (*Instance, bool) {
	idx, ok := t.handleToIndex[h]
	if !ok {
		return nil, false
	}
	return t.instances[idx], true
}

// Assign binds h to a physical instance at the given wave and takes the
// handle's birth hold on it. Imported handles always get their own instance.
// Promised handles reuse a free instance of their blueprint whose last queue
// is compatible with queue, or get a new one from alloc. The returned bool
// reports whether an existing instance was reused.
func (t *Table) Assign(ctx context.Context, h Handle, queue gfx.QueueClass, wave int, alloc Allocator) (*Instance, bool, error) {
	info, err := t.Info(h)
	if err != nil {
		return nil, false, err
	}
	if _, ok := t.handleToIndex[h]; ok {
		return nil, false, fmt.Errorf("%w: %s", ErrAlreadyAssigned, h)
	}

	bp := t.blueprints[info.Blueprint]
	var inst *Instance
	reused := false
	if info.External {
		inst = t.instances[bp.Instances[0]]
	} else {
		for _, idx := range bp.Instances {
			cand := t.instances[idx]
			if cand.Free() && queueCompatible(cand.LastQueue, queue) {
				inst, reused = cand, true
				inst.State.Discard()
				break
			}
		}
		if inst == nil {
			if inst, err = t.create(ctx, info, bp, alloc); err != nil {
				return nil, false, err
			}
		}
	}

	inst.openLease(h, wave)
	inst.Hold(1)
	t.handleToIndex[h] = inst.Index
	return inst, reused, nil
}

func queueCompatible(last, birth gfx.QueueClass) bool {
	return last == gfx.QueueIgnored || birth == gfx.QueueIgnored || last == birth
}

func (t *Table) create(ctx context.Context, info Info, bp *Blueprint, alloc Allocator) (*Instance, error) {
	var (
		object any
		err    error
	)
	if IsImage(info.Handle) {
		object, err = alloc.CreateImage(ctx, info.Image)
	} else {
		object, err = alloc.CreateBuffer(ctx, info.Buffer)
	}
	if err != nil {
		return nil, fmt.Errorf("create instance for %s: %w", info.Handle, err)
	}

	inst := &Instance{
		Index:     len(t.instances),
		Blueprint: bp.Index,
		Object:    object,
		Image:     IsImage(info.Handle),
		State:     newStore(info, substate.State{}),
	}
	t.instances = append(t.instances, inst)
	bp.Instances = append(bp.Instances, inst.Index)
	return inst, nil
}

// Retire releases the birth hold of h at the end of its last wave and closes
// its lease.
func (t *Table) Retire(h Handle, wave int) error {
	inst, ok := t.Instance(h)
	if !ok {
		return fmt.Errorf("retire %s: %w", h, ErrNotAssigned)
	}
	if !inst.closeLease(h, wave) {
		return fmt.Errorf("retire %s: %w: lease already closed", h, ErrRefCountUnderflow)
	}
	return inst.Release()
}

// Reset destroys every promised instance and returns imported instances to
// their initial state, so the table can be compiled again.
func (t *Table) Reset(ctx context.Context, alloc Allocator) error {
	var errs []error
	kept := t.instances[:0]
	for _, inst := range t.instances {
		if !inst.External {
			if err := alloc.Destroy(ctx, inst.Object); err != nil {
				errs = append(errs, fmt.Errorf("destroy instance %d: %w", inst.Index, err))
			}
			continue
		}
		kept = append(kept, inst)
	}
	clear(t.instances[len(kept):])
	t.instances = kept

	for _, bp := range t.blueprints {
		bp.Instances = bp.Instances[:0]
	}
	for i, inst := range t.instances {
		inst.Index = i
		inst.refs = 0
		inst.Leases = nil
		bp := t.blueprints[inst.Blueprint]
		bp.Instances = append(bp.Instances, i)
		info := t.infos[bp.Handles[0].ID()-1]
		inst.State.Reset(info.Initial)
		inst.LastQueue = info.Initial.Queue
	}
	clear(t.handleToIndex)
	return errors.Join(errs...)
}
