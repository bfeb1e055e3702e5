package builder

import (
	"errors"
	"fmt"

	"github.com/vk/framegraph/internal/device"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/substate"
)

// ErrUnknownPass is returned when a dependency names a pass that does not
// exist.
var ErrUnknownPass = errors.New("unknown pass")

// Builder collects the declarations of one frame graph.
type Builder struct {
	table *resource.Table
	graph *node.Graph
	// deps are explicit ordering edges, before -> after.
	deps [][2]node.ID

	// factory created the instances of the last compile.
	factory device.Factory
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{
		table: resource.NewTable(),
		graph: node.NewGraph(),
	}
}

// Graph returns the node graph.
func (b *Builder) Graph() *node.Graph { return b.graph }

// Table returns the resource table.
func (b *Builder) Table() *resource.Table { return b.table }

// PromiseImage declares an image whose memory the frame graph manages.
func (b *Builder) PromiseImage(desc resource.ImageDesc) resource.ImageHandle {
	return b.table.PromiseImage(desc)
}

// PromiseBuffer declares a buffer whose memory the frame graph manages.
func (b *Builder) PromiseBuffer(desc resource.BufferDesc) resource.BufferHandle {
	return b.table.PromiseBuffer(desc)
}

// ImportImage registers an image owned by the caller, such as a swapchain
// image, in the state it is in when the frame starts.
func (b *Builder) ImportImage(desc resource.ImageDesc, object any, initial substate.State) resource.ImageHandle {
	return b.table.ImportImage(desc, object, initial)
}

// ImportBuffer registers a buffer owned by the caller.
func (b *Builder) ImportBuffer(desc resource.BufferDesc, object any, initial substate.State) resource.BufferHandle {
	return b.table.ImportBuffer(desc, object, initial)
}

// ResizeImage changes the extent of a promised image. It takes effect on the
// next Compile.
func (b *Builder) ResizeImage(h resource.ImageHandle, width, height uint32) error {
	return b.table.ResizeImage(h, width, height)
}

// AddFrameGraphPass declares a pass and connects its slots. A failed
// declaration leaves the builder unchanged.
func (b *Builder) AddFrameGraphPass(desc node.PassDesc, bindings node.Bindings) (node.ID, error) {
	return b.graph.AddPass(desc, bindings, b.table)
}

// AddDependency orders pass after behind pass before even when no resource
// connects them.
func (b *Builder) AddDependency(before, after node.ID) error {
	for _, id := range []node.ID{before, after} {
		if id < 0 || int(id) >= b.graph.Len() {
			return fmt.Errorf("%w: node %d", ErrUnknownPass, id)
		}
	}
	if before == after {
		return fmt.Errorf("pass '%s' cannot depend on itself", b.graph.Node(before).Name)
	}
	b.deps = append(b.deps, [2]node.ID{before, after})
	return nil
}
