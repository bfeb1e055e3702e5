// Package resource manages logical resource handles and the physical
// instances that back them.
//
// A handle is a declaration-time identifier. Promised handles with identical
// aliasable descriptors share one blueprint, a pool of physical instances, so
// handles whose lifetimes do not overlap can be backed by the same instance.
// Imported handles and dedicated descriptors get a private blueprint.
package resource

import (
	"fmt"

	"github.com/vk/framegraph/internal/gfx"
)

// Handle identifies a logical resource. It is either an ImageHandle or a
// BufferHandle.
type Handle interface {
	fmt.Stringer
	// ID returns the opaque integer behind the handle. IDs are unique across
	// both kinds within one Table.
	ID() uint32
	isHandle()
}

// ImageHandle identifies a logical image.
type ImageHandle uint32

// BufferHandle identifies a logical buffer.
type BufferHandle uint32

func (h ImageHandle) ID() uint32      { return uint32(h) }
func (h ImageHandle) String() string  { return fmt.Sprintf("image#%d", uint32(h)) }
func (ImageHandle) isHandle()         {}
func (h BufferHandle) ID() uint32     { return uint32(h) }
func (h BufferHandle) String() string { return fmt.Sprintf("buffer#%d", uint32(h)) }
func (BufferHandle) isHandle()        {}

// IsImage reports whether h names an image.
func IsImage(h Handle) bool {
	switch h.(type) {
	case ImageHandle:
		return true
	case BufferHandle:
		return false
	default:
		panic(fmt.Sprintf("resource: unknown handle type %T", h))
	}
}

// ImageDesc describes an image. Width, height and depth default to 1, as do
// mip levels and array layers.
type ImageDesc struct {
	Name        string     `json:"name,omitempty"`
	Format      gfx.Format `json:"format"`
	Width       uint32     `json:"width"`
	Height      uint32     `json:"height"`
	Depth       uint32     `json:"depth"`
	MipLevels   uint32     `json:"mip_levels"`
	ArrayLayers uint32     `json:"array_layers"`
	// Dedicated images never share physical memory with other handles.
	Dedicated bool `json:"dedicated,omitempty"`
}

func (d ImageDesc) normalized() ImageDesc {
	d.Width = max(d.Width, 1)
	d.Height = max(d.Height, 1)
	d.Depth = max(d.Depth, 1)
	d.MipLevels = max(d.MipLevels, 1)
	d.ArrayLayers = max(d.ArrayLayers, 1)
	return d
}

// BufferDesc describes a buffer.
type BufferDesc struct {
	Name string `json:"name,omitempty"`
	Size uint64 `json:"size"`
	// Dedicated buffers never share physical memory with other handles.
	Dedicated bool `json:"dedicated,omitempty"`
}

type imagePoolKey struct {
	format              gfx.Format
	width, height       uint32
	depth, mips, layers uint32
}

type bufferPoolKey struct {
	size uint64
}

func poolKey(h Handle, img ImageDesc, buf BufferDesc) any {
	if IsImage(h) {
		return imagePoolKey{img.Format, img.Width, img.Height, img.Depth, img.MipLevels, img.ArrayLayers}
	}
	return bufferPoolKey{buf.Size}
}
