// Package substate tracks the synchronization state of a resource over its
// sub-ranges. A Store partitions the full range of an image (mip levels by
// array layers) or a buffer (bytes) into intervals that each hold one State.
// The union of the stored intervals always equals the full range.
package substate

import (
	"errors"
	"fmt"

	"github.com/vk/framegraph/internal/gfx"
)

var (
	// ErrRangeOutOfBounds is returned for empty ranges and ranges that extend
	// past the resource extent.
	ErrRangeOutOfBounds = errors.New("sub-resource range out of bounds")
	// ErrRangeKind is returned when an image range is used on a buffer store
	// or the other way around.
	ErrRangeKind = errors.New("sub-resource range does not match resource kind")
)

// State is the synchronization relevant view of a portion of a resource.
type State struct {
	Access gfx.Access     `json:"access"`
	Stage  gfx.Stage      `json:"stage"`
	Layout gfx.Layout     `json:"layout"`
	Queue  gfx.QueueClass `json:"queue"`
}

func (s State) String() string {
	return fmt.Sprintf("{access=%s stage=%s layout=%s queue=%s}", s.Access, s.Stage, s.Layout, s.Queue)
}

// Range selects a portion of a resource. It is either an ImageRange or a
// BufferRange.
type Range interface {
	fmt.Stringer
	isRange()
}

// ImageRange selects mip levels [BaseMip, BaseMip+MipCount) of array layers
// [BaseLayer, BaseLayer+LayerCount).
type ImageRange struct {
	BaseMip    uint32 `json:"base_mip"`
	MipCount   uint32 `json:"mip_count"`
	BaseLayer  uint32 `json:"base_layer"`
	LayerCount uint32 `json:"layer_count"`
}

func (ImageRange) isRange() {}

func (r ImageRange) String() string {
	return fmt.Sprintf("mips[%d,%d) layers[%d,%d)", r.BaseMip, r.BaseMip+r.MipCount, r.BaseLayer, r.BaseLayer+r.LayerCount)
}

// Overlaps reports whether r and o share at least one subresource.
func (r ImageRange) Overlaps(o ImageRange) bool {
	return r.BaseMip < o.BaseMip+o.MipCount && o.BaseMip < r.BaseMip+r.MipCount &&
		r.BaseLayer < o.BaseLayer+o.LayerCount && o.BaseLayer < r.BaseLayer+r.LayerCount
}

// BufferRange selects bytes [Offset, Offset+Size).
type BufferRange struct {
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
}

func (BufferRange) isRange() {}

func (r BufferRange) String() string {
	return fmt.Sprintf("bytes[%d,%d)", r.Offset, r.Offset+r.Size)
}

// Overlaps reports whether r and o share at least one byte.
func (r BufferRange) Overlaps(o BufferRange) bool {
	return r.Offset < o.Offset+o.Size && o.Offset < r.Offset+r.Size
}

// Overlaps reports whether two ranges of the same kind intersect. Ranges of
// different kinds never overlap.
func Overlaps(a, b Range) bool {
	switch a := a.(type) {
	case ImageRange:
		b, ok := b.(ImageRange)
		return ok && a.Overlaps(b)
	case BufferRange:
		b, ok := b.(BufferRange)
		return ok && a.Overlaps(b)
	default:
		panic(fmt.Sprintf("substate: unknown range type %T", a))
	}
}

// Entry is one interval returned by GetSubResourceState.
type Entry struct {
	Range Range
	State State
}

// Intersect returns the overlap of two ranges of the same kind.
func Intersect(a, b Range) (Range, bool) {
	switch a := a.(type) {
	case ImageRange:
		b, ok := b.(ImageRange)
		if !ok || !a.Overlaps(b) {
			return nil, false
		}
		bm, bl := max(a.BaseMip, b.BaseMip), max(a.BaseLayer, b.BaseLayer)
		em := min(a.BaseMip+a.MipCount, b.BaseMip+b.MipCount)
		el := min(a.BaseLayer+a.LayerCount, b.BaseLayer+b.LayerCount)
		return ImageRange{BaseMip: bm, MipCount: em - bm, BaseLayer: bl, LayerCount: el - bl}, true
	case BufferRange:
		b, ok := b.(BufferRange)
		if !ok || !a.Overlaps(b) {
			return nil, false
		}
		start := max(a.Offset, b.Offset)
		end := min(a.Offset+a.Size, b.Offset+b.Size)
		return BufferRange{Offset: start, Size: end - start}, true
	default:
		panic(fmt.Sprintf("substate: unknown range type %T", a))
	}
}

// Volume returns the number of subresources (images) or bytes (buffers) in r.
func Volume(r Range) uint64 {
	switch r := r.(type) {
	case ImageRange:
		return uint64(r.MipCount) * uint64(r.LayerCount)
	case BufferRange:
		return r.Size
	default:
		panic(fmt.Sprintf("substate: unknown range type %T", r))
	}
}
