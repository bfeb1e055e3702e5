package substate

import (
	"fmt"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/interval"
)

type kind uint8

const (
	kindImage kind = iota + 1
	kindBuffer
)

// Store holds the state of every sub-range of one physical resource.
//
// Images keep one interval list per index of the smaller dimension (the outer
// dimension) and use the larger dimension as the interval axis. Buffers keep a
// single list over byte offsets.
type Store struct {
	kind   kind
	mips   uint32
	layers uint32
	size   uint64
	// mipMajor is true when mip levels are the outer dimension.
	mipMajor bool
	lists    []interval.List[State]
}

// NewImageStore creates a store for an image with the given number of mip
// levels and array layers, entirely in the initial state.
func NewImageStore(mips, layers uint32, initial State) *Store {
	mips, layers = max(mips, 1), max(layers, 1)
	s := &Store{
		kind:     kindImage,
		mips:     mips,
		layers:   layers,
		mipMajor: mips <= layers,
	}
	s.Reset(initial)
	return s
}

// NewBufferStore creates a store for a buffer of size bytes, entirely in the
// initial state.
func NewBufferStore(size uint64, initial State) *Store {
	s := &Store{kind: kindBuffer, size: max(size, 1)}
	s.Reset(initial)
	return s
}

// IsImage reports whether the store tracks an image.
func (s *Store) IsImage() bool { return s.kind == kindImage }

// Full returns the range covering the whole resource.
func (s *Store) Full() Range {
	if s.kind == kindImage {
		return ImageRange{MipCount: s.mips, LayerCount: s.layers}
	}
	return BufferRange{Size: s.size}
}

// Reset sets the whole resource to st.
func (s *Store) Reset(st State) {
	outer, inner := s.dims()
	s.lists = make([]interval.List[State], outer)
	for i := range s.lists {
		s.lists[i].Replace(interval.Span{Start: 0, End: inner}, st)
	}
}

// Discard marks the contents of the whole resource as undefined and drops
// queue ownership with them. Access and stage are kept so that the next user
// still synchronizes with the last accesses of the memory's previous owner.
func (s *Store) Discard() {
	for i := range s.lists {
		l := &s.lists[i]
		for j := range *l {
			(*l)[j].Value.Layout = gfx.LayoutUndefined
			(*l)[j].Value.Queue = gfx.QueueIgnored
		}
		s.compact(i)
	}
}

// compact merges neighbours of list i that became equal after an in-place edit.
func (s *Store) compact(i int) {
	old := s.lists[i]
	var merged interval.List[State]
	for _, e := range old {
		merged.Replace(e.Span, e.Value)
	}
	s.lists[i] = merged
}

// SetSubResourceState overwrites the state of exactly r.
func (s *Store) SetSubResourceState(r Range, st State) error {
	outer, inner, err := s.spans(r)
	if err != nil {
		return err
	}
	for o := outer.Start; o < outer.End; o++ {
		s.lists[o].Replace(inner, st)
	}
	return nil
}

// GetSubResourceState returns the intervals intersecting r, clipped to r.
// Adjacent outer indices holding the same inner span and state are reported
// as a single entry. The union of the returned ranges equals r.
func (s *Store) GetSubResourceState(r Range) ([]Entry, error) {
	outer, inner, err := s.spans(r)
	if err != nil {
		return nil, err
	}

	type key struct {
		inner interval.Span
		state State
	}
	type run struct {
		outer interval.Span
		key
	}
	var runs []run
	open := make(map[key]int)
	for o := outer.Start; o < outer.End; o++ {
		for _, e := range s.lists[o].Intersect(inner) {
			k := key{inner: e.Span, state: e.Value}
			if idx, ok := open[k]; ok && runs[idx].outer.End == o {
				runs[idx].outer.End = o + 1
				continue
			}
			open[k] = len(runs)
			runs = append(runs, run{outer: interval.Span{Start: o, End: o + 1}, key: k})
		}
	}

	entries := make([]Entry, 0, len(runs))
	for _, rn := range runs {
		entries = append(entries, Entry{Range: s.toRange(rn.outer, rn.inner), State: rn.state})
	}
	return entries, nil
}

func (s *Store) dims() (outer int, inner uint64) {
	switch {
	case s.kind == kindBuffer:
		return 1, s.size
	case s.mipMajor:
		return int(s.mips), uint64(s.layers)
	default:
		return int(s.layers), uint64(s.mips)
	}
}

// spans validates r and converts it to the outer index span and inner
// interval span of this store.
func (s *Store) spans(r Range) (outer, inner interval.Span, err error) {
	switch r := r.(type) {
	case ImageRange:
		if s.kind != kindImage {
			return outer, inner, fmt.Errorf("%w: image range %s on buffer", ErrRangeKind, r)
		}
		if r.MipCount == 0 || r.LayerCount == 0 ||
			uint64(r.BaseMip)+uint64(r.MipCount) > uint64(s.mips) ||
			uint64(r.BaseLayer)+uint64(r.LayerCount) > uint64(s.layers) {
			return outer, inner, fmt.Errorf("%w: %s on image with %d mips and %d layers", ErrRangeOutOfBounds, r, s.mips, s.layers)
		}
		mips := interval.Span{Start: uint64(r.BaseMip), End: uint64(r.BaseMip) + uint64(r.MipCount)}
		layers := interval.Span{Start: uint64(r.BaseLayer), End: uint64(r.BaseLayer) + uint64(r.LayerCount)}
		if s.mipMajor {
			return mips, layers, nil
		}
		return layers, mips, nil
	case BufferRange:
		if s.kind != kindBuffer {
			return outer, inner, fmt.Errorf("%w: buffer range %s on image", ErrRangeKind, r)
		}
		if r.Size == 0 || r.Offset+r.Size < r.Offset || r.Offset+r.Size > s.size {
			return outer, inner, fmt.Errorf("%w: %s on buffer of %d bytes", ErrRangeOutOfBounds, r, s.size)
		}
		return interval.Span{Start: 0, End: 1}, interval.Span{Start: r.Offset, End: r.Offset + r.Size}, nil
	case nil:
		return outer, inner, fmt.Errorf("%w: nil range", ErrRangeKind)
	default:
		panic(fmt.Sprintf("substate: unknown range type %T", r))
	}
}

func (s *Store) toRange(outer, inner interval.Span) Range {
	if s.kind == kindBuffer {
		return BufferRange{Offset: inner.Start, Size: inner.Len()}
	}
	if s.mipMajor {
		return ImageRange{
			BaseMip: uint32(outer.Start), MipCount: uint32(outer.Len()),
			BaseLayer: uint32(inner.Start), LayerCount: uint32(inner.Len()),
		}
	}
	return ImageRange{
		BaseMip: uint32(inner.Start), MipCount: uint32(inner.Len()),
		BaseLayer: uint32(outer.Start), LayerCount: uint32(outer.Len()),
	}
}

// Like returns a new store with the same shape as s, entirely in initial.
func (s *Store) Like(initial State) *Store {
	if s.kind == kindImage {
		return NewImageStore(s.mips, s.layers, initial)
	}
	return NewBufferStore(s.size, initial)
}
