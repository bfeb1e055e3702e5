// Package interval provides a sorted list of non-overlapping half-open spans,
// each carrying a comparable value. Updates split the spans they partially
// cover and merge adjacent spans that end up holding equal values, so the list
// is always in its most compact form.
package interval

import (
	"fmt"
	"slices"
	"sort"
)

// Span is a half open interval that includes Start but not End.
type Span struct {
	Start uint64
	End   uint64
}

// Len returns the number of values covered by the span.
func (s Span) Len() uint64 {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Empty reports whether the span covers nothing.
func (s Span) Empty() bool { return s.End <= s.Start }

// Overlaps reports whether s and o share at least one value.
func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool { return s.Start <= o.Start && o.End <= s.End }

// Intersect returns the overlap of s and o, which may be empty.
func (s Span) Intersect(o Span) Span {
	r := Span{Start: max(s.Start, o.Start), End: min(s.End, o.End)}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

func (s Span) String() string { return fmt.Sprintf("[%d,%d)", s.Start, s.End) }

// ValueSpan is one entry of a List.
type ValueSpan[V comparable] struct {
	Span
	Value V
}

// List is a sorted list of non-overlapping value spans. The zero value is an
// empty list ready to use.
type List[V comparable] []ValueSpan[V]

// Update modifies the values in span by applying f.
//   - Parts of span not covered by the list are passed to f with present=false.
//   - If f returns keep=false, the corresponding part is removed from the list.
//   - Adjacent spans holding equal values are merged.
func (l *List[V]) Update(span Span, f func(old V, present bool) (v V, keep bool)) {
	if span.Empty() {
		return
	}
	list := *l
	k := sort.Search(len(list), func(i int) bool { return span.Start < list[i].End })

	var elems []ValueSpan[V]
	add := func(v V, keep bool, start, end uint64) {
		if start >= end || !keep {
			return
		}
		if n := len(elems); n > 0 && elems[n-1].Value == v && elems[n-1].End == start {
			elems[n-1].End = end
			return
		}
		elems = append(elems, ValueSpan[V]{Span: Span{Start: start, End: end}, Value: v})
	}

	var zero V
	cursor := span.Start
	i := k
	if i < len(list) && list[i].Start < span.Start {
		// The part of the first overlapping entry that precedes span.
		add(list[i].Value, true, list[i].Start, span.Start)
	}
	for ; i < len(list) && list[i].Start < span.End; i++ {
		e := list[i]
		if cursor < e.Start {
			v, keep := f(zero, false)
			add(v, keep, cursor, e.Start)
			cursor = e.Start
		}
		end := min(e.End, span.End)
		v, keep := f(e.Value, true)
		add(v, keep, cursor, end)
		cursor = end
		if e.End > span.End {
			add(e.Value, true, span.End, e.End)
		}
	}
	if cursor < span.End {
		v, keep := f(zero, false)
		add(v, keep, cursor, span.End)
	}

	// list[lo:hi] is replaced with elems, after folding in equal neighbours.
	lo, hi := k, i
	if lo > 0 && len(elems) > 0 {
		if p := list[lo-1]; p.End == elems[0].Start && p.Value == elems[0].Value {
			elems[0].Start = p.Start
			lo--
		}
	}
	if hi < len(list) && len(elems) > 0 {
		if n, e := list[hi], &elems[len(elems)-1]; e.End == n.Start && e.Value == n.Value {
			e.End = n.End
			hi++
		}
	}
	if len(elems) == 0 && lo > 0 && hi < len(list) {
		if p, n := list[lo-1], list[hi]; p.End == n.Start && p.Value == n.Value {
			elems = append(elems, ValueSpan[V]{Span: Span{Start: p.Start, End: n.End}, Value: p.Value})
			lo--
			hi++
		}
	}
	*l = slices.Replace(list, lo, hi, elems...)
}

// Replace sets the value of every point in span to v.
func (l *List[V]) Replace(span Span, v V) {
	l.Update(span, func(V, bool) (V, bool) { return v, true })
}

// Remove deletes span from the list, splitting entries that straddle it.
func (l *List[V]) Remove(span Span) {
	l.Update(span, func(old V, _ bool) (V, bool) { return old, false })
}

// Intersect returns the entries overlapping span, clipped to span.
func (l List[V]) Intersect(span Span) []ValueSpan[V] {
	if span.Empty() {
		return nil
	}
	k := sort.Search(len(l), func(i int) bool { return span.Start < l[i].End })
	var out []ValueSpan[V]
	for i := k; i < len(l) && l[i].Start < span.End; i++ {
		out = append(out, ValueSpan[V]{Span: l[i].Span.Intersect(span), Value: l[i].Value})
	}
	return out
}

// Find returns the entry containing value, if any.
func (l List[V]) Find(value uint64) (ValueSpan[V], bool) {
	k := sort.Search(len(l), func(i int) bool { return value < l[i].End })
	if k < len(l) && l[k].Start <= value {
		return l[k], true
	}
	return ValueSpan[V]{}, false
}

// Covers reports whether the list covers every value of span without gaps.
func (l List[V]) Covers(span Span) bool {
	cursor := span.Start
	for _, e := range l.Intersect(span) {
		if e.Start != cursor {
			return false
		}
		cursor = e.End
	}
	return cursor >= span.End
}

// Clone returns an independent copy of the list.
func (l List[V]) Clone() List[V] { return slices.Clone(l) }
