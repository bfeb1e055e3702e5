package resource

import (
	"errors"
	"fmt"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/substate"
)

// ErrRefCountUnderflow is returned when an instance is released more often
// than it was held.
var ErrRefCountUnderflow = errors.New("reference count released below zero")

// Lease records the window of waves during which a handle was bound to an
// instance. Last is -1 while the lease is still open.
type Lease struct {
	Handle Handle
	First  int
	Last   int
}

// Open reports whether the lease has not been closed yet.
func (l Lease) Open() bool { return l.Last < 0 }

// Instance is one physical resource. It carries its own reference count and
// sub-resource state store.
type Instance struct {
	Index     int
	Blueprint int
	Object    any
	External  bool
	Image     bool
	// State is sized to the instance's extent.
	State *substate.Store
	// LastQueue is the queue class of the most recent pass that used the
	// instance.
	LastQueue gfx.QueueClass
	Leases    []Lease

	refs int
}

// RefCount returns the number of outstanding holds.
func (i *Instance) RefCount() int { return i.refs }

// Hold adds n holds.
func (i *Instance) Hold(n int) {
	if n < 0 {
		panic(fmt.Sprintf("resource: negative hold %d on instance %d", n, i.Index))
	}
	i.refs += n
}

// Release drops one hold.
func (i *Instance) Release() error {
	if i.refs == 0 {
		return fmt.Errorf("%w: instance %d", ErrRefCountUnderflow, i.Index)
	}
	i.refs--
	return nil
}

// Free reports whether the instance can back a new handle.
func (i *Instance) Free() bool {
	if i.External || i.refs != 0 {
		return false
	}
	for _, l := range i.Leases {
		if l.Open() {
			return false
		}
	}
	return true
}

func (i *Instance) openLease(h Handle, wave int) {
	i.Leases = append(i.Leases, Lease{Handle: h, First: wave, Last: -1})
}

func (i *Instance) closeLease(h Handle, wave int) bool {
	for k := range i.Leases {
		if i.Leases[k].Handle == h && i.Leases[k].Open() {
			i.Leases[k].Last = wave
			return true
		}
	}
	return false
}

// Blueprint owns the instances that may back the handles sharing it.
type Blueprint struct {
	Index     int
	External  bool
	Dedicated bool
	Handles   []Handle
	Instances []int
}
