package node

import (
	"context"
	"fmt"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/substate"
)

// ID is the arena index of a node.
type ID int

// SlotKind says how a pass uses an attachment.
type SlotKind uint8

const (
	// Input reads a resource produced by an earlier pass or imported.
	Input SlotKind = iota + 1
	// Output produces a resource, either a new one or a new version.
	Output
	// InOut reads a resource and produces its next version.
	InOut
	// Transient uses a resource only within the pass.
	Transient
)

var slotKindNames = map[SlotKind]string{
	Input:     "input",
	Output:    "output",
	InOut:     "inout",
	Transient: "transient",
}

func (k SlotKind) String() string {
	if n, ok := slotKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("SlotKind(%d)", k)
}

// ParseSlotKind parses a slot kind name.
func ParseSlotKind(name string) (SlotKind, error) {
	for k, n := range slotKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown slot kind %q", name)
}

// Slot declares one attachment of a pass.
//
// State is the required state for Input, the produced state for Output, the
// required state for InOut and the initial state for Transient. FinalState is
// the produced state for InOut and the final state for Transient; when left
// zero it defaults to State. A nil Range selects the whole resource.
type Slot struct {
	Name       string
	Kind       SlotKind
	State      substate.State
	FinalState substate.State
	Range      substate.Range
}

// Resources gives a running pass access to the device objects bound to its
// slots.
type Resources interface {
	Object(slot string) (any, bool)
}

// ExecuteFunc records the GPU work of a pass.
type ExecuteFunc func(ctx context.Context, res Resources) error

// PassDesc declares a pass. Queue defaults to graphics.
type PassDesc struct {
	Name    string
	Queue   gfx.QueueClass
	Slots   []Slot
	Execute ExecuteFunc
}

// Binding connects a slot to a resource.
//
// From names a previously registered output and is required for inputs of
// promised resources. Handle names the resource directly; it is required for
// outputs and transients and may seed inputs of imported resources. As names
// the output registered by an output or inout slot and defaults to
// "<pass>.<slot>".
type Binding struct {
	Handle resource.Handle
	From   string
	As     string
}

// Bindings maps slot names to bindings.
type Bindings map[string]Binding

// HandleInfo looks up handle declarations.
type HandleInfo interface {
	Info(h resource.Handle) (resource.Info, error)
}
