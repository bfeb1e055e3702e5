package node

import (
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/substate"
)

// Node is a single pass in the frame graph. Its attachments live in the
// owning Graph and are referenced by arena index.
type Node struct {
	// ID is the node's index in Graph.Nodes.
	ID ID
	// Name is the pass name from the declaration.
	Name string
	// Queue is the queue class the pass is submitted to.
	Queue gfx.QueueClass
	// Execute records the pass's GPU work. It may be nil.
	Execute ExecuteFunc

	// Inputs, Outputs and Transients index into the Graph's arenas.
	Inputs     []int
	Outputs    []int
	Transients []int
	// Attachments lists every attachment in slot declaration order. An inout
	// slot contributes its input followed by its output.
	Attachments []Attachment
}

// Attachment points at one input, output or transient of a node.
type Attachment struct {
	Kind  SlotKind
	Index int
}

// In is a resource read by a node.
type In struct {
	Index  int
	Node   ID
	Slot   string
	Handle resource.Handle
	// Required is the state the pass needs before it runs.
	Required substate.State
	Range    substate.Range
	// Output is the producing output, or -1 for an imported resource seeded
	// directly.
	Output int
}

// Seeded reports whether the input reads an imported resource directly.
func (in *In) Seeded() bool { return in.Output < 0 }

// Out is a resource produced by a node.
type Out struct {
	Index  int
	Node   ID
	Slot   string
	Name   string
	Handle resource.Handle
	// Produced is the state the pass leaves the resource in.
	Produced substate.State
	Range    substate.Range
	// Inputs are the consumers connected to this output.
	Inputs []int
	// Birth is true when the node did not read the handle first.
	Birth bool
}

// Temp is a resource used only within its node.
type Temp struct {
	Index   int
	Node    ID
	Slot    string
	Handle  resource.Handle
	Initial substate.State
	Final   substate.State
	Range   substate.Range
}
