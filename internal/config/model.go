package config

import (
	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/node"
	"github.com/vk/framegraph/internal/substate"
)

// Model is the unified representation of a frame graph declaration.
type Model struct {
	Images  []*Image
	Buffers []*Buffer
	Passes  []*Pass
}

// Image is the format-agnostic representation of an `image` block.
type Image struct {
	Name        string
	Format      gfx.Format
	Width       uint32
	Height      uint32
	Depth       uint32
	MipLevels   uint32
	ArrayLayers uint32
	Dedicated   bool
	// Imported images are owned by the caller and start in Initial.
	Imported bool
	Initial  substate.State
}

// Buffer is the format-agnostic representation of a `buffer` block.
type Buffer struct {
	Name      string
	Size      uint64
	Dedicated bool
	Imported  bool
	Initial   substate.State
}

// Pass is the format-agnostic representation of a `pass` block.
type Pass struct {
	Name      string
	Queue     gfx.QueueClass
	Slots     []*Slot
	DependsOn []string
}

// Slot is one attachment of a pass.
type Slot struct {
	Name string
	Kind node.SlotKind
	// Resource names the image or buffer the slot uses. It is empty when the
	// slot reads From an output.
	Resource string
	Image    bool
	// From names the output an input or inout reads, as "<pass>.<slot>" or
	// the name given with As.
	From       string
	As         string
	State      substate.State
	FinalState substate.State
	Range      substate.Range
}

// Image returns the image declared under name.
func (m *Model) Image(name string) (*Image, bool) {
	for _, img := range m.Images {
		if img.Name == name {
			return img, true
		}
	}
	return nil, false
}

// Buffer returns the buffer declared under name.
func (m *Model) Buffer(name string) (*Buffer, bool) {
	for _, buf := range m.Buffers {
		if buf.Name == name {
			return buf, true
		}
	}
	return nil, false
}
