package node

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vk/framegraph/internal/gfx"
	"github.com/vk/framegraph/internal/resource"
	"github.com/vk/framegraph/internal/substate"
)

var (
	// ErrDanglingReference is returned when an input names an output that has
	// not been registered.
	ErrDanglingReference = errors.New("dangling output reference")
	// ErrUnconnectedInput is returned when an input of a promised resource is
	// not connected to an output.
	ErrUnconnectedInput = errors.New("input not connected to an output")
	// ErrConflictingAttachment is returned for attachments whose shape
	// contradicts their binding, their handle or their pass.
	ErrConflictingAttachment = errors.New("conflicting attachment")
)

// Graph owns every node and attachment of a frame graph.
type Graph struct {
	Nodes      []Node
	Inputs     []In
	Outputs    []Out
	Transients []Temp

	// registry maps output names to indices in Outputs.
	registry map[string]int
	passes   map[string]ID
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		registry: make(map[string]int),
		passes:   make(map[string]ID),
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.Nodes) }

// Node returns the node with the given id.
func (g *Graph) Node(id ID) *Node { return &g.Nodes[id] }

// Output returns the index of the output registered under name.
func (g *Graph) Output(name string) (int, bool) {
	idx, ok := g.registry[name]
	return idx, ok
}

// OutputNames returns the registered output names in registration order.
func (g *Graph) OutputNames() []string {
	names := make([]string, len(g.Outputs))
	for i, o := range g.Outputs {
		names[i] = o.Name
	}
	return names
}

// Producers returns the nodes whose outputs feed id, in input order and
// without duplicates.
func (g *Graph) Producers(id ID) []ID {
	var deps []ID
	for _, in := range g.Nodes[id].Inputs {
		src := g.Inputs[in].Output
		if src < 0 {
			continue
		}
		if p := g.Outputs[src].Node; !slices.Contains(deps, p) {
			deps = append(deps, p)
		}
	}
	return deps
}

// pending collects the attachments of a pass under construction so a failed
// declaration leaves the graph untouched.
type pending struct {
	g          *Graph
	node       Node
	inputs     []In
	outputs    []Out
	transients []Temp
	names      map[string]bool
	// consumers are the outputs, by index, that gain a connected input.
	consumers map[int][]int
}

// AddPass validates a pass declaration and adds it to the graph. Outputs are
// registered under their names so later passes can connect to them.
func (g *Graph) AddPass(desc PassDesc, bindings Bindings, handles HandleInfo) (ID, error) {
	if desc.Name == "" {
		return -1, fmt.Errorf("%w: pass has no name", ErrConflictingAttachment)
	}
	if _, ok := g.passes[desc.Name]; ok {
		return -1, fmt.Errorf("%w: pass '%s' already declared", ErrConflictingAttachment, desc.Name)
	}
	queue := desc.Queue
	if queue == gfx.QueueIgnored {
		queue = gfx.QueueGraphics
	}

	p := &pending{
		g:         g,
		node:      Node{ID: ID(len(g.Nodes)), Name: desc.Name, Queue: queue, Execute: desc.Execute},
		names:     make(map[string]bool),
		consumers: make(map[int][]int),
	}
	for name := range bindings {
		if !slices.ContainsFunc(desc.Slots, func(s Slot) bool { return s.Name == name }) {
			return -1, fmt.Errorf("%w: pass '%s' binds unknown slot '%s'", ErrConflictingAttachment, desc.Name, name)
		}
	}
	for _, slot := range desc.Slots {
		if err := p.addSlot(slot, bindings[slot.Name], handles); err != nil {
			return -1, fmt.Errorf("pass '%s' slot '%s': %w", desc.Name, slot.Name, err)
		}
	}
	p.commit()
	return p.node.ID, nil
}

func (p *pending) addSlot(slot Slot, b Binding, handles HandleInfo) error {
	if slot.Name == "" {
		return fmt.Errorf("%w: slot has no name", ErrConflictingAttachment)
	}
	if p.names[slot.Name] {
		return fmt.Errorf("%w: duplicate slot name", ErrConflictingAttachment)
	}
	p.names[slot.Name] = true

	if slot.FinalState == (substate.State{}) {
		slot.FinalState = slot.State
	}
	var err error
	if slot.State, err = p.withQueue(slot.State); err != nil {
		return err
	}
	if slot.FinalState, err = p.withQueue(slot.FinalState); err != nil {
		return err
	}

	switch slot.Kind {
	case Input:
		_, err = p.addInput(slot, b, slot.State, handles)
		return err
	case InOut:
		h, err := p.addInput(slot, b, slot.State, handles)
		if err != nil {
			return err
		}
		return p.addOutput(slot, Binding{Handle: h, As: b.As}, slot.FinalState, false, handles)
	case Output:
		if b.From != "" {
			return fmt.Errorf("%w: output slots cannot read from '%s'", ErrConflictingAttachment, b.From)
		}
		return p.addOutput(slot, b, slot.State, true, handles)
	case Transient:
		return p.addTransient(slot, b, handles)
	default:
		return fmt.Errorf("%w: unknown slot kind %s", ErrConflictingAttachment, slot.Kind)
	}
}

// withQueue fills an unset queue with the pass queue and rejects a different
// explicit one.
func (p *pending) withQueue(s substate.State) (substate.State, error) {
	switch s.Queue {
	case gfx.QueueIgnored:
		s.Queue = p.node.Queue
	case p.node.Queue:
	default:
		return s, fmt.Errorf("%w: state queue %s differs from pass queue %s", ErrConflictingAttachment, s.Queue, p.node.Queue)
	}
	return s, nil
}

func (p *pending) addInput(slot Slot, b Binding, required substate.State, handles HandleInfo) (resource.Handle, error) {
	in := In{
		Index:    len(p.g.Inputs) + len(p.inputs),
		Node:     p.node.ID,
		Slot:     slot.Name,
		Required: required,
		Range:    slot.Range,
		Output:   -1,
	}

	switch {
	case b.From != "":
		src, ok := p.g.registry[b.From]
		if !ok {
			return nil, fmt.Errorf("%w: no output named '%s'", ErrDanglingReference, b.From)
		}
		in.Handle = p.g.Outputs[src].Handle
		if b.Handle != nil && b.Handle != in.Handle {
			return nil, fmt.Errorf("%w: output '%s' carries %s, not %s", ErrConflictingAttachment, b.From, in.Handle, b.Handle)
		}
		in.Output = src
	case b.Handle != nil:
		info, err := handles.Info(b.Handle)
		if err != nil {
			return nil, err
		}
		if !info.External {
			return nil, fmt.Errorf("%w: promised %s must be read from an output", ErrUnconnectedInput, b.Handle)
		}
		in.Handle = b.Handle
	default:
		return nil, ErrUnconnectedInput
	}

	if err := checkRange(in.Handle, in.Range); err != nil {
		return nil, err
	}
	if in.Output >= 0 {
		p.consumers[in.Output] = append(p.consumers[in.Output], in.Index)
	}
	p.inputs = append(p.inputs, in)
	p.node.Inputs = append(p.node.Inputs, in.Index)
	p.node.Attachments = append(p.node.Attachments, Attachment{Kind: Input, Index: in.Index})
	return in.Handle, nil
}

func (p *pending) addOutput(slot Slot, b Binding, produced substate.State, birth bool, handles HandleInfo) error {
	if b.Handle == nil {
		return fmt.Errorf("%w: output slot needs a handle", ErrConflictingAttachment)
	}
	if _, err := handles.Info(b.Handle); err != nil {
		return err
	}
	if err := checkRange(b.Handle, slot.Range); err != nil {
		return err
	}
	name := b.As
	if name == "" {
		name = p.node.Name + "." + slot.Name
	}
	if _, taken := p.g.registry[name]; taken || slices.ContainsFunc(p.outputs, func(o Out) bool { return o.Name == name }) {
		return fmt.Errorf("%w: output name '%s' already registered", ErrConflictingAttachment, name)
	}

	out := Out{
		Index:    len(p.g.Outputs) + len(p.outputs),
		Node:     p.node.ID,
		Slot:     slot.Name,
		Name:     name,
		Handle:   b.Handle,
		Produced: produced,
		Range:    slot.Range,
		Birth:    birth,
	}
	p.outputs = append(p.outputs, out)
	p.node.Outputs = append(p.node.Outputs, out.Index)
	p.node.Attachments = append(p.node.Attachments, Attachment{Kind: Output, Index: out.Index})
	return nil
}

func (p *pending) addTransient(slot Slot, b Binding, handles HandleInfo) error {
	if b.From != "" || b.As != "" {
		return fmt.Errorf("%w: transient slots are never connected", ErrConflictingAttachment)
	}
	if b.Handle == nil {
		return fmt.Errorf("%w: transient slot needs a handle", ErrConflictingAttachment)
	}
	info, err := handles.Info(b.Handle)
	if err != nil {
		return err
	}
	if info.External {
		return fmt.Errorf("%w: transient slot cannot use imported %s", ErrConflictingAttachment, b.Handle)
	}
	if err := checkRange(b.Handle, slot.Range); err != nil {
		return err
	}

	tmp := Temp{
		Index:   len(p.g.Transients) + len(p.transients),
		Node:    p.node.ID,
		Slot:    slot.Name,
		Handle:  b.Handle,
		Initial: slot.State,
		Final:   slot.FinalState,
		Range:   slot.Range,
	}
	p.transients = append(p.transients, tmp)
	p.node.Transients = append(p.node.Transients, tmp.Index)
	p.node.Attachments = append(p.node.Attachments, Attachment{Kind: Transient, Index: tmp.Index})
	return nil
}

func checkRange(h resource.Handle, r substate.Range) error {
	switch r.(type) {
	case nil:
		return nil
	case substate.ImageRange:
		if resource.IsImage(h) {
			return nil
		}
	case substate.BufferRange:
		if !resource.IsImage(h) {
			return nil
		}
	}
	return fmt.Errorf("%w: range %s does not fit %s", ErrConflictingAttachment, r, h)
}

func (p *pending) commit() {
	g := p.g
	g.Nodes = append(g.Nodes, p.node)
	g.Inputs = append(g.Inputs, p.inputs...)
	g.Transients = append(g.Transients, p.transients...)
	for out, ins := range p.consumers {
		g.Outputs[out].Inputs = append(g.Outputs[out].Inputs, ins...)
	}
	for _, out := range p.outputs {
		g.registry[out.Name] = out.Index
		g.Outputs = append(g.Outputs, out)
	}
	g.passes[p.node.Name] = p.node.ID
}
