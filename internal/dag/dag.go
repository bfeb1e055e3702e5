package dag

import (
	"errors"
	"fmt"
)

// ErrCycle is returned by DetectCycles.
var ErrCycle = errors.New("cycle detected")

// New creates and returns an initialized, empty Graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		nodes: make(map[K]*node[K]),
	}
}

// AddNode adds a new node with the given ID to the graph. If a node with
// the same ID already exists, the function does nothing.
func (g *Graph[K]) AddNode(id K) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[id]; ok {
		return
	}

	g.nodes[id] = &node[K]{id: id}
	g.order = append(g.order, id)
}

// AddEdge creates a directed edge from the `fromID` node to the `toID` node.
// This signifies that `toID` has a dependency on `fromID`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
// Adding an existing edge again is a no-op.
func (g *Graph[K]) AddEdge(fromID, toID K) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %v -> %v", fromID, fromID)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromNode, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %v", fromID)
	}

	toNode, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %v", toID)
	}

	if toNode.hasDep(fromID) {
		return nil
	}
	toNode.deps = append(toNode.deps, fromNode)
	fromNode.dependents = append(fromNode.dependents, toNode)

	return nil
}

// Nodes returns all node IDs in insertion order.
func (g *Graph[K]) Nodes() []K {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	return append([]K(nil), g.order...)
}

// Dependencies returns the IDs of the nodes the given node depends on, in the
// order the edges were added.
func (g *Graph[K]) Dependencies(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}

	deps := make([]K, 0, len(n.deps))
	for _, dep := range n.deps {
		deps = append(deps, dep.id)
	}
	return deps, nil
}

// Dependents returns the IDs of the nodes that depend on the given node, in
// the order the edges were added.
func (g *Graph[K]) Dependents(id K) ([]K, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node not found: %v", id)
	}

	dependents := make([]K, 0, len(n.dependents))
	for _, dep := range n.dependents {
		dependents = append(dependents, dep.id)
	}
	return dependents, nil
}

// InDegrees returns the number of dependencies of every node.
func (g *Graph[K]) InDegrees() map[K]int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	in := make(map[K]int, len(g.nodes))
	for id, n := range g.nodes {
		in[id] = len(n.deps)
	}
	return in
}

// DetectCycles checks the graph for any cycles. It returns an error wrapping
// ErrCycle if a cycle is found, naming the first node involved in it.
func (g *Graph[K]) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Use classic depth-first search with three sets of nodes:
	// permanent: nodes that have been fully visited and are not part of a cycle.
	// temporary: nodes currently in the recursion stack for the current traversal.
	// unvisited: all other nodes.
	permanent := make(map[K]bool)
	temporary := make(map[K]bool)

	var visit func(n *node[K]) error
	visit = func(n *node[K]) error {
		if permanent[n.id] {
			return nil // Already visited and known to be safe.
		}
		if temporary[n.id] {
			// We've hit a node that's already in our recursion stack, so we have a cycle.
			return fmt.Errorf("%w involving node '%v'", ErrCycle, n.id)
		}

		temporary[n.id] = true

		for _, dependent := range n.dependents {
			if err := visit(dependent); err != nil {
				return err // Propagate the error up.
			}
		}

		// All dependents have been visited, so we can move this node from temporary to permanent.
		delete(temporary, n.id)
		permanent[n.id] = true

		return nil
	}

	// Visit every node in the graph.
	for _, id := range g.order {
		if err := visit(g.nodes[id]); err != nil {
			return err
		}
	}

	return nil
}
