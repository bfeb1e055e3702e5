package dag

import "sync"

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe. Nodes and edges are kept
// in insertion order so every traversal is deterministic.
type Graph[K comparable] struct {
	// mutex protects the nodes during concurrent access.
	mutex sync.RWMutex
	// nodes stores all nodes in the graph, keyed by their unique ID.
	nodes map[K]*node[K]
	// order lists node IDs in the order they were added.
	order []K
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API, not by direct
// struct manipulation.
type node[K comparable] struct {
	// id is the unique identifier for the node.
	id K
	// deps holds the nodes that this node depends on (predecessors).
	deps []*node[K]
	// dependents holds the nodes that depend on this node (successors).
	dependents []*node[K]
}

func (n *node[K]) hasDep(id K) bool {
	for _, d := range n.deps {
		if d.id == id {
			return true
		}
	}
	return false
}
