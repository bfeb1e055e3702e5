package scheduler

import (
	"context"
	"fmt"
	"slices"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/dag"
)

// Source is the dependency graph being scheduled. *dag.Graph implements it.
type Source[K comparable] interface {
	// Nodes returns every node in insertion order.
	Nodes() []K
	// Dependents returns the nodes that depend on id.
	Dependents(id K) ([]K, error)
	// InDegrees returns the number of dependencies of every node.
	InDegrees() map[K]int
}

// Waves sorts the nodes of src into dependency waves. A node appears in a
// later wave than every node it depends on. The returned error wraps
// dag.ErrCycle when some nodes can never become ready.
func Waves[K comparable](ctx context.Context, src Source[K]) ([][]K, error) {
	logger := ctxlog.FromContext(ctx)

	nodes := src.Nodes()
	position := make(map[K]int, len(nodes))
	for i, id := range nodes {
		position[id] = i
	}
	inDegree := src.InDegrees()

	var current []K
	for _, id := range nodes {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	var waves [][]K
	scheduled := 0
	for len(current) > 0 {
		waves = append(waves, current)
		scheduled += len(current)
		logger.Debug("Scheduler: Formed wave.", "wave", len(waves)-1, "size", len(current))

		var next []K
		for _, id := range current {
			dependents, err := src.Dependents(id)
			if err != nil {
				return nil, err
			}
			for _, d := range dependents {
				inDegree[d]--
				if inDegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		slices.SortFunc(next, func(a, b K) int { return position[a] - position[b] })
		current = next
	}

	if scheduled != len(nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes could not be scheduled", dag.ErrCycle, len(nodes)-scheduled, len(nodes))
	}
	return waves, nil
}

// Order flattens waves into one topological order.
func Order[K comparable](waves [][]K) []K {
	var order []K
	for _, w := range waves {
		order = append(order, w...)
	}
	return order
}
