package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/dag"
	"github.com/vk/framegraph/internal/testutil"
)

func graph(t *testing.T, n int, edges [][2]int) *dag.Graph[int] {
	t.Helper()
	g := dag.New[int]()
	for i := 0; i < n; i++ {
		g.AddNode(i)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestWaves(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		edges [][2]int
		want  [][]int
	}{
		{
			name: "independent nodes form one wave",
			n:    3,
			want: [][]int{{0, 1, 2}},
		},
		{
			name:  "chain",
			n:     3,
			edges: [][2]int{{0, 1}, {1, 2}},
			want:  [][]int{{0}, {1}, {2}},
		},
		{
			name:  "diamond",
			n:     4,
			edges: [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}},
			want:  [][]int{{0}, {1, 2}, {3}},
		},
		{
			name:  "waves keep insertion order",
			n:     5,
			edges: [][2]int{{4, 0}, {3, 1}, {4, 2}},
			want:  [][]int{{3, 4}, {0, 1, 2}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.Context(t)
			waves, err := Waves(ctx, graph(t, tc.n, tc.edges))
			require.NoError(t, err)
			assert.Equal(t, tc.want, waves)
		})
	}
}

func TestWaves_RespectsEveryEdge(t *testing.T) {
	ctx, _ := testutil.Context(t)
	edges := [][2]int{{0, 3}, {1, 3}, {3, 5}, {2, 4}, {4, 5}, {0, 6}, {6, 7}, {5, 7}}
	waves, err := Waves(ctx, graph(t, 8, edges))
	require.NoError(t, err)

	pos := make(map[int]int)
	for i, id := range Order(waves) {
		pos[id] = i
	}
	require.Len(t, pos, 8)
	for _, e := range edges {
		assert.Less(t, pos[e[0]], pos[e[1]], "%d must run before %d", e[0], e[1])
	}
}

func TestWaves_Cycle(t *testing.T) {
	ctx, _ := testutil.Context(t)
	_, err := Waves(ctx, graph(t, 3, [][2]int{{0, 1}, {1, 2}, {2, 1}}))
	assert.ErrorIs(t, err, dag.ErrCycle)
	assert.ErrorContains(t, err, "2 of 3 nodes")
}
