package traversal

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibzard/agrama/internal/graph"
)

func buildLine(t *testing.T, g *graph.Store, ids ...graph.NodeID) {
	t.Helper()
	for _, id := range ids {
		g.UpsertNode(graph.Node{ID: id, Kind: graph.KindFile, Name: fmt.Sprintf("n%d", id)})
	}
	for i := 0; i+1 < len(ids); i++ {
		require.NoError(t, g.AddEdge(ids[i], ids[i+1], graph.RelationDependsOn, 1, nil))
	}
}

func TestForwardTraversalWithinBound(t *testing.T) {
	g := graph.New()
	buildLine(t, g, 1, 2, 3, 4)

	dist, err := New(g).ShortestPaths(context.Background(), []graph.NodeID{1}, Options{Direction: Forward, Bound: 2})
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeID]float64{1: 0, 2: 1, 3: 2}, dist)
}

func TestReverseTraversalFollowsIncomingEdges(t *testing.T) {
	g := graph.New()
	buildLine(t, g, 1, 2, 3)

	dist, err := New(g).ShortestPaths(context.Background(), []graph.NodeID{3}, Options{Direction: Reverse, Bound: 10})
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeID]float64{3: 0, 2: 1, 1: 2}, dist)
}

func TestZeroBoundReturnsOnlySources(t *testing.T) {
	g := graph.New()
	buildLine(t, g, 1, 2, 3)

	dist, err := New(g).ShortestPaths(context.Background(), []graph.NodeID{1, 2}, Options{Direction: Forward, Bound: 0})
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeID]float64{1: 0, 2: 0}, dist)
}

func TestUnreachableNodesOmitted(t *testing.T) {
	g := graph.New()
	buildLine(t, g, 1, 2)
	g.UpsertNode(graph.Node{ID: 99, Kind: graph.KindFile, Name: "island"})

	dist, err := New(g).ShortestPaths(context.Background(), []graph.NodeID{1}, Options{Direction: Forward, Bound: 100})
	require.NoError(t, err)
	_, ok := dist[99]
	assert.False(t, ok)
}

func TestUnknownSourcesIgnored(t *testing.T) {
	g := graph.New()
	buildLine(t, g, 1, 2)

	dist, err := New(g).ShortestPaths(context.Background(), []graph.NodeID{42}, Options{Direction: Forward, Bound: 5})
	require.NoError(t, err)
	assert.Empty(t, dist)
}

func TestUnitWeightTreatsBoundAsHopLimit(t *testing.T) {
	g := graph.New()
	for _, id := range []graph.NodeID{1, 2, 3} {
		g.UpsertNode(graph.Node{ID: id, Kind: graph.KindFile, Name: fmt.Sprintf("n%d", id)})
	}
	require.NoError(t, g.AddEdge(1, 2, graph.RelationDependsOn, 0.8, nil))
	require.NoError(t, g.AddEdge(2, 3, graph.RelationDependsOn, 0, nil))

	dist, err := New(g).ShortestPaths(context.Background(), []graph.NodeID{1}, Options{Direction: Forward, Bound: 2, UnitWeight: true})
	require.NoError(t, err)
	assert.Equal(t, map[graph.NodeID]float64{1: 0, 2: 1, 3: 2}, dist)
}

func TestDeriveParams(t *testing.T) {
	p := deriveParams(2000)
	assert.GreaterOrEqual(t, p.k, 1)
	assert.GreaterOrEqual(t, p.t, p.k)
	assert.GreaterOrEqual(t, p.depth, 1)

	p = deriveParams(1)
	assert.Equal(t, params{k: 1, t: 1, depth: 1}, p)
}

// bruteDijkstra is an independent reference implementation used to check
// the engine's answers, deliberately naive: repeated full relaxation until a
// fixed point.
func bruteDijkstra(g *graph.Store, sources []graph.NodeID, bound float64) map[graph.NodeID]float64 {
	dist := make(map[graph.NodeID]float64)
	for _, s := range sources {
		if _, ok := g.GetNode(s); ok {
			dist[s] = 0
		}
	}
	changed := true
	for changed {
		changed = false
		for id, d := range dist {
			for _, e := range g.Neighbors(id, graph.Out, nil) {
				nd := d + e.Weight
				if nd > bound {
					continue
				}
				if cur, ok := dist[e.Dst]; !ok || nd < cur {
					dist[e.Dst] = nd
					changed = true
				}
			}
		}
	}
	return dist
}

func TestBMSSPAgreesWithDijkstraOnRandomSparseGraph(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	g := graph.New()

	const n = 2000
	const m = 6000
	for i := 1; i <= n; i++ {
		g.UpsertNode(graph.Node{ID: graph.NodeID(i), Kind: graph.KindFile, Name: fmt.Sprintf("n%d", i)})
	}
	for i := 0; i < m; i++ {
		src := graph.NodeID(rng.Intn(n) + 1)
		dst := graph.NodeID(rng.Intn(n) + 1)
		if src == dst {
			continue
		}
		w := float64(rng.Intn(11))
		require.NoError(t, g.AddEdge(src, dst, graph.RelationDependsOn, w, nil))
	}

	eng := New(g)
	for trial := 0; trial < 100; trial++ {
		sources := []graph.NodeID{
			graph.NodeID(rng.Intn(n) + 1),
			graph.NodeID(rng.Intn(n) + 1),
			graph.NodeID(rng.Intn(n) + 1),
		}
		got, err := eng.ShortestPaths(context.Background(), sources, Options{Direction: Forward, Bound: 50})
		require.NoError(t, err)
		want := bruteDijkstra(g, sources, 50)
		require.Equal(t, want, got, "trial %d sources %v", trial, sources)
	}
}

func TestCancelledContextReturnsCancelled(t *testing.T) {
	g := graph.New()
	buildLine(t, g, 1, 2, 3, 4, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(g).ShortestPaths(ctx, []graph.NodeID{1}, Options{Direction: Forward, Bound: 10})
	require.Error(t, err)
}
