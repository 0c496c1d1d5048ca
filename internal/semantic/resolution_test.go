package semantic

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/vector"
)

func TestAtResolutionSharesStorage(t *testing.T) {
	e := vector.Embedding{Full: []float32{1, 2, 3, 4}, MatryoshkaDims: []int{2, 4}}
	prefix := AtResolution(e, 2)
	require.Len(t, prefix, 2)
	prefix[0] = 9
	assert.Equal(t, float32(9), e.Full[0], "prefixes share the full vector's storage")
}

func TestSearchAtResolutionMatchesPrefixOnly(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	idx := New(Config{Dimension: 16, Rand: rng}, nil)

	// Two vectors identical in the first 8 elements, divergent after.
	a := make([]float32, 16)
	b := make([]float32, 16)
	for i := 0; i < 8; i++ {
		a[i], b[i] = 1, 1
	}
	for i := 8; i < 16; i++ {
		a[i], b[i] = 1, -1
	}
	require.NoError(t, idx.Insert(graph.NodeID(1), a))
	require.NoError(t, idx.Insert(graph.NodeID(2), b))

	query := make([]float32, 16)
	for i := range query {
		query[i] = 1
	}

	// At full resolution the query prefers a.
	full := idx.Search(query, 2, 16)
	require.Len(t, full, 2)
	assert.Equal(t, graph.NodeID(1), full[0].NodeID)

	// At resolution 8 the two are indistinguishable: both distances are 0.
	coarse := idx.SearchAtResolution(query, 2, 16, 8)
	require.Len(t, coarse, 2)
	assert.InDelta(t, coarse[0].Distance, coarse[1].Distance, 1e-6)
}
