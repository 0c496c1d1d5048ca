package ranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/lexical"
	"github.com/nibzard/agrama/internal/semantic"
	"github.com/nibzard/agrama/internal/traversal"
)

func newFixture(t *testing.T) (*Ranker, *graph.Store) {
	t.Helper()
	lex := lexical.New(lexical.Config{})
	sem := semantic.New(semantic.Config{Dimension: 4}, nil)
	g := graph.New()
	return New(lex, sem, traversal.New(g)), g
}

func tok(s string) []string {
	return lexical.SimpleTokenizer{}.Tokenize([]byte(s))
}

func TestHybridRejectsBadWeights(t *testing.T) {
	r, _ := newFixture(t)
	_, err := r.HybridSearch(context.Background(), Request{K: 1, Alpha: -0.1})
	assert.Error(t, err)
	_, err = r.HybridSearch(context.Background(), Request{K: 1, Alpha: 0.6, Beta: 0.6})
	assert.Error(t, err)
}

func TestHybridZeroKReturnsEmpty(t *testing.T) {
	r, _ := newFixture(t)
	results, err := r.HybridSearch(context.Background(), Request{K: 0, Alpha: 1})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHybridLexicalOnly(t *testing.T) {
	r, _ := newFixture(t)
	r.lex.IndexDoc(1, tok("authentication token handler"))
	r.lex.IndexDoc(2, tok("network retry backoff"))

	results, err := r.HybridSearch(context.Background(), Request{
		QueryTokens: tok("authentication"),
		K:           2,
		Alpha:       1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, graph.NodeID(1), results[0].Node)
	assert.Equal(t, 1.0, results[0].Lexical)
	assert.Equal(t, 0.0, results[0].Semantic)
}

func TestHybridSemanticOnly(t *testing.T) {
	r, _ := newFixture(t)
	require.NoError(t, r.sem.Insert(1, []float32{1, 0, 0, 0}))
	require.NoError(t, r.sem.Insert(2, []float32{0, 1, 0, 0}))

	results, err := r.HybridSearch(context.Background(), Request{
		Embedding: []float32{1, 0, 0, 0},
		K:         1,
		Beta:      1,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, graph.NodeID(1), results[0].Node)
}

func TestHybridGraphComponentBoostsNeighbors(t *testing.T) {
	r, g := newFixture(t)
	for id := graph.NodeID(1); id <= 3; id++ {
		g.UpsertNode(graph.Node{ID: id, Kind: graph.KindFile, Name: "n"})
	}
	require.NoError(t, g.AddEdge(1, 3, graph.RelationSimilarTo, 0.9, nil))

	r.lex.IndexDoc(2, tok("shared term"))
	r.lex.IndexDoc(3, tok("shared term"))

	ctxNode := graph.NodeID(1)
	results, err := r.HybridSearch(context.Background(), Request{
		QueryTokens: tok("shared"),
		ContextNode: &ctxNode,
		K:           2,
		Alpha:       0.5,
		Gamma:       0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// 2 and 3 tie on lexical; 3's graph proximity to the context node
	// breaks the tie.
	assert.Equal(t, graph.NodeID(3), results[0].Node)
	assert.Greater(t, results[0].Graph, 0.0)
}

func TestHybridFusedTieBreaksByNodeID(t *testing.T) {
	r, _ := newFixture(t)
	r.lex.IndexDoc(7, tok("alpha"))
	r.lex.IndexDoc(3, tok("alpha"))

	results, err := r.HybridSearch(context.Background(), Request{
		QueryTokens: tok("alpha"),
		K:           2,
		Alpha:       1,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, graph.NodeID(3), results[0].Node)
}
