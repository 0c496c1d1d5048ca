package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibzard/agrama/internal/graph"
)

func tok(s string) []string {
	return SimpleTokenizer{}.Tokenize([]byte(s))
}

func TestSearchRanksTermMatchesFirst(t *testing.T) {
	idx := New(Config{})
	idx.IndexDoc(1, tok("authentication token handler"))
	idx.IndexDoc(2, tok("network retry backoff"))
	idx.IndexDoc(3, tok("authentication session manager"))

	results := idx.Search(tok("authentication"), 10)
	require.Len(t, results, 2)
	assert.ElementsMatch(t, []graph.NodeID{1, 3}, []graph.NodeID{results[0].Doc, results[1].Doc})
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
	}
}

func TestSearchTiesBreakByAscendingDocID(t *testing.T) {
	idx := New(Config{})
	idx.IndexDoc(9, tok("alpha beta"))
	idx.IndexDoc(4, tok("alpha beta"))

	results := idx.Search(tok("alpha"), 10)
	require.Len(t, results, 2)
	assert.Equal(t, graph.NodeID(4), results[0].Doc)
	assert.Equal(t, graph.NodeID(9), results[1].Doc)
}

func TestSearchZeroKReturnsEmpty(t *testing.T) {
	idx := New(Config{})
	idx.IndexDoc(1, tok("alpha"))
	assert.Empty(t, idx.Search(tok("alpha"), 0))
}

func TestSearchEmptyIndexReturnsEmpty(t *testing.T) {
	idx := New(Config{})
	assert.Empty(t, idx.Search(tok("anything"), 5))
}

func TestRemoveDropsDocument(t *testing.T) {
	idx := New(Config{})
	idx.IndexDoc(1, tok("alpha"))
	idx.IndexDoc(2, tok("alpha"))
	idx.Remove(1)

	results := idx.Search(tok("alpha"), 10)
	require.Len(t, results, 1)
	assert.Equal(t, graph.NodeID(2), results[0].Doc)
	assert.Equal(t, 1, idx.DocCount())
}

func TestReindexReplacesOldPostings(t *testing.T) {
	idx := New(Config{})
	idx.IndexDoc(1, tok("alpha alpha alpha"))
	idx.IndexDoc(1, tok("beta"))

	assert.Empty(t, idx.Search(tok("alpha"), 10))
	require.Len(t, idx.Search(tok("beta"), 10), 1)
	assert.Equal(t, 1, idx.DocCount())
}

func TestPrefixExpansionMatchesTruncatedQuery(t *testing.T) {
	idx := New(Config{})
	idx.IndexDoc(1, tok("authentication token handler"))
	idx.IndexDoc(2, tok("network retry backoff"))

	results := idx.Search(tok("auth"), 10)
	require.Len(t, results, 1)
	assert.Equal(t, graph.NodeID(1), results[0].Doc)

	// Exact matches are not diluted by prefix expansion.
	results = idx.Search(tok("network"), 10)
	require.Len(t, results, 1)
	assert.Equal(t, graph.NodeID(2), results[0].Doc)

	// Tokens shorter than the expansion threshold never fuzzy-match.
	assert.Empty(t, idx.Search(tok("au"), 10))
}

func TestLengthNormalizationPrefersShorterDoc(t *testing.T) {
	idx := New(Config{})
	idx.IndexDoc(1, tok("cache"))
	idx.IndexDoc(2, tok("cache plus many other unrelated trailing words here now"))

	results := idx.Search(tok("cache"), 2)
	require.Len(t, results, 2)
	assert.Equal(t, graph.NodeID(1), results[0].Doc)
}
