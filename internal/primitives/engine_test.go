package primitives

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nibzard/agrama/internal/agramaerr"
	"github.com/nibzard/agrama/internal/content"
	"github.com/nibzard/agrama/internal/embedder"
	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/lexical"
	"github.com/nibzard/agrama/internal/opcache"
	"github.com/nibzard/agrama/internal/ranker"
	"github.com/nibzard/agrama/internal/semantic"
	"github.com/nibzard/agrama/internal/session"
	"github.com/nibzard/agrama/internal/transform"
	"github.com/nibzard/agrama/internal/traversal"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	emb := embedder.NewFallback(64)
	contentStore := content.New("", 0)
	graphStore := graph.New()
	sem := semantic.New(semantic.Config{Dimension: 64}, nil)
	lex := lexical.New(lexical.Config{})
	trav := traversal.New(graphStore)
	caches, err := opcache.NewCaches(64, 64, 64)
	require.NoError(t, err)
	registry := transform.NewRegistry()
	transform.RegisterBuiltins(registry)

	return New(Deps{
		Content:    contentStore,
		Graph:      graphStore,
		Semantic:   sem,
		Lexical:    lex,
		Traversal:  trav,
		Ranker:     ranker.New(lex, sem, trav),
		Embedder:   emb,
		Transforms: registry,
		Caches:     caches,
		Sessions:   session.NewRegistry(0),
	}, 0, 8)
}

func TestStoreRetrieveRoundTrip(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	_, err := e.Invoke(ctx, "store", map[string]any{"key": "doc/a.txt", "value": "hello"}, "agent-1")
	require.NoError(t, err)
	_, err = e.Invoke(ctx, "store", map[string]any{"key": "doc/a.txt", "value": "hello world"}, "agent-1")
	require.NoError(t, err)

	out, err := e.Invoke(ctx, "retrieve", map[string]any{"key": "doc/a.txt", "include_history": true}, "agent-1")
	require.NoError(t, err)
	res := out.(RetrieveResult)
	assert.Equal(t, "hello world", res.Value)
	require.Len(t, res.History, 2)
	assert.Equal(t, "hello world", res.History[0].Value)
	assert.Equal(t, "hello", res.History[1].Value)
}

func TestStoreIndexesLongText(t *testing.T) {
	e := newEngine(t)
	long := strings.Repeat("authentication token handler logic ", 3)
	out, err := e.Invoke(context.Background(), "store", map[string]any{"key": "doc/auth.txt", "value": long}, "a")
	require.NoError(t, err)
	assert.True(t, out.(StoreResult).Indexed)

	hits, err := e.Invoke(context.Background(), "search", map[string]any{"mode": "lexical", "query": "authentication"}, "a")
	require.NoError(t, err)
	results := hits.([]SearchResult)
	require.Len(t, results, 1)
	assert.Equal(t, "doc/auth.txt", results[0].Name)
	assert.NotEmpty(t, results[0].Snippet)
}

func TestStoreShortTextNotIndexed(t *testing.T) {
	e := newEngine(t)
	out, err := e.Invoke(context.Background(), "store", map[string]any{"key": "k", "value": "short"}, "a")
	require.NoError(t, err)
	assert.False(t, out.(StoreResult).Indexed)
}

func TestRetrieveMissingKeyIsNotFound(t *testing.T) {
	e := newEngine(t)
	_, err := e.Invoke(context.Background(), "retrieve", map[string]any{"key": "nope"}, "a")
	require.Error(t, err)
	assert.True(t, agramaerr.Is(err, agramaerr.NotFound))
}

func TestLinkCreatesEndpointsAndEdge(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	out, err := e.Invoke(ctx, "link", map[string]any{
		"from": "file:src/a", "to": "file:src/b", "relation": "depends_on",
		"metadata": map[string]any{"weight": 0.8},
	}, "a")
	require.NoError(t, err)
	assert.True(t, out.(LinkResult).Created)

	_, err = e.Invoke(ctx, "link", map[string]any{
		"from": "file:src/b", "to": "file:src/c", "relation": "depends_on",
	}, "a")
	require.NoError(t, err)

	hits, err := e.Invoke(ctx, "search", map[string]any{
		"mode": "graph", "root": "file:src/a", "direction": "forward", "max_depth": 2,
	}, "a")
	require.NoError(t, err)
	results := hits.([]SearchResult)
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	assert.ElementsMatch(t, []string{"file:src/a", "file:src/b", "file:src/c"}, names)
}

func TestLinkSameEdgeTwiceReportsUpdated(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	args := map[string]any{"from": "a", "to": "b", "relation": "references"}
	out, err := e.Invoke(ctx, "link", args, "a")
	require.NoError(t, err)
	assert.True(t, out.(LinkResult).Created)
	out, err = e.Invoke(ctx, "link", args, "a")
	require.NoError(t, err)
	assert.False(t, out.(LinkResult).Created)
}

func TestSearchZeroKReturnsEmptyList(t *testing.T) {
	e := newEngine(t)
	out, err := e.Invoke(context.Background(), "search", map[string]any{"mode": "lexical", "query": "x", "k": 0}, "a")
	require.NoError(t, err)
	assert.Empty(t, out.([]SearchResult))
}

func TestSemanticSearchEmptyIndexReturnsEmptyList(t *testing.T) {
	e := newEngine(t)
	out, err := e.Invoke(context.Background(), "search", map[string]any{"mode": "semantic", "query": "anything"}, "a")
	require.NoError(t, err)
	assert.Empty(t, out.([]SearchResult))
}

func TestSearchUnknownModeFailsValidation(t *testing.T) {
	e := newEngine(t)
	_, err := e.Invoke(context.Background(), "search", map[string]any{"mode": "psychic", "query": "x"}, "a")
	require.Error(t, err)
	assert.True(t, agramaerr.Is(err, agramaerr.Validation))
}

func TestTemporalSearchFiltersByRange(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	_, err := e.Invoke(ctx, "store", map[string]any{"key": "old.txt", "value": "old"}, "a")
	require.NoError(t, err)

	cut := e.now()

	_, err = e.Invoke(ctx, "store", map[string]any{"key": "new.txt", "value": "new"}, "a")
	require.NoError(t, err)

	out, err := e.Invoke(ctx, "search", map[string]any{"mode": "temporal", "since": float64(cut)}, "a")
	require.NoError(t, err)
	results := out.([]SearchResult)
	require.Len(t, results, 1)
	assert.Equal(t, "new.txt", results[0].Name)
}

func TestTransformDispatchAndUnknownOp(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	out, err := e.Invoke(ctx, "transform", map[string]any{
		"op": "compress_text", "data": "a  b\n\n\n\nc",
	}, "a")
	require.NoError(t, err)
	res := out.(TransformResult)
	assert.Equal(t, "a b\n\nc", res.Output.(transform.CompressResult).Output)

	_, err = e.Invoke(ctx, "transform", map[string]any{"op": "nope", "data": "x"}, "a")
	require.Error(t, err)
	assert.True(t, agramaerr.Is(err, agramaerr.Validation))
}

func TestTransformResultsAreCached(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	args := map[string]any{"op": "generate_summary", "data": strings.Repeat("A sentence about storage engines. ", 20)}

	_, err := e.Invoke(ctx, "transform", args, "a")
	require.NoError(t, err)
	_, err = e.Invoke(ctx, "transform", args, "a")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, e.deps.Caches.Transforms.Stats().Hits, int64(1))
}

func TestUnknownPrimitiveFailsButStillLogsAndCounts(t *testing.T) {
	e := newEngine(t)
	_, err := e.Invoke(context.Background(), "explode", nil, "agent-x")
	require.Error(t, err)
	assert.True(t, agramaerr.Is(err, agramaerr.Validation))

	assert.Equal(t, 1, e.Log().Len())
	entry := e.Log().Recent(1)[0]
	assert.False(t, entry.Success)
	assert.Equal(t, "explode", entry.Primitive)

	agent, ok := e.deps.Sessions.Get("agent-x")
	require.True(t, ok)
	assert.Equal(t, int64(1), agent.Operations())
}

func TestSessionCounterIncrementsPerInvocation(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, _ = e.Invoke(ctx, "retrieve", map[string]any{"key": "missing"}, "agent-1")
	}
	agent, ok := e.deps.Sessions.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, int64(3), agent.Operations())
	assert.Len(t, e.deps.Sessions.Since(0), 3)
}

func TestArenasAllReleasedAfterInvocations(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, _ = e.Invoke(ctx, "store", map[string]any{"key": "k.txt", "value": "some value"}, "a")
		_, _ = e.Invoke(ctx, "search", map[string]any{"mode": "lexical", "query": "value"}, "a")
	}
	assert.Equal(t, int64(0), e.arenas.Metrics.Snapshot().InUse)
}

func TestDeadlineSurfacesAsCancelled(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Invoke(ctx, "store", map[string]any{"key": "k", "value": "v"}, "a")
	require.Error(t, err)
	assert.True(t, agramaerr.Is(err, agramaerr.Cancelled))
}

func TestOperationLogIsTotallyOrdered(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	_, _ = e.Invoke(ctx, "store", map[string]any{"key": "a", "value": "1"}, "a")
	_, _ = e.Invoke(ctx, "store", map[string]any{"key": "b", "value": "2"}, "a")

	recent := e.Log().Recent(0)
	require.Len(t, recent, 2)
	assert.Greater(t, recent[0].Seq, recent[1].Seq)
}
