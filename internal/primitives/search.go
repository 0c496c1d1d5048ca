package primitives

import (
	"context"
	"math"
	"sort"

	"github.com/nibzard/agrama/internal/agramaerr"
	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/opcache"
	"github.com/nibzard/agrama/internal/ranker"
	"github.com/nibzard/agrama/internal/traversal"
)

// SearchResult is one hit from the search primitive.
type SearchResult struct {
	ID      uint64  `json:"id"`
	Name    string  `json:"name,omitempty"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

const (
	defaultSearchK = 10
	snippetLen     = 120
)

func (e *Engine) handleSearch(ctx context.Context, _ *Context, args map[string]any) (any, error) {
	const op = "primitives.search"
	mode := optString(args, "mode", "hybrid")
	k := optInt(args, "k", defaultSearchK)
	if k < 0 {
		return nil, agramaerr.New(agramaerr.Validation, op, "k must be nonnegative")
	}
	if k == 0 {
		return []SearchResult{}, nil
	}

	cacheKey := opcache.KeyFor("search", args)
	if v, ok := e.deps.Caches.Searches.Get(cacheKey); ok {
		return v.([]SearchResult), nil
	}

	var results []SearchResult
	var err error
	switch mode {
	case "semantic":
		results, err = e.searchSemantic(ctx, args, k)
	case "lexical":
		results, err = e.searchLexical(ctx, args, k)
	case "graph":
		results, err = e.searchGraph(ctx, args, k)
	case "temporal":
		results, err = e.searchTemporal(ctx, args, k)
	case "hybrid":
		results, err = e.searchHybrid(ctx, args, k)
	default:
		return nil, agramaerr.New(agramaerr.Validation, op, "unknown search mode: "+mode)
	}
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []SearchResult{}
	}
	e.deps.Caches.Searches.Put(cacheKey, results)
	return results, nil
}

func (e *Engine) searchSemantic(ctx context.Context, args map[string]any, k int) ([]SearchResult, error) {
	const op = "primitives.search.semantic"
	query, err := requireString(args, "query", op)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedCached(ctx, "", query)
	if err != nil {
		return nil, err
	}
	if err := checkpoint(ctx, op); err != nil {
		return nil, err
	}
	ef := optInt(args, "ef", 0)
	resolution := optInt(args, "resolution", 0)
	hits := e.deps.Semantic.SearchAtResolution(vec, k, ef, resolution)
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, e.annotate(SearchResult{ID: uint64(h.NodeID), Score: float64(1 - h.Distance)}))
	}
	return results, nil
}

func (e *Engine) searchLexical(ctx context.Context, args map[string]any, k int) ([]SearchResult, error) {
	const op = "primitives.search.lexical"
	query, err := requireString(args, "query", op)
	if err != nil {
		return nil, err
	}
	if err := checkpoint(ctx, op); err != nil {
		return nil, err
	}
	hits := e.deps.Lexical.Search(e.deps.Tokenizer.Tokenize([]byte(query)), k)
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, e.annotate(SearchResult{ID: uint64(h.Doc), Score: h.Score}))
	}
	return results, nil
}

func (e *Engine) searchGraph(ctx context.Context, args map[string]any, k int) ([]SearchResult, error) {
	const op = "primitives.search.graph"
	root, err := requireString(args, "root", op)
	if err != nil {
		return nil, err
	}
	maxDepth := optInt(args, "max_depth", 3)
	direction := traversal.Forward
	switch optString(args, "direction", "forward") {
	case "forward":
	case "reverse":
		direction = traversal.Reverse
	case "both":
		direction = traversal.Bidirectional
	default:
		return nil, agramaerr.New(agramaerr.Validation, op, "unknown direction")
	}

	dist, err := e.deps.Traversal.ShortestPaths(ctx, []graph.NodeID{graph.NodeIDFromName(root)}, traversal.Options{
		Direction:  direction,
		Bound:      float64(maxDepth),
		UnitWeight: true,
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(dist))
	for id, d := range dist {
		results = append(results, e.annotate(SearchResult{ID: uint64(id), Score: 1 / (1 + d)}))
	}
	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// searchTemporal filters the content log to versions written inside
// [since, until] (microseconds; zero until means now) and ranks paths by
// their newest matching version.
func (e *Engine) searchTemporal(ctx context.Context, args map[string]any, k int) ([]SearchResult, error) {
	const op = "primitives.search.temporal"
	since := int64(optFloat(args, "since", 0))
	until := int64(optFloat(args, "until", 0))
	if until == 0 {
		until = math.MaxInt64
	}
	if since > until {
		return nil, agramaerr.New(agramaerr.Validation, op, "since must not exceed until")
	}
	if err := checkpoint(ctx, op); err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, path := range e.deps.Content.Paths() {
		history, err := e.deps.Content.History(path.String(), 0)
		if err != nil {
			continue
		}
		for _, v := range history {
			if v.Timestamp >= since && v.Timestamp <= until {
				results = append(results, SearchResult{
					ID:      uint64(graph.NodeIDFromName(path.String())),
					Name:    path.String(),
					Score:   float64(v.Timestamp),
					Snippet: snippet(v.Bytes),
				})
				break // newest matching version wins; history is most-recent-first
			}
		}
	}
	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (e *Engine) searchHybrid(ctx context.Context, args map[string]any, k int) ([]SearchResult, error) {
	const op = "primitives.search.hybrid"
	query, err := requireString(args, "query", op)
	if err != nil {
		return nil, err
	}
	vec, err := e.embedCached(ctx, "", query)
	if err != nil {
		return nil, err
	}
	if err := checkpoint(ctx, op); err != nil {
		return nil, err
	}

	req := ranker.Request{
		QueryTokens: e.deps.Tokenizer.Tokenize([]byte(query)),
		Embedding:   vec,
		K:           k,
		Alpha:       optFloat(args, "alpha", 0.4),
		Beta:        optFloat(args, "beta", 0.4),
		Gamma:       optFloat(args, "gamma", 0.2),
		Ef:          optInt(args, "ef", 0),
	}
	if contextKey := optString(args, "context", ""); contextKey != "" {
		id := graph.NodeIDFromName(contextKey)
		req.ContextNode = &id
	}

	hits, err := e.deps.Ranker.HybridSearch(ctx, req)
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, e.annotate(SearchResult{ID: uint64(h.Node), Score: h.Score}))
	}
	return results, nil
}

// annotate fills in the node's display name and a content snippet when the
// node is known to the graph and names stored content.
func (e *Engine) annotate(r SearchResult) SearchResult {
	node, ok := e.deps.Graph.GetNode(graph.NodeID(r.ID))
	if !ok {
		return r
	}
	r.Name = node.Name
	if bytes, err := e.deps.Content.Get(node.Name); err == nil {
		r.Snippet = snippet(bytes)
	}
	return r
}

func snippet(b []byte) string {
	if len(b) > snippetLen {
		b = b[:snippetLen]
	}
	return string(b)
}

func sortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
