// Package ranker fuses the lexical, semantic, and graph-proximity signals
// into one ranked result list. The three sub-queries run concurrently; each
// score list is min-max normalized over its own top results before the
// weighted sum, so no single signal's scale dominates the fusion.
package ranker

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nibzard/agrama/internal/agramaerr"
	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/lexical"
	"github.com/nibzard/agrama/internal/semantic"
	"github.com/nibzard/agrama/internal/traversal"
)

// Request is one hybrid search. Alpha, Beta, Gamma weight the lexical,
// semantic, and graph components; each must be nonnegative and their sum at
// most 1. Absent inputs (no embedding, no context node) zero out the
// corresponding component rather than failing the search.
type Request struct {
	QueryTokens []string
	Embedding   []float32
	ContextNode *graph.NodeID
	K           int

	Alpha, Beta, Gamma float64

	// Ef widens the HNSW candidate list; 0 uses max(K, default).
	Ef int

	// GraphHops bounds the proximity expansion from ContextNode; 0 uses
	// defaultGraphHops.
	GraphHops int
}

const (
	defaultEf        = 64
	defaultGraphHops = 3
	// subQueryWidth oversamples each sub-query relative to K so the fusion
	// sees candidates that rank highly in one signal but not another.
	subQueryWidth = 4
)

// Result carries a fused hit with its per-source component scores, already
// normalized to [0,1].
type Result struct {
	Node     graph.NodeID
	Score    float64
	Lexical  float64
	Semantic float64
	Graph    float64
}

// Ranker runs hybrid searches against the three indices.
type Ranker struct {
	lex  *lexical.Index
	sem  *semantic.Index
	trav *traversal.Engine
}

// New wires a ranker over the given indices.
func New(lex *lexical.Index, sem *semantic.Index, trav *traversal.Engine) *Ranker {
	return &Ranker{lex: lex, sem: sem, trav: trav}
}

// HybridSearch implements the triple fusion: issue the sub-queries
// concurrently, normalize each score list, take the weighted sum per
// candidate with absent components as 0, and return the top K. Ties break by
// higher lexical score, then higher semantic score, then lower NodeID.
func (r *Ranker) HybridSearch(ctx context.Context, req Request) ([]Result, error) {
	const op = "ranker.HybridSearch"
	if req.Alpha < 0 || req.Beta < 0 || req.Gamma < 0 {
		return nil, agramaerr.New(agramaerr.Validation, op, "weights must be nonnegative")
	}
	if req.Alpha+req.Beta+req.Gamma > 1+1e-9 {
		return nil, agramaerr.New(agramaerr.Validation, op, "weights must sum to at most 1")
	}
	if req.K <= 0 {
		return nil, nil
	}

	width := req.K * subQueryWidth
	ef := req.Ef
	if ef < req.K {
		ef = max(req.K, defaultEf)
	}
	hops := req.GraphHops
	if hops <= 0 {
		hops = defaultGraphHops
	}

	var lexScores, semScores, graphScores map[graph.NodeID]float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(req.QueryTokens) == 0 {
			return nil
		}
		hits := r.lex.Search(req.QueryTokens, width)
		scores := make(map[graph.NodeID]float64, len(hits))
		for _, h := range hits {
			scores[h.Doc] = h.Score
		}
		lexScores = normalize(scores)
		return nil
	})
	g.Go(func() error {
		if len(req.Embedding) == 0 {
			return nil
		}
		hits := r.sem.Search(req.Embedding, width, ef)
		scores := make(map[graph.NodeID]float64, len(hits))
		for _, h := range hits {
			scores[h.NodeID] = float64(1 - h.Distance)
		}
		semScores = normalize(scores)
		return nil
	})
	g.Go(func() error {
		if req.ContextNode == nil {
			return nil
		}
		dist, err := r.trav.ShortestPaths(gctx, []graph.NodeID{*req.ContextNode}, traversal.Options{
			Direction:  traversal.Bidirectional,
			Bound:      float64(hops),
			UnitWeight: true,
		})
		if err != nil {
			return err
		}
		scores := make(map[graph.NodeID]float64, len(dist))
		for id, d := range dist {
			if id == *req.ContextNode {
				continue
			}
			scores[id] = 1 / (1 + d)
		}
		graphScores = normalize(scores)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make(map[graph.NodeID]*Result)
	add := func(scores map[graph.NodeID]float64, assign func(*Result, float64)) {
		for id, s := range scores {
			c, ok := candidates[id]
			if !ok {
				c = &Result{Node: id}
				candidates[id] = c
			}
			assign(c, s)
		}
	}
	add(lexScores, func(c *Result, s float64) { c.Lexical = s })
	add(semScores, func(c *Result, s float64) { c.Semantic = s })
	add(graphScores, func(c *Result, s float64) { c.Graph = s })

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		c.Score = req.Alpha*c.Lexical + req.Beta*c.Semantic + req.Gamma*c.Graph
		results = append(results, *c)
	}
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Lexical != b.Lexical {
			return a.Lexical > b.Lexical
		}
		if a.Semantic != b.Semantic {
			return a.Semantic > b.Semantic
		}
		return a.Node < b.Node
	})
	if len(results) > req.K {
		results = results[:req.K]
	}
	return results, nil
}

// normalize min-max scales scores to [0,1] over the list's own range. A
// single-element (or constant) list maps to 1, so the signal still
// contributes for its only candidate.
func normalize(scores map[graph.NodeID]float64) map[graph.NodeID]float64 {
	if len(scores) == 0 {
		return scores
	}
	lo, hi := 0.0, 0.0
	first := true
	for _, s := range scores {
		if first {
			lo, hi = s, s
			first = false
			continue
		}
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make(map[graph.NodeID]float64, len(scores))
	for id, s := range scores {
		if hi == lo {
			out[id] = 1
		} else {
			out[id] = (s - lo) / (hi - lo)
		}
	}
	return out
}
