// Package traversal implements the bounded multi-source shortest-path engine
// (BMSSP): a recursive frontier-reduction traversal over the graph store
// with a density-aware fallback to plain Dijkstra on sparse graphs. Results
// are exact shortest-path distances within the bound under nonnegative
// weights regardless of which algorithm the dispatch picks.
package traversal

import (
	"context"
	"math"

	"github.com/nibzard/agrama/internal/agramaerr"
	"github.com/nibzard/agrama/internal/graph"
)

// Direction controls whether outgoing or incoming edges are followed.
type Direction int

const (
	Forward Direction = iota
	Reverse
	Bidirectional
)

// Options configures one traversal.
type Options struct {
	// Direction selects which adjacency to follow. Forward follows
	// outgoing edges.
	Direction Direction

	// Bound prunes the expansion: nodes farther than Bound from every
	// source are omitted. A zero bound returns only the sources at
	// distance 0.
	Bound float64

	// UnitWeight treats every edge as weight 1, so Bound becomes a hop
	// limit. Used by graph-mode search where depth, not edge weight, is
	// the traversal budget.
	UnitWeight bool
}

// Engine runs traversals against a graph store. It holds no per-run state;
// every run works on a run-local frontier and distance table, so concurrent
// traversals never interfere.
type Engine struct {
	store *graph.Store
}

// New creates a traversal engine over store.
func New(store *graph.Store) *Engine {
	return &Engine{store: store}
}

// params are the recursion constants derived from the current node count n,
// never configured: k bounds the source-set size that short-circuits to
// exact expansion, t bounds the pivot count per recursion level, and depth
// is the recursion budget.
type params struct {
	k, t, depth int
}

func deriveParams(n int) params {
	if n < 2 {
		return params{k: 1, t: 1, depth: 1}
	}
	logN := math.Log2(float64(n))
	k := int(math.Floor(math.Cbrt(logN)))
	if k < 1 {
		k = 1
	}
	t := int(math.Floor(math.Pow(logN, 2.0/3.0)))
	if t < 1 {
		t = 1
	}
	depth := int(math.Ceil(logN / float64(t)))
	if depth < 1 {
		depth = 1
	}
	return params{k: k, t: t, depth: depth}
}

// bmsspWins predicts whether the recursive traversal beats plain Dijkstra on
// a graph with n nodes and m edges, comparing m·(log₂n)^(2/3) against
// m + n·log₂n. Sparse graphs fall back to Dijkstra.
func bmsspWins(n, m int64) bool {
	if n < 2 {
		return false
	}
	logN := math.Log2(float64(n))
	predicted := float64(m) * math.Pow(logN, 2.0/3.0)
	dijkstra := float64(m) + float64(n)*logN
	return predicted < dijkstra
}

type state struct {
	dist map[graph.NodeID]float64
	opts Options
	p    params
}

// ShortestPaths computes the distance from the nearest source for every node
// reachable within opts.Bound. Unreachable nodes are absent from the result.
// Edge weights must be nonnegative.
func (e *Engine) ShortestPaths(ctx context.Context, sources []graph.NodeID, opts Options) (map[graph.NodeID]float64, error) {
	const op = "traversal.ShortestPaths"
	if opts.Bound < 0 {
		return nil, agramaerr.New(agramaerr.Validation, op, "bound must be nonnegative")
	}

	st := &state{
		dist: make(map[graph.NodeID]float64),
		opts: opts,
	}
	var live []graph.NodeID
	for _, s := range sources {
		if _, ok := e.store.GetNode(s); !ok {
			continue
		}
		st.dist[s] = 0
		live = append(live, s)
	}
	if len(live) == 0 {
		return st.dist, nil
	}
	if opts.Bound == 0 {
		return st.dist, nil
	}

	n, m := e.store.Stats()
	st.p = deriveParams(int(n))

	if bmsspWins(n, m) {
		dispatchTotal.WithLabelValues("bmssp").Inc()
		if err := e.bmssp(ctx, st, live, opts.Bound, st.p.depth); err != nil {
			return nil, err
		}
	} else {
		dispatchTotal.WithLabelValues("dijkstra").Inc()
		if err := e.expand(ctx, st, live, opts.Bound); err != nil {
			return nil, err
		}
	}
	return st.dist, nil
}

// bmssp is the recursive reduction: small source sets (or exhausted levels)
// run an exact bounded expansion directly; larger ones first settle up to t
// pivots at half the bound, then expand the residual sources against the
// warmed distance table. The final expansion at the full bound is what makes
// the result exact; the recursion only shapes the order in which distances
// are settled.
func (e *Engine) bmssp(ctx context.Context, st *state, sources []graph.NodeID, bound float64, level int) error {
	if level <= 0 || len(sources) <= st.p.k {
		return e.expand(ctx, st, sources, bound)
	}

	pivots := selectPivots(st, sources, st.p.t)
	if err := e.bmssp(ctx, st, pivots, bound/2, level-1); err != nil {
		return err
	}
	return e.expand(ctx, st, sources, bound)
}

// selectPivots picks at most t sources whose tentative distances span the
// range seen so far: sources are walked in ascending tentative distance and
// sampled at an even stride, so the pivot set covers both near and far parts
// of the frontier rather than just its closest edge.
func selectPivots(st *state, sources []graph.NodeID, t int) []graph.NodeID {
	if len(sources) <= t {
		return sources
	}
	ordered := append([]graph.NodeID(nil), sources...)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0; j-- {
			di, dj := st.dist[ordered[j]], st.dist[ordered[j-1]]
			if di < dj || (di == dj && ordered[j] < ordered[j-1]) {
				ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
			} else {
				break
			}
		}
	}
	stride := len(ordered) / t
	pivots := make([]graph.NodeID, 0, t)
	for i := 0; i < len(ordered) && len(pivots) < t; i += stride {
		pivots = append(pivots, ordered[i])
	}
	return pivots
}

const pullBatch = 16

// expand runs the exact bounded best-first expansion (Dijkstra) from
// sources using the shared distance table, pruning at bound. Already-settled
// distances are only improved, never regressed, so repeated expansions over
// the same table compose correctly.
func (e *Engine) expand(ctx context.Context, st *state, sources []graph.NodeID, bound float64) error {
	const op = "traversal.expand"
	frontier := newBucketFrontier(bound)
	for _, s := range sources {
		frontier.push(s, st.dist[s])
	}

	for !frontier.empty() {
		if err := ctx.Err(); err != nil {
			return agramaerr.Wrap(agramaerr.Cancelled, op, "deadline reached during expansion", err)
		}
		for _, item := range frontier.pull(pullBatch) {
			best, ok := st.dist[item.id]
			if ok && item.dist > best {
				continue // stale frontier entry
			}
			for _, edge := range e.neighbors(item.id, st.opts.Direction) {
				next, w := edge.to, edge.weight
				if w < 0 {
					return agramaerr.New(agramaerr.Validation, op, "negative edge weight")
				}
				if st.opts.UnitWeight {
					w = 1
				}
				d := item.dist + w
				if d > bound {
					continue
				}
				if cur, ok := st.dist[next]; !ok || d < cur {
					st.dist[next] = d
					frontier.push(next, d)
				}
			}
		}
	}
	return nil
}

type halfEdge struct {
	to     graph.NodeID
	weight float64
}

func (e *Engine) neighbors(id graph.NodeID, direction Direction) []halfEdge {
	var out []halfEdge
	appendDir := func(dir graph.Direction) {
		for _, edge := range e.store.Neighbors(id, dir, nil) {
			to := edge.Dst
			if dir == graph.In {
				to = edge.Src
			}
			out = append(out, halfEdge{to: to, weight: edge.Weight})
		}
	}
	switch direction {
	case Forward:
		appendDir(graph.Out)
	case Reverse:
		appendDir(graph.In)
	case Bidirectional:
		appendDir(graph.Out)
		appendDir(graph.In)
	}
	return out
}
