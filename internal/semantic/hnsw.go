// Package semantic implements the hierarchical navigable small-world (HNSW)
// approximate nearest-neighbor index over Matryoshka-capable embeddings,
// plus an exact brute-force fallback used to validate recall and to
// serve collections too small to benefit from the layered graph.
package semantic

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/nibzard/agrama/internal/agramaerr"
	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/pool"
	"github.com/nibzard/agrama/internal/vector"
)

// Config controls the index's construction and search parameters.
type Config struct {
	// M is the max neighbors per node at layers above 0 (2M at layer 0).
	M int
	// EfConstruction is the candidate list width used during insertion.
	EfConstruction int
	// Dimension is the full embedding dimension every vector must match.
	Dimension int
	// Rand, if non-nil, drives level assignment (serialized internally).
	// When nil, each insertion derives its level from the node id and
	// insertion order, so a rebuilt index is reproducible without any
	// shared source.
	Rand *rand.Rand
}

func (c Config) withDefaults() Config {
	if c.M <= 0 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	return c
}

type hnswNode struct {
	id    graph.NodeID
	vec   []float32
	level int

	mu     sync.Mutex
	layers [][]graph.NodeID // layers[l] = neighbor ids at layer l
}

// Index is a concurrent HNSW index. Queries are not lock-free: they copy each
// visited node's neighbor list under that node's mutex and look nodes up
// under a shared read lock. Insertions take a per-node lock while rewiring
// neighbors, and the entry point is swapped with a single CAS.
type Index struct {
	cfg Config
	vp  *pool.VectorPool

	mu    sync.RWMutex // guards nodes map membership, not per-node contents
	nodes map[graph.NodeID]*hnswNode

	entryPoint atomic.Pointer[graph.NodeID]
	topLevel   atomic.Int64

	count atomic.Int64
	mL    float64

	rngMu sync.Mutex // guards cfg.Rand, which is not safe for concurrent use

	mirror MirrorSink
}

// MirrorSink receives every successful insertion for write-behind
// replication. Implementations must not block: the index calls Insert on
// the foreground insertion path.
type MirrorSink interface {
	Insert(id graph.NodeID, vec []float32)
}

// SetMirror attaches a write-behind mirror. Pass nil to detach. Not safe to
// call concurrently with Insert; wire the mirror before serving traffic.
func (idx *Index) SetMirror(m MirrorSink) { idx.mirror = m }

// New creates an empty HNSW index. vp, if non-nil, is used to allocate
// 32-byte-aligned storage for inserted vectors; if nil, vectors are stored
// as given without copying into an aligned pool.
func New(cfg Config, vp *pool.VectorPool) *Index {
	cfg = cfg.withDefaults()
	return &Index{
		cfg:   cfg,
		vp:    vp,
		nodes: make(map[graph.NodeID]*hnswNode),
		mL:    1 / math.Log(float64(cfg.M)),
	}
}

func (idx *Index) assignLevel(rng *rand.Rand) int {
	u := rng.Float64()
	for u == 0 {
		u = rng.Float64()
	}
	return int(math.Floor(-math.Log(u) * idx.mL))
}

func (idx *Index) dimension() int {
	if idx.cfg.Dimension > 0 {
		return idx.cfg.Dimension
	}
	return 0
}

// Insert adds id with embedding vec to the index. vec must have the
// configured Dimension if one was set. Insertion follows the standard HNSW
// construction: assign a level, greedy-descend to it, bounded best-first
// search at each lower layer to pick neighbors via the heuristic selector,
// wire bidirectionally, prune overflowing layers, and replace the entry
// point if the new level exceeds the current top.
func (idx *Index) Insert(id graph.NodeID, vec []float32) error {
	const op = "semantic.Insert"
	if d := idx.dimension(); d > 0 && len(vec) != d {
		return agramaerr.New(agramaerr.Validation, op, "embedding dimension mismatch")
	}

	stored := vec
	if idx.vp != nil {
		stored = idx.vp.Acquire(len(vec))
		copy(stored, vec)
	}

	// Re-inserting a known id updates its vector in place; the node keeps
	// its level and wiring, which stays approximately correct for ANN
	// purposes and avoids unbounded growth under repeated stores of the
	// same key.
	if existing := idx.getNode(id); existing != nil {
		existing.mu.Lock()
		existing.vec = stored
		existing.mu.Unlock()
		if idx.mirror != nil {
			idx.mirror.Insert(id, stored)
		}
		return nil
	}

	var level int
	if idx.cfg.Rand != nil {
		idx.rngMu.Lock()
		level = idx.assignLevel(idx.cfg.Rand)
		idx.rngMu.Unlock()
	} else {
		// Without a caller-supplied source, levels are derived from the id
		// and insertion order so a rebuilt index is reproducible.
		rng := rand.New(rand.NewSource(int64(fnvSeed(id)) ^ idx.count.Load()))
		level = idx.assignLevel(rng)
	}

	n := &hnswNode{id: id, vec: stored, level: level, layers: make([][]graph.NodeID, level+1)}

	idx.mu.Lock()
	idx.nodes[id] = n
	idx.mu.Unlock()
	idx.count.Add(1)

	if idx.mirror != nil {
		idx.mirror.Insert(id, stored)
	}

	ep := idx.entryPoint.Load()
	if ep == nil {
		if idx.entryPoint.CompareAndSwap(nil, &id) {
			idx.topLevel.Store(int64(level))
			return nil
		}
		// A concurrent insertion installed the first entry point; wire
		// this node against it.
		ep = idx.entryPoint.Load()
	}

	curTop := int(idx.topLevel.Load())
	cur := *ep

	// Greedy descent down to level+1, tracking only the single closest
	// node at each layer above the insertion level.
	for l := curTop; l > level; l-- {
		cur = idx.greedyClosest(cur, stored, l)
	}

	// Bounded best-first search and neighbor wiring at layers level..0.
	candidates := []graph.NodeID{cur}
	for l := min(level, curTop); l >= 0; l-- {
		found := idx.searchLayer(stored, candidates, idx.cfg.EfConstruction, l)
		cap := idx.cfg.M
		if l == 0 {
			cap = idx.cfg.M * 2
		}
		selected := selectNeighborsHeuristic(idx, stored, found, cap)
		idx.connect(n, l, selected, cap)
		candidates = selected
	}

	if level > curTop && idx.entryPoint.CompareAndSwap(ep, &id) {
		idx.topLevel.Store(int64(level))
	}
	return nil
}

func (idx *Index) getNode(id graph.NodeID) *hnswNode {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.nodes[id]
}

func (idx *Index) distance(a, b []float32) float32 {
	return vector.CosineDistance(a, b)
}

// greedyClosest returns the neighbor of cur at layer l closest to target,
// iterating until no neighbor improves on the current best (standard HNSW
// greedy single-hop descent).
func (idx *Index) greedyClosest(cur graph.NodeID, target []float32, l int) graph.NodeID {
	curNode := idx.getNode(cur)
	if curNode == nil {
		return cur
	}
	best := cur
	bestDist := idx.distance(target, curNode.vec)
	improved := true
	for improved {
		improved = false
		n := idx.getNode(best)
		if n == nil || l >= len(n.layers) {
			break
		}
		n.mu.Lock()
		neighbors := append([]graph.NodeID(nil), n.layers[l]...)
		n.mu.Unlock()
		for _, nb := range neighbors {
			nbNode := idx.getNode(nb)
			if nbNode == nil {
				continue
			}
			d := idx.distance(target, nbNode.vec)
			if d < bestDist {
				bestDist = d
				best = nb
				improved = true
			}
		}
	}
	return best
}

type candidate struct {
	id   graph.NodeID
	dist float32
}

// searchLayer runs a bounded best-first search of width ef over layer l
// starting from entryPoints, returning up to ef closest ids found.
func (idx *Index) searchLayer(target []float32, entryPoints []graph.NodeID, ef int, l int) []graph.NodeID {
	visited := make(map[graph.NodeID]bool)
	var candidates []candidate
	var found []candidate

	for _, ep := range entryPoints {
		n := idx.getNode(ep)
		if n == nil || visited[ep] {
			continue
		}
		visited[ep] = true
		d := idx.distance(target, n.vec)
		candidates = append(candidates, candidate{ep, d})
		found = append(found, candidate{ep, d})
	}

	for len(candidates) > 0 {
		ci := closestIndex(candidates)
		c := candidates[ci]
		candidates = append(candidates[:ci], candidates[ci+1:]...)

		if len(found) >= ef {
			fi := farthestIndex(found)
			if c.dist > found[fi].dist {
				break
			}
		}

		n := idx.getNode(c.id)
		if n == nil || l >= len(n.layers) {
			continue
		}
		n.mu.Lock()
		neighbors := append([]graph.NodeID(nil), n.layers[l]...)
		n.mu.Unlock()

		for _, nb := range neighbors {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nbNode := idx.getNode(nb)
			if nbNode == nil {
				continue
			}
			d := idx.distance(target, nbNode.vec)
			if len(found) < ef {
				candidates = append(candidates, candidate{nb, d})
				found = append(found, candidate{nb, d})
			} else if fi := farthestIndex(found); d < found[fi].dist {
				candidates = append(candidates, candidate{nb, d})
				found[fi] = candidate{nb, d}
			}
		}
	}

	sortByDist(found)
	ids := make([]graph.NodeID, len(found))
	for i, c := range found {
		ids[i] = c.id
	}
	return ids
}

// selectNeighborsHeuristic picks up to cap neighbors from candidates,
// preferring diverse directions over pure closeness: a candidate is kept
// only if it is closer to the target than to every neighbor already
// selected, which avoids clustering all edges in one direction.
func selectNeighborsHeuristic(idx *Index, target []float32, candidates []graph.NodeID, cap int) []graph.NodeID {
	type scored struct {
		id   graph.NodeID
		vec  []float32
		dist float32
	}
	pool := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		n := idx.getNode(c)
		if n == nil {
			continue
		}
		pool = append(pool, scored{c, n.vec, idx.distance(target, n.vec)})
	}
	for i := 1; i < len(pool); i++ {
		for j := i; j > 0 && pool[j].dist < pool[j-1].dist; j-- {
			pool[j], pool[j-1] = pool[j-1], pool[j]
		}
	}

	var selected []scored
	for _, cand := range pool {
		if len(selected) >= cap {
			break
		}
		diverse := true
		for _, s := range selected {
			if idx.distance(cand.vec, s.vec) < cand.dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, cand)
		}
	}
	// Backfill with closest remaining candidates if the diversity filter
	// left room unused.
	if len(selected) < cap {
		have := make(map[graph.NodeID]bool, len(selected))
		for _, s := range selected {
			have[s.id] = true
		}
		for _, cand := range pool {
			if len(selected) >= cap {
				break
			}
			if !have[cand.id] {
				selected = append(selected, cand)
			}
		}
	}

	ids := make([]graph.NodeID, len(selected))
	for i, s := range selected {
		ids[i] = s.id
	}
	return ids
}

// connect wires n to each id in neighbors at layer l, and the reverse edge
// back to n, pruning a neighbor's list down to cap with the heuristic
// selector if the reverse edge overflows it. n's own list is not pruned.
func (idx *Index) connect(n *hnswNode, l int, neighbors []graph.NodeID, cap int) {
	n.mu.Lock()
	n.layers[l] = append(n.layers[l], neighbors...)
	n.mu.Unlock()

	for _, nbID := range neighbors {
		nb := idx.getNode(nbID)
		if nb == nil {
			continue
		}
		nb.mu.Lock()
		for l >= len(nb.layers) {
			nb.layers = append(nb.layers, nil)
		}
		nb.layers[l] = append(nb.layers[l], n.id)
		if len(nb.layers[l]) > cap {
			nb.layers[l] = selectNeighborsHeuristic(idx, nb.vec, nb.layers[l], cap)
		}
		nb.mu.Unlock()
	}
}

// Search returns up to k nodes closest to query under cosine distance,
// using a dynamic candidate list of width max(ef, k). An empty index
// returns an empty result.
func (idx *Index) Search(query []float32, k, ef int) []Result {
	ep := idx.entryPoint.Load()
	if ep == nil {
		return nil
	}
	if ef < k {
		ef = k
	}

	cur := *ep
	for l := int(idx.topLevel.Load()); l > 0; l-- {
		cur = idx.greedyClosest(cur, query, l)
	}

	found := idx.searchLayer(query, []graph.NodeID{cur}, ef, 0)
	if len(found) > k {
		found = found[:k]
	}

	results := make([]Result, 0, len(found))
	for _, id := range found {
		n := idx.getNode(id)
		if n == nil {
			continue
		}
		results = append(results, Result{NodeID: id, Distance: idx.distance(query, n.vec)})
	}
	return results
}

// Result is one hit from a Search or brute-force query.
type Result struct {
	NodeID   graph.NodeID
	Distance float32
}

// Len returns the number of vectors currently indexed.
func (idx *Index) Len() int { return int(idx.count.Load()) }

func fnvSeed(id graph.NodeID) uint64 {
	// Distinct from NodeID's own hash: XORed with a constant so level
	// assignment doesn't correlate with the name-derived NodeID pattern.
	return uint64(id) ^ 0x9e3779b97f4a7c15
}

func closestIndex(c []candidate) int {
	best := 0
	for i := 1; i < len(c); i++ {
		if c[i].dist < c[best].dist {
			best = i
		}
	}
	return best
}

func farthestIndex(c []candidate) int {
	worst := 0
	for i := 1; i < len(c); i++ {
		if c[i].dist > c[worst].dist {
			worst = i
		}
	}
	return worst
}

func sortByDist(c []candidate) {
	for i := 1; i < len(c); i++ {
		for j := i; j > 0 && c[j].dist < c[j-1].dist; j-- {
			c[j], c[j-1] = c[j-1], c[j]
		}
	}
}

