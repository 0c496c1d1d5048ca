package graph

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/nibzard/agrama/internal/agramaerr"
)

const lockShards = 256

type nodeHolder struct {
	value atomic.Pointer[Node]
}

type adjacency struct {
	out atomic.Pointer[[]Edge]
	in  atomic.Pointer[[]Edge]
}

func emptyEdges() *[]Edge {
	e := make([]Edge, 0)
	return &e
}

// Store is the typed directed graph of code entities and relationships.
// Node upserts are idempotent on NodeID. Edge inserts acquire per-node
// shard locks in ascending shard-index order (NodeID modulo the shard count) to make
// concurrent insertion deadlock-free, while Neighbors reads a versioned
// adjacency snapshot without taking any lock.
type Store struct {
	nodes     sync.Map // NodeID -> *nodeHolder
	adjacency sync.Map // NodeID -> *adjacency
	shardMu   [lockShards]sync.Mutex

	nodeCount atomic.Int64
	edgeCount atomic.Int64
}

// New creates an empty graph store.
func New() *Store {
	return &Store{}
}

func shardOf(id NodeID) int {
	return int(uint64(id) % lockShards)
}

func (s *Store) adjacencyFor(id NodeID) *adjacency {
	if v, ok := s.adjacency.Load(id); ok {
		return v.(*adjacency)
	}
	a := &adjacency{}
	a.out.Store(emptyEdges())
	a.in.Store(emptyEdges())
	actual, loaded := s.adjacency.LoadOrStore(id, a)
	if loaded {
		return actual.(*adjacency)
	}
	return a
}

// UpsertNode inserts or updates a node. Idempotent on NodeID: a second
// upsert with the same ID replaces the stored attributes.
func (s *Store) UpsertNode(n Node) {
	cp := n
	if existing, ok := s.nodes.Load(n.ID); ok {
		h := existing.(*nodeHolder)
		if h.value.Load() == nil {
			s.nodeCount.Add(1)
		}
		h.value.Store(&cp)
		return
	}
	h := &nodeHolder{}
	h.value.Store(&cp)
	if _, loaded := s.nodes.LoadOrStore(n.ID, h); !loaded {
		s.nodeCount.Add(1)
	} else {
		// Lost the race; update the winner's value instead.
		actual, _ := s.nodes.Load(n.ID)
		actual.(*nodeHolder).value.Store(&cp)
	}
}

// GetNode returns the node for id, if any.
func (s *Store) GetNode(id NodeID) (Node, bool) {
	v, ok := s.nodes.Load(id)
	if !ok {
		return Node{}, false
	}
	p := v.(*nodeHolder).value.Load()
	if p == nil {
		return Node{}, false
	}
	return *p, true
}

// AddEdge requires both endpoints already exist, then upserts the edge into
// both forward and reverse adjacency. Duplicate edges sharing (src, dst,
// relation) are coalesced: the existing entry's weight and attrs are
// overwritten (last-writer-wins) rather than a second edge being appended.
func (s *Store) AddEdge(src, dst NodeID, relation Relation, weight float64, attrs map[string]string) error {
	const op = "graph.AddEdge"
	if _, ok := s.GetNode(src); !ok {
		return agramaerr.New(agramaerr.NotFound, op, "source node does not exist")
	}
	if _, ok := s.GetNode(dst); !ok {
		return agramaerr.New(agramaerr.NotFound, op, "destination node does not exist")
	}

	first, second := shardOf(src), shardOf(dst)
	if first > second {
		first, second = second, first
	}
	s.shardMu[first].Lock()
	if second != first {
		s.shardMu[second].Lock()
	}
	defer func() {
		if second != first {
			s.shardMu[second].Unlock()
		}
		s.shardMu[first].Unlock()
	}()

	edge := Edge{Src: src, Dst: dst, Relation: relation, Weight: weight, Attrs: attrs}

	srcAdj := s.adjacencyFor(src)
	dstAdj := s.adjacencyFor(dst)

	isNew := upsertEdgeSlice(&srcAdj.out, edge, func(e Edge) bool { return e.Dst == dst && e.Relation == relation })
	_ = upsertEdgeSlice(&dstAdj.in, edge, func(e Edge) bool { return e.Src == src && e.Relation == relation })

	if isNew {
		s.edgeCount.Add(1)
	}
	return nil
}

// upsertEdgeSlice copy-on-writes ptr's slice, replacing the first element
// matching match with edge, or appending edge if no match exists. Returns
// true if edge was newly appended.
func upsertEdgeSlice(ptr *atomic.Pointer[[]Edge], edge Edge, match func(Edge) bool) bool {
	old := *ptr.Load()
	next := make([]Edge, len(old), len(old)+1)
	copy(next, old)
	for i, e := range next {
		if match(e) {
			next[i] = edge
			ptr.Store(&next)
			return false
		}
	}
	next = append(next, edge)
	ptr.Store(&next)
	return true
}

// Neighbors returns the edges of node in the requested direction, optionally
// filtered to one relation. The returned slice is a snapshot and safe to
// retain.
func (s *Store) Neighbors(node NodeID, direction Direction, relation *Relation) []Edge {
	adj, ok := s.adjacency.Load(node)
	if !ok {
		return nil
	}
	a := adj.(*adjacency)

	var out []Edge
	switch direction {
	case Out:
		out = append(out, *a.out.Load()...)
	case In:
		out = append(out, *a.in.Load()...)
	case Both:
		out = append(out, *a.out.Load()...)
		out = append(out, *a.in.Load()...)
	}
	if relation == nil {
		return out
	}
	filtered := out[:0:0]
	for _, e := range out {
		if e.Relation == *relation {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// Stats returns the current node and edge counts.
func (s *Store) Stats() (nodes, edges int64) {
	return s.nodeCount.Load(), s.edgeCount.Load()
}

// AllNodeIDs returns every NodeID currently in the store, sorted ascending.
// Used by traversal and ranking components that need to iterate the whole
// graph (e.g. to size BMSSP's derived parameters from node count n).
func (s *Store) AllNodeIDs() []NodeID {
	var ids []NodeID
	s.nodes.Range(func(key, value any) bool {
		h := value.(*nodeHolder)
		if h.value.Load() != nil {
			ids = append(ids, key.(NodeID))
		}
		return true
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
