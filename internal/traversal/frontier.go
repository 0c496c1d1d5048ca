package traversal

import (
	"sort"

	"github.com/nibzard/agrama/internal/graph"
)

type frontierItem struct {
	id   graph.NodeID
	dist float64
}

// bucketFrontier keys tentative distances into coarse buckets and sorts a
// bucket only when it is pulled from, so "give me the next c smallest"
// never pays for a full global sort. Entries are inserted lazily: an item
// superseded by a shorter tentative distance is skipped at pull time by the
// caller, not removed here.
type bucketFrontier struct {
	width   float64
	buckets map[int][]frontierItem
	minKey  int
	size    int
}

func newBucketFrontier(bound float64) *bucketFrontier {
	// 64 buckets across the bound keeps each bucket small enough that the
	// on-pull sort is effectively constant work per element.
	width := bound / 64
	if width <= 0 {
		width = 1
	}
	return &bucketFrontier{width: width, buckets: make(map[int][]frontierItem), minKey: 0}
}

func (f *bucketFrontier) keyFor(dist float64) int {
	return int(dist / f.width)
}

func (f *bucketFrontier) push(id graph.NodeID, dist float64) {
	k := f.keyFor(dist)
	f.buckets[k] = append(f.buckets[k], frontierItem{id: id, dist: dist})
	if f.size == 0 || k < f.minKey {
		f.minKey = k
	}
	f.size++
}

func (f *bucketFrontier) empty() bool { return f.size == 0 }

// pull returns up to c globally smallest items. It advances to the lowest
// nonempty bucket, sorts just that bucket by (dist, id), and drains from its
// front; ties resolve to the lower NodeID.
func (f *bucketFrontier) pull(c int) []frontierItem {
	var out []frontierItem
	for len(out) < c && f.size > 0 {
		b, ok := f.buckets[f.minKey]
		for !ok || len(b) == 0 {
			delete(f.buckets, f.minKey)
			f.minKey++
			b, ok = f.buckets[f.minKey]
		}
		sort.Slice(b, func(i, j int) bool {
			if b[i].dist != b[j].dist {
				return b[i].dist < b[j].dist
			}
			return b[i].id < b[j].id
		})
		take := c - len(out)
		if take > len(b) {
			take = len(b)
		}
		out = append(out, b[:take]...)
		f.buckets[f.minKey] = b[take:]
		f.size -= take
	}
	return out
}
