package semantic

import (
	"sync"

	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/vector"
)

// BruteForce is an exact cosine-distance nearest-neighbor index. It exists
// to validate the HNSW index's recall and to serve collections too small
// for the layered graph to pay for itself; its Search never trades
// correctness for speed.
type BruteForce struct {
	mu      sync.RWMutex
	vectors map[graph.NodeID][]float32
}

// NewBruteForce creates an empty exact index.
func NewBruteForce() *BruteForce {
	return &BruteForce{vectors: make(map[graph.NodeID][]float32)}
}

// Insert adds or replaces the vector for id.
func (b *BruteForce) Insert(id graph.NodeID, vec []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vectors[id] = vec
}

// Search returns the k nodes with smallest cosine distance to query,
// computed by scanning every stored vector.
func (b *BruteForce) Search(query []float32, k int) []Result {
	b.mu.RLock()
	defer b.mu.RUnlock()

	results := make([]Result, 0, len(b.vectors))
	for id, v := range b.vectors {
		results = append(results, Result{NodeID: id, Distance: vector.CosineDistance(query, v)})
	}
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && (results[j].Distance < results[j-1].Distance ||
			(results[j].Distance == results[j-1].Distance && results[j].NodeID < results[j-1].NodeID)); j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Len returns the number of vectors stored.
func (b *BruteForce) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.vectors)
}

