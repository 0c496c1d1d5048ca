package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

// DefaultFallbackDimension matches the dimension of the smallest FastEmbed
// model (BAAI/bge-small-en-v1.5) so fallback and model-backed embeddings are
// interchangeable without reindexing.
const DefaultFallbackDimension = 384

// Fallback is the deterministic statistical embedder: character-frequency
// histogram plus length features plus content-hash-seeded noise, L2
// normalized. It requires no model weights or network access, so the system
// is fully functional without an embedding model configured. The same input
// bytes always produce the same vector, on this process or any other.
type Fallback struct {
	dim int
}

// NewFallback returns a Fallback producing vectors of the given dimension.
// dim <= 0 uses DefaultFallbackDimension.
func NewFallback(dim int) *Fallback {
	if dim <= 0 {
		dim = DefaultFallbackDimension
	}
	return &Fallback{dim: dim}
}

// Dimension implements Embedder.
func (f *Fallback) Dimension() int { return f.dim }

// Embed implements Embedder. It never returns an error: the fallback has no
// external dependency that can fail.
func (f *Fallback) Embed(_ context.Context, text []byte) ([]float32, error) {
	vec := make([]float32, f.dim)

	// Character-frequency histogram folded into the first half of the
	// vector: bucket i accumulates counts of bytes b where b%half == i.
	half := f.dim / 2
	if half == 0 {
		half = f.dim
	}
	var hist [256]int
	for _, b := range text {
		hist[b]++
	}
	n := float32(len(text))
	if n == 0 {
		n = 1
	}
	for b, c := range hist {
		if c == 0 {
			continue
		}
		vec[b%half] += float32(c) / n
	}

	// Length features occupy a small fixed slice of the tail so very
	// short and very long inputs remain distinguishable even when their
	// byte histograms are similar.
	if half < f.dim {
		lengthBucket := int(math.Log2(float64(len(text)) + 1))
		slot := half + (lengthBucket % (f.dim - half))
		vec[slot] += 1.0
	}

	// Content-hash-seeded noise fills in the remaining spread so vectors
	// of distinct content never collide exactly, while staying fully
	// deterministic for identical content.
	seed := contentSeed(text)
	rng := rand.New(rand.NewSource(seed))
	for i := range vec {
		vec[i] += float32(rng.NormFloat64()) * 0.01
	}

	normalize(vec)
	return vec, nil
}

func contentSeed(text []byte) int64 {
	h := fnv.New64a()
	_, _ = h.Write(text)
	return int64(h.Sum64())
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
