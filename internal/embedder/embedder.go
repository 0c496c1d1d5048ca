// Package embedder provides the embedding providers the semantic index
// builds on: a deterministic statistical fallback that needs no model
// weights, and a local FastEmbed-backed provider for higher-quality
// embeddings when a model is available.
package embedder

import "context"

// Embedder turns content bytes into a dense vector. Implementations are
// expected to be safe for concurrent use.
type Embedder interface {
	// Embed returns the embedding for text. The returned slice has length
	// Dimension().
	Embed(ctx context.Context, text []byte) ([]float32, error)

	// Dimension returns the length of vectors this Embedder produces.
	Dimension() int
}
