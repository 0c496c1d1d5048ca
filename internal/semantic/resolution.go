package semantic

import "github.com/nibzard/agrama/internal/vector"

// AtResolution truncates an embedding to a Matryoshka prefix of dim
// elements. dim<=0 means full resolution.
func AtResolution(e vector.Embedding, dim int) []float32 {
	return e.AtResolution(dim)
}

// SearchAtResolution is Search with Matryoshka truncation: both the query
// and every stored vector are compared using only their first dim elements.
// Truncating the query is sufficient because cosine distance is computed
// over the shorter of the two operands, so stored vectors participate with
// the same prefix.
func (idx *Index) SearchAtResolution(query []float32, k, ef, dim int) []Result {
	if dim > 0 && dim < len(query) {
		query = query[:dim]
	}
	return idx.Search(query, k, ef)
}
