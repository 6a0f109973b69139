// Package vectorindex implements the vector-similarity side of hybrid
// search: put(chunk_id, vector), delete(chunk_id), search(query_vec, k).
// It wraps internal/store's embeddings table with a brute-force cosine
// scan, good up to roughly 10^6 vectors. A sqlite-vec ANN backend can be
// swapped in behind the same interface when the sqlite_vec build tag is
// set; see index_vec.go.
package vectorindex

import (
	"context"
	"sort"

	"kenny/internal/logging"
	"kenny/internal/store"
)

// Hit is one vector search result.
type Hit struct {
	ChunkID    string
	Similarity float64
}

// Index is satisfied by both the brute-force scanner here and the sqlite-vec
// ANN backend in index_vec.go, so callers (internal/search) depend on the
// interface only.
type Index interface {
	Put(ctx context.Context, chunkID string, vector []float32) error
	Delete(ctx context.Context, chunkID string) error
	Search(ctx context.Context, queryVector []float32, k int) ([]Hit, error)
}

// BruteForce scans every stored embedding for a model and ranks by cosine
// similarity. O(n) per query; fine up to ~10^6 vectors.
type BruteForce struct {
	store   *store.Store
	modelID string
	dim     int
}

// NewBruteForce returns a brute-force vector index scoped to one embedding
// model. Vectors from other models are never mixed into one search.
func NewBruteForce(s *store.Store, modelID string, dim int) *BruteForce {
	return &BruteForce{store: s, modelID: modelID, dim: dim}
}

// Put stores (or replaces) the embedding for a chunk. The vector is
// normalized to unit length before storage, matching store.Normalize's
// invariant that all stored vectors have norm in [0.9999, 1.0001].
func (b *BruteForce) Put(ctx context.Context, chunkID string, vector []float32) error {
	return b.store.PutEmbedding(store.EmbeddingRow{
		ChunkID: chunkID, ModelID: b.modelID, Dim: b.dim,
		Vector: store.Normalize(vector),
	})
}

// Delete removes a chunk's embedding. Idempotent.
func (b *BruteForce) Delete(ctx context.Context, chunkID string) error {
	return b.store.DeleteEmbedding(chunkID)
}

// Search ranks every stored embedding for this model by cosine similarity
// to queryVector and returns the top k, highest similarity first.
func (b *BruteForce) Search(ctx context.Context, queryVector []float32, k int) ([]Hit, error) {
	timer := logging.StartTimer(logging.CategoryVector, "BruteForce.Search")
	defer timer.Stop()

	if k <= 0 {
		k = 10
	}
	query := store.Normalize(queryVector)

	rows, err := b.store.AllEmbeddings(b.modelID)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, Hit{ChunkID: row.ChunkID, Similarity: dot(query, row.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
