//go:build sqlite_vec && cgo

package vectorindex

import (
	"context"
	"database/sql"
	"fmt"

	"kenny/internal/store"
)

// ANN wraps a sqlite-vec vec0 virtual table for approximate nearest
// neighbor search, registered by internal/store's cgo-gated init. It is
// only compiled with the sqlite_vec build tag; without it, BruteForce is
// the only Index implementation and remains correct, just O(n) per query.
type ANN struct {
	db      *sql.DB
	store   *store.Store
	table   string
	modelID string
	dim     int
}

// NewANN creates (if needed) a vec0 virtual table sized for dim-dimensional
// float vectors and returns an index backed by it.
func NewANN(s *store.Store, modelID string, dim int) (*ANN, error) {
	table := "vec_" + modelID
	db := s.DB()
	if _, err := db.Exec(fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(chunk_id TEXT PRIMARY KEY, embedding float[%d] distance_metric=cosine)`,
		table, dim,
	)); err != nil {
		return nil, fmt.Errorf("create vec0 table: %w", err)
	}
	return &ANN{db: db, store: s, table: table, modelID: modelID, dim: dim}, nil
}

// Put inserts or replaces a chunk's vector in both the vec0 table (for ANN
// search) and the embeddings table (for brute-force fallback and re-index).
func (a *ANN) Put(ctx context.Context, chunkID string, vector []float32) error {
	if err := a.store.PutEmbedding(store.EmbeddingRow{ChunkID: chunkID, ModelID: a.modelID, Dim: a.dim, Vector: store.Normalize(vector)}); err != nil {
		return err
	}
	_, err := a.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s(chunk_id, embedding) VALUES (?, ?)
		 ON CONFLICT(chunk_id) DO UPDATE SET embedding = excluded.embedding`, a.table),
		chunkID, store.EncodeVector(store.Normalize(vector)),
	)
	return err
}

// Delete removes a chunk's vector from both the vec0 table and the
// embeddings table.
func (a *ANN) Delete(ctx context.Context, chunkID string) error {
	if err := a.store.DeleteEmbedding(chunkID); err != nil {
		return err
	}
	_, err := a.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE chunk_id = ?`, a.table), chunkID)
	return err
}

// Search runs a vec0 KNN query, returning the k nearest chunks by cosine
// distance (converted to similarity as 1 - distance).
func (a *ANN) Search(ctx context.Context, queryVector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := store.Normalize(queryVector)
	rows, err := a.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT chunk_id, distance FROM %s WHERE embedding MATCH ? AND k = ? ORDER BY distance`, a.table),
		store.EncodeVector(query), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var chunkID string
		var distance float64
		if err := rows.Scan(&chunkID, &distance); err != nil {
			return nil, err
		}
		hits = append(hits, Hit{ChunkID: chunkID, Similarity: 1 - distance})
	}
	return hits, rows.Err()
}
