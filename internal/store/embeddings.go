package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
)

// EmbeddingRow is the persisted form of a Chunk's embedding.
type EmbeddingRow struct {
	ChunkID string
	ModelID string
	Dim     int
	Vector  []float32
}

// EncodeVector serializes a float32 vector to little-endian bytes for BLOB
// storage.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector reverses EncodeVector.
func DecodeVector(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// Norm returns the Euclidean norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v. Embeddings MUST be
// unit-normalized on write.
func Normalize(v []float32) []float32 {
	n := Norm(v)
	if n == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / n)
	}
	return out
}

// PutEmbedding inserts or atomically replaces a chunk's embedding.
func (s *Store) PutEmbedding(e EmbeddingRow) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO embeddings (chunk_id, model_id, dim, vector) VALUES (?, ?, ?, ?)
			 ON CONFLICT(chunk_id) DO UPDATE SET
				model_id = excluded.model_id, dim = excluded.dim, vector = excluded.vector`,
			e.ChunkID, e.ModelID, e.Dim, EncodeVector(e.Vector),
		)
		return err
	})
}

// DeleteEmbedding removes a chunk's embedding. Idempotent.
func (s *Store) DeleteEmbedding(chunkID string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM embeddings WHERE chunk_id = ?`, chunkID)
		return err
	})
}

// AllEmbeddings loads every embedding for modelID, for brute-force cosine
// scan fallback.
func (s *Store) AllEmbeddings(modelID string) ([]EmbeddingRow, error) {
	rows, err := s.db.Query(
		`SELECT chunk_id, model_id, dim, vector FROM embeddings WHERE model_id = ?`, modelID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: load embeddings: %w", err)
	}
	defer rows.Close()

	var out []EmbeddingRow
	for rows.Next() {
		var e EmbeddingRow
		var raw []byte
		if err := rows.Scan(&e.ChunkID, &e.ModelID, &e.Dim, &raw); err != nil {
			return nil, err
		}
		e.Vector = DecodeVector(raw)
		out = append(out, e)
	}
	return out, rows.Err()
}
