package store

import (
	"database/sql"
	"fmt"

	"kenny/internal/logging"
)

// Chunk is a retrievable slice of a Document.
type Chunk struct {
	ID          string
	DocumentID  string
	OrderIndex  int
	Text        string
	StartOffset int
	EndOffset   int
}

// ReplaceChunks atomically swaps the chunk set for a document: any content
// change invalidates the document's previous chunks and their embeddings.
// Embeddings cascade via the FK on chunks.
func (s *Store) ReplaceChunks(documentID string, chunks []Chunk) error {
	timer := logging.StartTimer(logging.CategoryChunk, "ReplaceChunks")
	defer timer.Stop()

	return s.withWriteTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM chunks WHERE document_id = ?`, documentID); err != nil {
			return fmt.Errorf("delete old chunks: %w", err)
		}
		stmt, err := tx.Prepare(
			`INSERT INTO chunks (id, document_id, order_index, text, start_offset, end_offset)
			 VALUES (?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range chunks {
			if _, err := stmt.Exec(c.ID, documentID, c.OrderIndex, c.Text, c.StartOffset, c.EndOffset); err != nil {
				return fmt.Errorf("insert chunk %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// ChunksForDocument returns a document's chunks ordered by order_index.
func (s *Store) ChunksForDocument(documentID string) ([]Chunk, error) {
	rows, err := s.db.Query(
		`SELECT id, document_id, order_index, text, start_offset, end_offset
		 FROM chunks WHERE document_id = ? ORDER BY order_index`, documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.OrderIndex, &c.Text, &c.StartOffset, &c.EndOffset); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetChunk loads a single chunk by id.
func (s *Store) GetChunk(id string) (Chunk, error) {
	var c Chunk
	err := s.db.QueryRow(
		`SELECT id, document_id, order_index, text, start_offset, end_offset FROM chunks WHERE id = ?`, id,
	).Scan(&c.ID, &c.DocumentID, &c.OrderIndex, &c.Text, &c.StartOffset, &c.EndOffset)
	if err == sql.ErrNoRows {
		return Chunk{}, ErrNotFound
	}
	return c, err
}

// ChunksWithoutEmbedding returns up to limit chunks that have no row in
// embeddings for modelID yet, used by the embedding backfill job.
func (s *Store) ChunksWithoutEmbedding(modelID string, limit int) ([]Chunk, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.document_id, c.order_index, c.text, c.start_offset, c.end_offset
		 FROM chunks c
		 LEFT JOIN embeddings e ON e.chunk_id = c.id AND e.model_id = ?
		 WHERE e.chunk_id IS NULL
		 LIMIT ?`, modelID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.OrderIndex, &c.Text, &c.StartOffset, &c.EndOffset); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
