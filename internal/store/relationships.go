package store

import (
	"database/sql"
	"fmt"
)

// Relationship is a directed, weighted edge between Documents.
type Relationship struct {
	FromID    string
	ToID      string
	Kind      string
	Strength  float64
	CreatedAt int64
}

// UpsertRelationship inserts or replaces an edge. Self-edges are rejected.
func (s *Store) UpsertRelationship(r Relationship) error {
	if r.FromID == r.ToID {
		return fmt.Errorf("store: relationship %s->%s/%s would be a self-edge", r.FromID, r.ToID, r.Kind)
	}
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO relationships (from_id, to_id, kind, strength, created_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(from_id, to_id, kind) DO UPDATE SET strength = excluded.strength`,
			r.FromID, r.ToID, r.Kind, r.Strength, r.CreatedAt,
		)
		return err
	})
}

// RelatedDocuments performs a breadth-first traversal of outgoing edges from
// id, optionally filtered by kind, bounded by maxDepth. Returns
// document ids in discovery order, nearest first.
func (s *Store) RelatedDocuments(id string, kind string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = 1
	}

	visited := map[string]bool{id: true}
	frontier := []string{id}
	var out []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, node := range frontier {
			var rows *sql.Rows
			var err error
			if kind == "" {
				rows, err = s.db.Query(`SELECT to_id FROM relationships WHERE from_id = ?`, node)
			} else {
				rows, err = s.db.Query(`SELECT to_id FROM relationships WHERE from_id = ? AND kind = ?`, node, kind)
			}
			if err != nil {
				return nil, fmt.Errorf("store: related documents: %w", err)
			}
			for rows.Next() {
				var to string
				if err := rows.Scan(&to); err != nil {
					rows.Close()
					return nil, err
				}
				if !visited[to] {
					visited[to] = true
					out = append(out, to)
					next = append(next, to)
				}
			}
			rows.Close()
		}
		frontier = next
	}
	return out, nil
}
