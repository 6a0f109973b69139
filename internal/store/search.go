package store

import (
	"strings"

	"kenny/internal/logging"
)

// KeywordHit is one row from the FTS5 keyword index, with BM25 already
// negated so higher is better.
type KeywordHit struct {
	DocumentID string
	Title      string
	Content    string
	Score      float64
}

// KeywordSearch runs an FTS5 MATCH query over documents_fts and returns the
// top limit hits ranked by (negated) bm25. Non-deleted documents only.
func (s *Store) KeywordSearch(query string, limit int) ([]KeywordHit, error) {
	timer := logging.StartTimer(logging.CategorySearch, "KeywordSearch")
	defer timer.Stop()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(
		`SELECT d.id, d.title, d.content, -bm25(documents_fts) AS score
		 FROM documents_fts
		 JOIN documents d ON d.rowid = documents_fts.rowid
		 WHERE documents_fts MATCH ? AND d.deleted = 0
		 ORDER BY score DESC
		 LIMIT ?`,
		ftsQuery(query), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.DocumentID, &h.Title, &h.Content, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ftsQuery escapes a free-text query into an FTS5 MATCH expression: each
// term is quoted and OR'd so results tolerate partial matches rather than
// requiring every term.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ReplaceAll(t, `"`, `""`)
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// Stats reports per-table row counts for the CLI `stats` command.
type Stats struct {
	Documents     int
	Chunks        int
	Embeddings    int
	Relationships int
	Plans         int
	Jobs          int
}

// TableStats computes row counts across Kenny's tables.
func (s *Store) TableStats() (Stats, error) {
	var st Stats
	counts := map[string]*int{
		"documents":     &st.Documents,
		"chunks":        &st.Chunks,
		"embeddings":    &st.Embeddings,
		"relationships": &st.Relationships,
		"plans":         &st.Plans,
		"jobs":          &st.Jobs,
	}
	for table, dst := range counts {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(dst); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}
