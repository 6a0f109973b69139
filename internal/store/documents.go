package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"kenny/internal/logging"
)

// Kind enumerates the supported document kinds.
type Kind string

const (
	KindEmail    Kind = "email"
	KindEvent    Kind = "event"
	KindReminder Kind = "reminder"
	KindNote     Kind = "note"
	KindContact  Kind = "contact"
	KindMessage  Kind = "message"
	KindFile     Kind = "file"
)

// Document is the canonical unit of content.
type Document struct {
	ID          string
	Kind        Kind
	Title       string
	Content     string
	SourceApp   string
	SourceID    string
	SourceURI   string
	ContentHash string
	CreatedAt   int64
	UpdatedAt   int64
	LastSeenAt  int64
	Deleted     bool
}

// ErrNotFound is returned when a lookup by id misses.
var ErrNotFound = errors.New("store: not found")

// ContentHash computes the deterministic SHA-256 hash over a document's
// normalizable fields, hex-encoded. Used for re-ingestion dedup
// and required to be cryptographic and process-independent.
func ContentHash(kind Kind, title, content string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// UpsertResult reports what UpsertDocument did.
type UpsertResult struct {
	Document    Document
	Created     bool
	Updated     bool
	Skipped     bool
	SyntheticID bool
}

// UpsertDocument performs a foreign-key-safe upsert: if a row with the same
// (source_app, source_id) exists, its id is reused and fields are updated in
// place; otherwise a new id is minted.
// newID is called only when inserting, so callers control id generation
// (content-addressed ids for documents, UUIDs elsewhere).
func (s *Store) UpsertDocument(d Document, newID func() string) (UpsertResult, error) {
	timer := logging.StartTimer(logging.CategoryStore, "UpsertDocument")
	defer timer.Stop()

	var result UpsertResult

	err := s.withWriteTx(func(tx *sql.Tx) error {
		var existingID, existingHash string
		var existingUpdatedAt int64
		err := tx.QueryRow(
			`SELECT id, content_hash, updated_at FROM documents WHERE source_app = ? AND source_id = ?`,
			d.SourceApp, d.SourceID,
		).Scan(&existingID, &existingHash, &existingUpdatedAt)

		switch {
		case err == sql.ErrNoRows:
			if d.ID == "" {
				d.ID = newID()
			}
			if _, err := tx.Exec(
				`INSERT INTO documents
					(id, kind, title, content, source_app, source_id, source_uri, content_hash,
					 created_at, updated_at, last_seen_at, deleted)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				d.ID, string(d.Kind), d.Title, d.Content, d.SourceApp, d.SourceID, d.SourceURI,
				d.ContentHash, d.CreatedAt, d.UpdatedAt, d.LastSeenAt, boolToInt(d.Deleted),
			); err != nil {
				return fmt.Errorf("insert document: %w", err)
			}
			result = UpsertResult{Document: d, Created: true}
			return nil

		case err != nil:
			return fmt.Errorf("lookup document: %w", err)

		default:
			d.ID = existingID
			if existingHash == d.ContentHash && d.UpdatedAt <= existingUpdatedAt {
				if _, err := tx.Exec(`UPDATE documents SET last_seen_at = ? WHERE id = ?`, d.LastSeenAt, d.ID); err != nil {
					return fmt.Errorf("touch last_seen_at: %w", err)
				}
				result = UpsertResult{Document: d, Skipped: true}
				return nil
			}
			if _, err := tx.Exec(
				`UPDATE documents SET kind = ?, title = ?, content = ?, source_uri = ?,
					content_hash = ?, updated_at = ?, last_seen_at = ?, deleted = ?
				 WHERE id = ?`,
				string(d.Kind), d.Title, d.Content, d.SourceURI, d.ContentHash,
				d.UpdatedAt, d.LastSeenAt, boolToInt(d.Deleted), d.ID,
			); err != nil {
				return fmt.Errorf("update document: %w", err)
			}
			result = UpsertResult{Document: d, Updated: true}
			return nil
		}
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return result, nil
}

// GetDocument loads a document by id.
func (s *Store) GetDocument(id string) (Document, error) {
	var d Document
	var deleted int
	err := s.db.QueryRow(
		`SELECT id, kind, title, content, source_app, source_id, source_uri, content_hash,
			created_at, updated_at, last_seen_at, deleted
		 FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Kind, &d.Title, &d.Content, &d.SourceApp, &d.SourceID, &d.SourceURI,
		&d.ContentHash, &d.CreatedAt, &d.UpdatedAt, &d.LastSeenAt, &deleted)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("store: get document %s: %w", id, err)
	}
	d.Deleted = deleted != 0
	return d, nil
}

// GetDocumentBySource loads a document by its (source_app, source_id) key.
func (s *Store) GetDocumentBySource(sourceApp, sourceID string) (Document, error) {
	var id string
	err := s.db.QueryRow(
		`SELECT id FROM documents WHERE source_app = ? AND source_id = ?`, sourceApp, sourceID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return s.GetDocument(id)
}

// TombstoneDocument marks a document deleted without removing the row;
// tombstones are retained rather than hard-deleted.
func (s *Store) TombstoneDocument(sourceApp, sourceID string, at int64) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`UPDATE documents SET deleted = 1, updated_at = ?, last_seen_at = ? WHERE source_app = ? AND source_id = ?`,
			at, at, sourceApp, sourceID,
		)
		return err
	})
}

// ClearSource removes all rows scoped to source_app in child-first order:
// relationships, side tables (cascade via FK), then documents. Used for
// full-sync clearing.
func (s *Store) ClearSource(sourceApp string) error {
	timer := logging.StartTimer(logging.CategoryStore, "ClearSource")
	defer timer.Stop()

	return s.withWriteTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM relationships WHERE from_id IN (SELECT id FROM documents WHERE source_app = ?)
				OR to_id IN (SELECT id FROM documents WHERE source_app = ?)`, sourceApp, sourceApp,
		); err != nil {
			return fmt.Errorf("clear relationships: %w", err)
		}
		// Side tables and chunks/embeddings cascade via ON DELETE CASCADE.
		if _, err := tx.Exec(`DELETE FROM documents WHERE source_app = ?`, sourceApp); err != nil {
			return fmt.Errorf("clear documents: %w", err)
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
