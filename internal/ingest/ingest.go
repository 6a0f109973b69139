// Package ingest implements Kenny's Ingest Coordinator: it drives a set of
// Extractor implementations, normalizes their records into Documents and
// side records, applies content-hash dedup, re-chunks and re-embeds changed
// documents, and records per-source ingest stats.
package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"kenny/internal/chunk"
	"kenny/internal/embedding"
	"kenny/internal/ids"
	"kenny/internal/kerrors"
	"kenny/internal/logging"
	"kenny/internal/store"
	"kenny/internal/vectorindex"
)

// Mode selects full or incremental ingestion for one source.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// Record is one extractor-supplied item, already mapped to Kenny's kind
// taxonomy but not yet normalized or persisted.
type Record struct {
	Kind      store.Kind
	Title     string
	Content   string
	IsHTML    bool // Content is raw HTML and must be normalized before storage
	SourceID  string
	SourceURI string
	UpdatedAt int64

	// Side carries the kind-specific side record, using the SourceID-less
	// zero value for DocumentID; the coordinator fills DocumentID in after
	// the document upsert resolves its id. One of store.Email, store.Event,
	// store.Reminder, store.Note, store.Contact, store.Message, store.File.
	Side any
}

// Extractor pulls records for one source app. Implementations live outside
// this package (per-integration); the coordinator only depends on this
// contract.
type Extractor interface {
	SourceApp() string
	// RequestAccess checks the extractor can read its source. A failure here
	// is logged and counted in that source's Stats.Errors and does not abort
	// other sources in a multi-source Run; the error value itself is not
	// returned to the caller or wrapped in a kerrors type.
	RequestAccess(ctx context.Context) error
	// Pull streams records produced since the given unix-seconds instant (0
	// for a full sync). The record channel is closed when extraction
	// finishes; an error sent on the error channel terminates the pull.
	Pull(ctx context.Context, since int64) (<-chan Record, <-chan error)
}

// Stats reports one source's ingest run.
type Stats struct {
	Source     string
	Processed  int
	Created    int
	Updated    int
	Errors     int
	DurationMs int64
}

// Coordinator applies Extractor output to the Storage Core, Chunker and
// (optionally) the Vector Index.
type Coordinator struct {
	store       *store.Store
	embedder    embedding.EmbeddingEngine // optional; nil skips embedding
	vectorIndex vectorindex.Index         // optional; nil skips embedding
	modelID     string
}

// New builds a Coordinator. embedder and vectorIndex may both be nil, in
// which case ingest still upserts documents and chunks but leaves vector
// search degraded to keyword-only until a later `ingest_embeddings` pass.
func New(s *store.Store, embedder embedding.EmbeddingEngine, idx vectorindex.Index, modelID string) *Coordinator {
	return &Coordinator{store: s, embedder: embedder, vectorIndex: idx, modelID: modelID}
}

// Run ingests every extractor in order. Full ingest runs sources
// sequentially per the correctness requirement against SQLite WAL lock
// contention; this coordinator runs all modes sequentially for the same
// reason and because nothing here needs cross-source parallelism. A
// permission denial or other per-source failure is recorded in that
// source's Stats and does not prevent later sources from running.
func (c *Coordinator) Run(ctx context.Context, extractors []Extractor, mode Mode) []Stats {
	out := make([]Stats, 0, len(extractors))
	for _, ex := range extractors {
		out = append(out, c.RunSource(ctx, ex, mode))
	}
	return out
}

// RunSource ingests a single source end to end and, unless ctx was
// cancelled, writes its completion job row.
func (c *Coordinator) RunSource(ctx context.Context, ex Extractor, mode Mode) Stats {
	start := time.Now()
	stats := Stats{Source: ex.SourceApp()}

	if err := ex.RequestAccess(ctx); err != nil {
		logging.Ingest("source %s denied access: %v", ex.SourceApp(), err)
		stats.Errors++
		stats.DurationMs = time.Since(start).Milliseconds()
		return stats
	}

	since := int64(0)
	if mode == ModeFull {
		if err := c.store.ClearSource(ex.SourceApp()); err != nil {
			logging.Ingest("source %s full-sync clear failed: %v", ex.SourceApp(), err)
			stats.Errors++
			stats.DurationMs = time.Since(start).Milliseconds()
			return stats
		}
	} else {
		jobName := "ingest_" + ex.SourceApp()
		if s, ok, err := c.store.LastCompletedIngest(jobName); err == nil && ok {
			since = s
		}
	}

	records, errCh := ex.Pull(ctx, since)

loop:
	for {
		select {
		case <-ctx.Done():
			stats.Errors++
			break loop
		case err, ok := <-errCh:
			if ok && err != nil {
				logging.Ingest("source %s pull error: %v", ex.SourceApp(), err)
				stats.Errors++
			}
		case rec, ok := <-records:
			if !ok {
				break loop
			}
			if err := c.applyRecord(ex.SourceApp(), rec, &stats); err != nil {
				logging.Ingest("source %s record error: %v", ex.SourceApp(), err)
				stats.Errors++
			}
			stats.Processed++
		}
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	if ctx.Err() == nil {
		now := time.Now().Unix()
		jobID := ids.New()
		if err := c.store.InsertJob(store.JobRow{
			ID: jobID, Name: "ingest_" + ex.SourceApp(), Priority: "normal",
			Status: "running", Attempts: 1, SubmittedAt: now,
		}); err == nil {
			_ = c.store.UpdateJobStatus(jobID, "completed", 1, now, time.Now().Unix(), "")
		}
	}
	logging.Ingest("source %s: processed=%d created=%d updated=%d errors=%d duration=%dms",
		ex.SourceApp(), stats.Processed, stats.Created, stats.Updated, stats.Errors, stats.DurationMs)
	return stats
}

func (c *Coordinator) applyRecord(sourceApp string, rec Record, stats *Stats) error {
	content := rec.Content
	title := rec.Title
	if rec.IsHTML {
		normalized, extractedTitle := normalizeHTML(rec.Content, rec.SourceURI)
		content = normalized
		if title == "" {
			title = extractedTitle
		}
	}

	sourceID := rec.SourceID
	synthetic := false
	if sourceID == "" {
		sourceID = ids.SyntheticSourceID(sourceApp, string(rec.Kind), title, content)
		synthetic = true
	}

	now := time.Now().Unix()
	updatedAt := rec.UpdatedAt
	if updatedAt == 0 {
		updatedAt = now
	}

	doc := store.Document{
		Kind: rec.Kind, Title: title, Content: content,
		SourceApp: sourceApp, SourceID: sourceID, SourceURI: rec.SourceURI,
		ContentHash: store.ContentHash(rec.Kind, title, content),
		CreatedAt:   now, UpdatedAt: updatedAt, LastSeenAt: now,
	}

	result, err := c.store.UpsertDocument(doc, ids.New)
	if err != nil {
		return err
	}
	if result.Skipped {
		return nil
	}
	if result.Created {
		stats.Created++
	} else if result.Updated {
		stats.Updated++
	}
	_ = synthetic // recorded via SourceID prefix "synthetic:"; no separate column

	if err := writeSide(c.store, result.Document.ID, rec.Side); err != nil {
		return err
	}

	if email, ok := rec.Side.(store.Email); ok {
		c.linkEmailContacts(result.Document.ID, email)
	}

	chunks := chunk.Split(chunk.Input{DocumentID: result.Document.ID, Kind: rec.Kind, Title: title, Content: content})
	if err := c.store.ReplaceChunks(result.Document.ID, chunks); err != nil {
		return err
	}

	if c.embedder != nil && c.vectorIndex != nil {
		for _, ch := range chunks {
			vec, err := c.embedder.Embed(context.Background(), ch.Text)
			if err != nil {
				logging.Ingest("embed chunk %s failed: %v", ch.ID, err)
				continue
			}
			if err := c.vectorIndex.Put(context.Background(), ch.ID, vec); err != nil {
				logging.Ingest("index chunk %s failed: %v", ch.ID, err)
			}
		}
	}

	return nil
}

// linkEmailContacts derives email-to-contact relationship edges by address:
// one edge from the email document to the sender's contact, and one to
// each recipient's contact, for every address that resolves to a known
// contact. Addresses with no matching contact are skipped rather than
// treated as an error, since most mail senders/recipients never appear as
// a Contact record.
func (c *Coordinator) linkEmailContacts(documentID string, e store.Email) {
	now := time.Now().Unix()
	addresses := append([]string{e.FromAddress}, decodeAddressList(e.ToAddresses)...)
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		contactID, err := c.store.FindContactByEmail(addr)
		if err != nil {
			continue
		}
		if err := c.store.UpsertRelationship(store.Relationship{
			FromID: documentID, ToID: contactID, Kind: "email_contact", Strength: 1, CreatedAt: now,
		}); err != nil {
			logging.Ingest("link email %s to contact %s failed: %v", documentID, contactID, err)
		}
	}
}

func decodeAddressList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func writeSide(s *store.Store, documentID string, side any) error {
	switch v := side.(type) {
	case nil:
		return nil
	case store.Email:
		v.DocumentID = documentID
		return s.UpsertEmail(v)
	case store.Event:
		v.DocumentID = documentID
		return s.UpsertEvent(v)
	case store.Reminder:
		v.DocumentID = documentID
		return s.UpsertReminder(v)
	case store.Note:
		v.DocumentID = documentID
		return s.UpsertNote(v)
	case store.Contact:
		v.DocumentID = documentID
		return s.UpsertContact(v)
	case store.Message:
		v.DocumentID = documentID
		return s.UpsertMessage(v)
	case store.File:
		v.DocumentID = documentID
		return s.UpsertFile(v)
	default:
		return &kerrors.ValidationFailedError{Field: "side", Reason: "unrecognized side record type"}
	}
}
