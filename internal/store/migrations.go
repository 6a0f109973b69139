// Package store implements Kenny's Storage Core: a single SQLite database
// holding documents, their per-kind side records, chunks, embeddings,
// relationships, plans, jobs and schema version history.
package store

import (
	"database/sql"
	"fmt"

	"kenny/internal/logging"
)

// CurrentSchemaVersion is the minimum schema version this build understands.
// v1: documents + side tables + fts index
// v2: chunks + embeddings
// v3: relationships
// v4: plans + jobs + schema_migrations bookkeeping
const CurrentSchemaVersion = 4

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		source_app TEXT NOT NULL,
		source_id TEXT NOT NULL,
		source_uri TEXT,
		content_hash TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		last_seen_at INTEGER NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		UNIQUE(source_app, source_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_kind ON documents(kind);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_deleted ON documents(deleted);`,

	`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		title, content, content='documents', content_rowid='rowid'
	);`,

	`CREATE TABLE IF NOT EXISTS emails (
		document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		from_address TEXT,
		to_addresses TEXT,
		subject TEXT,
		thread_id TEXT,
		sent_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS events (
		document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		starts_at INTEGER,
		ends_at INTEGER,
		location TEXT,
		calendar_name TEXT,
		all_day INTEGER NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS reminders (
		document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		due_at INTEGER,
		completed INTEGER NOT NULL DEFAULT 0,
		list_name TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS notes (
		document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		folder TEXT,
		modified_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS contacts (
		document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		full_name TEXT,
		emails TEXT,
		phone_numbers TEXT,
		organization TEXT
	);`,
	`CREATE TABLE IF NOT EXISTS messages (
		document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		chat_id TEXT,
		sender TEXT,
		service TEXT,
		sent_at INTEGER
	);`,
	`CREATE TABLE IF NOT EXISTS files (
		document_id TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
		path TEXT,
		mime_type TEXT,
		size_bytes INTEGER,
		modified_at INTEGER
	);`,

	`CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		order_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		UNIQUE(document_id, order_index)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);`,

	`CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
		model_id TEXT NOT NULL,
		dim INTEGER NOT NULL,
		vector BLOB NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_embeddings_model ON embeddings(model_id);`,

	`CREATE TABLE IF NOT EXISTS relationships (
		from_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		to_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		strength REAL NOT NULL DEFAULT 1.0,
		created_at INTEGER NOT NULL,
		PRIMARY KEY(from_id, to_id, kind)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);`,
	`CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);`,

	`CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		correlation_id TEXT NOT NULL,
		query TEXT NOT NULL,
		steps_json TEXT NOT NULL,
		risks_json TEXT NOT NULL,
		status TEXT NOT NULL,
		operation_hash TEXT,
		content_origin TEXT NOT NULL DEFAULT 'user',
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		confirmed_at INTEGER,
		execution_started_at INTEGER,
		execution_completed_at INTEGER,
		results_json TEXT,
		rollback_results_json TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_plans_status ON plans(status);`,
	`CREATE INDEX IF NOT EXISTS idx_plans_correlation ON plans(correlation_id);`,

	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		priority TEXT NOT NULL DEFAULT 'normal',
		status TEXT NOT NULL,
		retry_policy TEXT NOT NULL DEFAULT 'default',
		attempts INTEGER NOT NULL DEFAULT 0,
		submitted_at INTEGER NOT NULL,
		started_at INTEGER,
		completed_at INTEGER,
		error TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_name_status ON jobs(name, status);`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_completed_at ON jobs(completed_at);`,

	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);`,
}

// triggerStatements keep documents_fts in sync with documents.
var triggerStatements = []string{
	`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
		INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
		INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES ('delete', old.rowid, old.title, old.content);
	END;`,
	`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
		INSERT INTO documents_fts(documents_fts, rowid, title, content) VALUES ('delete', old.rowid, old.title, old.content);
		INSERT INTO documents_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
	END;`,
}

// runMigrations creates the schema if absent and records the applied version.
// Statements are idempotent (IF NOT EXISTS throughout) so this is safe to run
// on every open.
func runMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "runMigrations")
	defer timer.Stop()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin migration tx: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("store: schema statement failed: %w\n%s", err, stmt)
		}
	}
	for _, stmt := range triggerStatements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("store: trigger statement failed: %w\n%s", err, stmt)
		}
	}

	version := schemaVersionTx(tx)
	if version < CurrentSchemaVersion {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO schema_migrations(version, applied_at) VALUES (?, strftime('%s','now'))",
			CurrentSchemaVersion,
		); err != nil {
			return fmt.Errorf("store: record schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit migration tx: %w", err)
	}
	logging.Store("schema ready at version %d", CurrentSchemaVersion)
	return nil
}

func schemaVersionTx(tx *sql.Tx) int {
	var version int
	row := tx.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0
	}
	return version
}

// SchemaVersion returns the highest applied migration version.
func SchemaVersion(db *sql.DB) int {
	var version int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&version); err != nil {
		return 0
	}
	return version
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
	return err == nil && count > 0
}
