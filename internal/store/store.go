package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"kenny/internal/logging"
)

// Store is Kenny's Storage Core (spec C1): a single SQLite database holding
// documents, their per-kind side records, chunks, embeddings, relationships,
// plans and jobs. All mutating access goes through a single writer lock;
// reads do not take that lock, but the connection pool holds a single
// connection, so statements still run one at a time.
type Store struct {
	db     *sql.DB
	path   string
	writeMu sync.Mutex
}

// Open creates or opens the database file at path, ensuring its directory
// exists, enabling foreign keys and WAL journaling, and running migrations.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("store: create dir %s: %w", dir, err)
		}
	}

	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 268435456",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("store opened at %s (schema v%d)", path, SchemaVersion(db))
	return s, nil
}

// OpenMemory opens an in-memory store, primarily for tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open memory db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}
	s := &Store{db: db, path: ":memory:"}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying connection for packages that need raw access
// (the vector index, for one).
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("closing store at %s", s.path)
	return s.db.Close()
}

// withWriteTx runs fn inside a transaction serialized against all other
// writers. Each logical upsert is its own transaction per the single-writer
// discipline; fn must not start goroutines that re-enter the store.
func (s *Store) withWriteTx(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
