// Package store persists generated queries in SQLite, keyed by plan
// fingerprint. Translation is deterministic, so a cache hit is always
// byte-identical to what a fresh translation would produce; the cache
// exists to skip the walk, not to change its outcome.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pinotql/pinotql/internal/pql"
)

//go:embed schema.sql
var schemaSQL string

// Store is a durable cache of pql.GeneratedPQL payloads.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies
// the required pragmas and schema. Idempotent - safe to call on an
// existing cache.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to cache database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent Put calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a generated query under its plan fingerprint. Writing the
// same fingerprint twice is a no-op: translation is deterministic, so
// the payload cannot differ.
func (s *Store) Put(ctx context.Context, fingerprint string, generated *pql.GeneratedPQL) error {
	payload, err := json.Marshal(generated)
	if err != nil {
		return fmt.Errorf("marshal generated query: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO generated_queries (fingerprint, payload)
		VALUES (?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
	`, fingerprint, string(payload))
	if err != nil {
		return fmt.Errorf("write generated query: %w", err)
	}
	return nil
}

// Get looks up a generated query by plan fingerprint. The middle return
// value reports whether the fingerprint was present.
func (s *Store) Get(ctx context.Context, fingerprint string) (*pql.GeneratedPQL, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM generated_queries WHERE fingerprint = ?
	`, fingerprint).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read generated query: %w", err)
	}
	var generated pql.GeneratedPQL
	if err := json.Unmarshal([]byte(payload), &generated); err != nil {
		return nil, false, fmt.Errorf("unmarshal generated query: %w", err)
	}
	return &generated, true, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
