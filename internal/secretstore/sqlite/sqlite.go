// Package sqlite implements secretstore.Store on a local SQLite file using
// the pure-Go modernc driver. The schema is managed with goose.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/secretstore"
	"github.com/dmitrijs2005/gophvault/internal/secretstore/sqlite/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=FULL",
	"PRAGMA busy_timeout=5000",
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return dbx.Migrate(ctx, db, "sqlite3", migrations.Migrations, gooseUpContext)
}

// Store is a SQLite-backed secret store.
type Store struct {
	db *sql.DB
	q  dbx.DBTX
}

// New wraps an already migrated database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// Open opens (creating if needed) the SQLite file at dsn, applies pragmas
// and migrations, and returns a ready Store. Close releases the file.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single writer keeps WAL checkpoints and busy handling simple
	db.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate secret store: %w", err)
	}

	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	return get(ctx, s.q, key)
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return put(ctx, s.q, key, value)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete secret[%s]: %w", key, err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM secrets WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check secret[%s]: %w", key, err)
	}
	return true, nil
}

// PutBatch writes all items in one transaction.
func (s *Store) PutBatch(ctx context.Context, items map[string][]byte) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for k, v := range items {
			if err := put(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Keys lists stored keys, mainly for diagnostics.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT key FROM secrets ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan secret row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate secret rows: %w", err)
	}
	return keys, nil
}

func get(ctx context.Context, q dbx.DBTX, key string) ([]byte, error) {
	var value []byte
	err := q.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, secretstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret[%s]: %w", key, err)
	}
	return value, nil
}

func put(ctx context.Context, q dbx.DBTX, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO secrets (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set secret[%s]: %w", key, err)
	}
	return nil
}

var (
	_ secretstore.Store   = (*Store)(nil)
	_ secretstore.Batcher = (*Store)(nil)
)
