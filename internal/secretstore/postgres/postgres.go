// Package postgres implements secretstore.Store on PostgreSQL through the
// pgx database/sql driver. Several vaults can share one table; rows are
// namespaced by vault id.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/secretstore"
	"github.com/dmitrijs2005/gophvault/internal/secretstore/postgres/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// DefaultVaultID namespaces rows when no vault id is configured.
const DefaultVaultID = "default"

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return dbx.Migrate(ctx, db, "pgx", migrations.Migrations, gooseUpContext)
}

// Store is a PostgreSQL-backed secret store.
type Store struct {
	db      *sql.DB
	vaultID string
}

// New wraps a migrated database handle.
func New(db *sql.DB, vaultID string) *Store {
	if vaultID == "" {
		vaultID = DefaultVaultID
	}
	return &Store{db: db, vaultID: vaultID}
}

// Open connects using a pgx DSN, verifies the connection and migrates.
func Open(ctx context.Context, dsn, vaultID string) (*Store, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate secret store: %w", err)
	}
	return New(db, vaultID), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM vault_secrets WHERE vault_id = $1 AND key = $2`,
		s.vaultID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, secretstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, s.db, key, value)
}

func (s *Store) put(ctx context.Context, q dbx.DBTX, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO vault_secrets (vault_id, key, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (vault_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		s.vaultID, key, value)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vault_secrets WHERE vault_id = $1 AND key = $2`, s.vaultID, key)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vault_secrets WHERE vault_id = $1 AND key = $2)`,
		s.vaultID, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// PutBatch writes all items in one transaction.
func (s *Store) PutBatch(ctx context.Context, items map[string][]byte) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for k, v := range items {
			if err := s.put(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

var (
	_ secretstore.Store   = (*Store)(nil)
	_ secretstore.Batcher = (*Store)(nil)
)
