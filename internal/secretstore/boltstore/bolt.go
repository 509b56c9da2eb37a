// Package boltstore implements secretstore.Store on a single bbolt file.
package boltstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/secretstore"
	"go.etcd.io/bbolt"
)

// SecretsBucket holds every key written by the vault.
var SecretsBucket = []byte("secrets")

// DefaultOpenTimeout bounds how long Open waits for the file lock held by
// another process.
const DefaultOpenTimeout = 5 * time.Second

// Store is a bbolt-backed secret store.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path with owner-only permissions.
func Open(path string, timeout time.Duration) (*Store, error) {
	if timeout <= 0 {
		timeout = DefaultOpenTimeout
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(SecretsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create secrets bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if value == nil {
			value = []byte{}
		}
		if err := tx.Bucket(SecretsBucket).Put([]byte(key), value); err != nil {
			return fmt.Errorf("failed to put secret[%s]: %w", key, err)
		}
		return nil
	})
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v, found := lookup(tx, key)
		if !found {
			return secretstore.ErrNotFound
		}
		// bbolt memory is only valid inside the transaction
		out = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(SecretsBucket).Delete([]byte(key))
	})
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		_, ok = lookup(tx, key)
		return nil
	})
	return ok, err
}

// lookup distinguishes a missing key from a stored zero-length value.
func lookup(tx *bbolt.Tx, key string) ([]byte, bool) {
	k, v := tx.Bucket(SecretsBucket).Cursor().Seek([]byte(key))
	if k == nil || !bytes.Equal(k, []byte(key)) {
		return nil, false
	}
	return v, true
}

// PutBatch writes all items in one bbolt transaction.
func (s *Store) PutBatch(ctx context.Context, items map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(SecretsBucket)
		for k, v := range items {
			if v == nil {
				v = []byte{}
			}
			if err := b.Put([]byte(k), v); err != nil {
				return fmt.Errorf("failed to put secret[%s]: %w", k, err)
			}
		}
		return nil
	})
}

var (
	_ secretstore.Store   = (*Store)(nil)
	_ secretstore.Batcher = (*Store)(nil)
)
