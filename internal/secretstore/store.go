// Package secretstore defines the opaque key/value byte store the vault
// persists into, together with an in-memory implementation.
//
// Backends live in subpackages (sqlite, postgres, s3store, boltstore). All of
// them treat values as opaque: the vault only ever hands them encrypted blobs,
// the master-key verification record and single-byte flags.
package secretstore

import (
	"context"
	"errors"
)

// Reserved keys used by the vault.
const (
	KeyVaultPayload     = "vault.payload"
	KeyMasterKeyRecord  = "vault.master_key"
	KeyStorageKey       = "vault.storage_key"
	KeyBiometricEnabled = "vault.biometric_enabled"
)

// ReservedKeys lists every key the vault writes.
var ReservedKeys = []string{
	KeyVaultPayload,
	KeyMasterKeyRecord,
	KeyStorageKey,
	KeyBiometricEnabled,
}

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("secret not found")

// Store is a persistent string-keyed byte store.
//
// Get returns ErrNotFound for a missing key. Delete of a missing key is not an
// error. Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
