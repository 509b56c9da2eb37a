// Package cryptox holds the vault's cryptographic primitives: PBKDF2 key
// derivation, password verification and AES-256-GCM sealing of byte payloads
// into EncryptedBlob values.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

var (
	// ErrDecryption is returned for every decryption failure. Wrong key,
	// tampered data and malformed blobs are deliberately indistinguishable.
	ErrDecryption = errors.New("decryption failed")

	// ErrKeyDerivation is returned when a key cannot be derived from a password.
	ErrKeyDerivation = errors.New("key derivation failed")

	// ErrInvalidKey is returned by Encrypt when the key is not KeySize bytes.
	ErrInvalidKey = errors.New("invalid key size")
)

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

// Encrypt seals plaintext with AES-256-GCM under key.
//
// A fresh random nonce is generated for every call, so encrypting the same
// plaintext twice under the same key yields different blobs. The returned
// blob has no salt; callers using a password-derived key should use
// EncryptWithPassword instead.
func Encrypt(plaintext, key []byte) (*EncryptedBlob, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce, err := RandomBytes(NonceSize)
	if err != nil {
		return nil, err
	}

	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return &EncryptedBlob{
		Version:    BlobVersion,
		Nonce:      nonce,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens a blob produced by Encrypt. It never panics; any problem with
// the key, the blob layout or the authentication tag yields ErrDecryption.
func Decrypt(blob *EncryptedBlob, key []byte) ([]byte, error) {
	if blob == nil || len(key) != KeySize {
		return nil, ErrDecryption
	}
	if blob.Version != BlobVersion || len(blob.Nonce) != NonceSize || len(blob.Tag) != TagSize {
		return nil, ErrDecryption
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryption
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+TagSize)
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.Tag...)

	plaintext, err := aesgcm.Open(nil, blob.Nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// EncryptWithPassword derives a one-off key from password and a fresh salt
// and seals plaintext under it. The salt and iteration count travel inside
// the blob so DecryptWithPassword can re-derive the same key.
func EncryptWithPassword(plaintext, password []byte, iterations int) (*EncryptedBlob, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(password, salt, iterations, KeySize)
	if err != nil {
		return nil, err
	}
	defer Wipe(key)

	blob, err := Encrypt(plaintext, key)
	if err != nil {
		return nil, err
	}
	blob.Salt = salt
	blob.Iterations = iterations
	return blob, nil
}

// DecryptWithPassword re-derives the key recorded by EncryptWithPassword and
// opens the blob. A missing iteration count means DefaultIterations.
func DecryptWithPassword(blob *EncryptedBlob, password []byte) ([]byte, error) {
	if blob == nil || len(blob.Salt) == 0 {
		return nil, ErrDecryption
	}

	iterations := blob.Iterations
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations > MaxIterations {
		return nil, ErrDecryption
	}

	key, err := DeriveKey(password, blob.Salt, iterations, KeySize)
	if err != nil {
		return nil, ErrDecryption
	}
	defer Wipe(key)

	return Decrypt(blob, key)
}

// NewStorageKey returns a random 256-bit key for the stored-key context.
func NewStorageKey() ([]byte, error) {
	return RandomBytes(KeySize)
}
