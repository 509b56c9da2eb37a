package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// MinIterations is the lowest PBKDF2 round count DeriveKey accepts.
	MinIterations = 100_000
	// DefaultIterations is used when no explicit count is configured.
	DefaultIterations = 210_000
	// MaxIterations bounds the round count taken from stored or imported
	// data, so a crafted blob cannot stall derivation for hours.
	MaxIterations = 10_000_000
	// SaltSize is the length of generated salts.
	SaltSize = 32
	// HashSize is the length of a password verification hash.
	HashSize = sha256.Size
)

// DeriveKey runs PBKDF2-HMAC-SHA256 over password and salt.
// Identical inputs always produce identical keys.
func DeriveKey(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	if iterations < MinIterations || iterations > MaxIterations || keyLen <= 0 || len(salt) == 0 {
		return nil, ErrKeyDerivation
	}
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
}

// MakeVerifier turns a derived key into the value stored for verification,
// so the stored hash is never itself usable as a key.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// HashPassword derives a verification hash for password. When salt is nil a
// fresh random salt of SaltSize bytes is generated and returned.
func HashPassword(password, salt []byte, iterations int) (hash, usedSalt []byte, err error) {
	if salt == nil {
		if salt, err = RandomBytes(SaltSize); err != nil {
			return nil, nil, err
		}
	}

	key, err := DeriveKey(password, salt, iterations, KeySize)
	if err != nil {
		return nil, nil, err
	}
	defer Wipe(key)

	return MakeVerifier(key), salt, nil
}

// VerifyPassword reports whether password produces hash under salt.
// The comparison runs in constant time.
func VerifyPassword(password, hash, salt []byte, iterations int) bool {
	candidate, _, err := HashPassword(password, salt, iterations)
	if err != nil || len(salt) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(candidate, hash) == 1
}
