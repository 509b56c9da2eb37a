package vault

import (
	"errors"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
)

var (
	// lifecycle errors
	ErrVaultNotFound      = errors.New("vault not found")
	ErrVaultAlreadyExists = errors.New("vault already exists")
	ErrVaultLocked        = errors.New("vault is locked")
	ErrCorruptRecord      = errors.New("corrupt vault record")

	// password errors
	ErrInvalidPassword   = errors.New("invalid password")
	ErrIncorrectPassword = errors.New("incorrect password")

	// entry errors
	ErrEntryNotFound = errors.New("entry not found")
	ErrEntryExists   = errors.New("entry already exists")

	// crypto errors, shared with cryptox so errors.Is works across layers
	ErrKeyDerivationFailed = cryptox.ErrKeyDerivation
	ErrDecryptionFailed    = cryptox.ErrDecryption

	// biometric errors; the underlying biometric.Err* is wrapped alongside
	ErrBiometricUnavailable = errors.New("biometric unlock unavailable")
	ErrBiometricFailed      = errors.New("biometric unlock failed")
)
