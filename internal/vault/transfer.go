package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/autolock"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/secretstore"
)

var biometricOn = []byte{1}

// Export seals every entry under a key derived from password with a fresh
// salt. The result is the JSON blob form and can be written to a file as is.
func (m *Manager) Export(ctx context.Context, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrInvalidPassword
	}

	var plain []byte
	err := m.read(func(entries []models.VaultEntry) error {
		var err error
		plain, err = m.codec.Encode(entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer cryptox.Wipe(plain)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob, err := cryptox.EncryptWithPassword(plain, password, m.iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt export: %w", err)
	}
	out, err := cryptox.MarshalBlob(blob)
	if err != nil {
		return nil, err
	}

	m.logger.Info(ctx, "vault exported", "format", m.codec.Format())
	return out, nil
}

// Import decrypts an export made by Export and appends its entries. Entries
// whose id is empty or already taken get a new id; nothing is merged.
// It returns the number of entries added.
//
// Key derivation and decryption run before the manager lock is taken, so a
// slow import never holds up Lock.
func (m *Manager) Import(ctx context.Context, data, password []byte) (int, error) {
	if len(password) == 0 {
		return 0, ErrInvalidPassword
	}
	if err := m.read(func([]models.VaultEntry) error { return nil }); err != nil {
		return 0, err
	}

	imported, err := m.decryptExport(data, password)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var added int
	err = m.mutate(ctx, func(entries []models.VaultEntry) ([]models.VaultEntry, error) {
		if len(imported) == 0 {
			return nil, errNoChange
		}

		taken := make(map[string]struct{}, len(entries)+len(imported))
		for _, e := range entries {
			taken[e.ID] = struct{}{}
		}

		now := m.now().UTC()
		for _, e := range imported {
			if _, dup := taken[e.ID]; dup || e.ID == "" {
				e.ID = m.newID()
			}
			taken[e.ID] = struct{}{}

			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			e.Touch(e.ModifiedAt)
			entries = append(entries, e)
		}
		added = len(imported)
		return entries, nil
	})
	if err != nil {
		return 0, err
	}

	m.logger.Info(ctx, "vault imported", "entries", added)
	return added, nil
}

// decryptExport opens an export blob and decodes its entries.
func (m *Manager) decryptExport(data, password []byte) ([]models.VaultEntry, error) {
	blob, err := cryptox.UnmarshalBlob(data)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plain, err := cryptox.DecryptWithPassword(blob, password)
	if err != nil {
		return nil, ErrIncorrectPassword
	}
	defer cryptox.Wipe(plain)

	imported, err := m.codec.Decode(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return imported, nil
}

// ChangeMasterPassword replaces the master key record. The stored key and the
// payload are untouched, so nothing is re-encrypted.
func (m *Manager) ChangeMasterPassword(ctx context.Context, current, next []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked {
		return ErrVaultLocked
	}

	rec, err := m.loadRecord(ctx)
	if err != nil {
		return err
	}
	if !rec.Verify(current) {
		m.logger.Warn(ctx, "password change rejected")
		return ErrIncorrectPassword
	}
	if len(next) == 0 {
		return ErrInvalidPassword
	}

	fresh, err := newMasterKeyRecord(next, m.iterations)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.store.Put(ctx, secretstore.KeyMasterKeyRecord, fresh.Bytes()); err != nil {
		return fmt.Errorf("failed to save master key record: %w", err)
	}

	m.autolock.Touch()
	m.logger.Info(ctx, "master password changed")
	return nil
}

// DeleteVault verifies password, removes everything the vault stored and
// locks. Afterwards State reports StateNoVault.
func (m *Manager) DeleteVault(ctx context.Context, password []byte) error {
	m.mu.Lock()

	rec, err := m.loadRecord(ctx)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if !rec.Verify(password) {
		m.mu.Unlock()
		m.logger.Warn(ctx, "vault deletion rejected")
		return ErrIncorrectPassword
	}
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return err
	}

	// the record goes last so a partial failure still leaves a vault to retry on
	keys := []string{
		secretstore.KeyVaultPayload,
		secretstore.KeyStorageKey,
		secretstore.KeyBiometricEnabled,
		secretstore.KeyMasterKeyRecord,
	}
	for _, k := range keys {
		if err := m.store.Delete(ctx, k); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("failed to delete %s: %w", k, err)
		}
	}

	was := m.lockLocked()
	m.autolock.Stop()
	m.mu.Unlock()

	m.logger.Info(ctx, "vault deleted")
	if was {
		m.notify(autolock.ReasonExplicit)
	}
	return nil
}

// SetBiometricEnabled turns biometric unlock on or off. The vault must be
// unlocked, so only someone who knows the master password can enable it.
func (m *Manager) SetBiometricEnabled(ctx context.Context, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked {
		return ErrVaultLocked
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	if enabled {
		err = m.store.Put(ctx, secretstore.KeyBiometricEnabled, biometricOn)
	} else {
		err = m.store.Delete(ctx, secretstore.KeyBiometricEnabled)
	}
	if err != nil {
		return fmt.Errorf("failed to save biometric setting: %w", err)
	}

	m.autolock.Touch()
	m.logger.Info(ctx, "biometric unlock updated", "enabled", enabled)
	return nil
}

// BiometricEnabled reports whether biometric unlock is switched on. It works
// in any state.
func (m *Manager) BiometricEnabled(ctx context.Context) (bool, error) {
	v, err := m.store.Get(ctx, secretstore.KeyBiometricEnabled)
	if err != nil {
		if errors.Is(err, secretstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return len(v) > 0 && v[0] != 0, nil
}

// biometricFlag treats an unreadable flag as disabled; the user can still
// unlock with the password.
func (m *Manager) biometricFlag(ctx context.Context) bool {
	on, err := m.BiometricEnabled(ctx)
	if err != nil {
		m.logger.Warn(ctx, "failed to read biometric setting", "error", err)
		return false
	}
	return on
}
