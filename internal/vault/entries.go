package vault

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/totp"
)

// ErrNoTOTP is returned by TOTP for entries without a seed.
var ErrNoTOTP = errors.New("entry has no totp secret")

// errNoChange tells mutate that nothing needs persisting.
var errNoChange = errors.New("no change")

// mutate applies fn to a private copy of the entries, persists the result and
// only then swaps it in. On any error the in-memory state stays as it was.
func (m *Manager) mutate(ctx context.Context, fn func(entries []models.VaultEntry) ([]models.VaultEntry, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked {
		return ErrVaultLocked
	}

	next, err := fn(models.CloneEntries(m.entries))
	if errors.Is(err, errNoChange) {
		m.autolock.Touch()
		return nil
	}
	if err != nil {
		return err
	}

	if err := m.persistLocked(ctx, next); err != nil {
		return err
	}
	m.entries = next
	m.autolock.Touch()
	return nil
}

// read runs fn against the live entries under the read lock.
func (m *Manager) read(fn func(entries []models.VaultEntry) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.unlocked {
		return ErrVaultLocked
	}
	if err := fn(m.entries); err != nil {
		return err
	}
	m.autolock.Touch()
	return nil
}

func indexOf(entries []models.VaultEntry, id string) int {
	for i := range entries {
		if entries[i].ID == id {
			return i
		}
	}
	return -1
}

func normalizeCategory(c models.Category) (models.Category, error) {
	if c == "" {
		return models.CategoryLogin, nil
	}
	if !c.Valid() {
		return "", models.ErrUnknownCategory
	}
	return c, nil
}

// AddEntry stores a new entry and returns it as saved. An empty ID is
// replaced with a fresh uuid and the timestamps are set to now.
func (m *Manager) AddEntry(ctx context.Context, e models.VaultEntry) (models.VaultEntry, error) {
	var saved models.VaultEntry

	err := m.mutate(ctx, func(entries []models.VaultEntry) ([]models.VaultEntry, error) {
		e = e.Clone()
		if e.ID == "" {
			e.ID = m.newID()
		} else if indexOf(entries, e.ID) >= 0 {
			return nil, ErrEntryExists
		}

		cat, err := normalizeCategory(e.Category)
		if err != nil {
			return nil, err
		}
		e.Category = cat

		now := m.now().UTC()
		e.CreatedAt = now
		e.ModifiedAt = now

		saved = e.Clone()
		return append(entries, e), nil
	})
	if err != nil {
		return models.VaultEntry{}, err
	}
	return saved, nil
}

// UpdateEntry replaces the entry with the same ID. CreatedAt is preserved and
// ModifiedAt is set to now.
func (m *Manager) UpdateEntry(ctx context.Context, e models.VaultEntry) (models.VaultEntry, error) {
	var saved models.VaultEntry

	err := m.mutate(ctx, func(entries []models.VaultEntry) ([]models.VaultEntry, error) {
		i := indexOf(entries, e.ID)
		if i < 0 {
			return nil, ErrEntryNotFound
		}

		e = e.Clone()
		cat, err := normalizeCategory(e.Category)
		if err != nil {
			return nil, err
		}
		e.Category = cat
		e.CreatedAt = entries[i].CreatedAt
		e.Touch(m.now().UTC())

		entries[i] = e
		saved = e.Clone()
		return entries, nil
	})
	if err != nil {
		return models.VaultEntry{}, err
	}
	return saved, nil
}

// DeleteEntry removes one entry. Deleting an unknown id is a no-op.
func (m *Manager) DeleteEntry(ctx context.Context, id string) error {
	_, err := m.DeleteEntries(ctx, []string{id})
	return err
}

// DeleteEntries removes every listed entry in one save and reports how many
// were actually removed.
func (m *Manager) DeleteEntries(ctx context.Context, ids []string) (int, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	removed := 0
	err := m.mutate(ctx, func(entries []models.VaultEntry) ([]models.VaultEntry, error) {
		kept := entries[:0]
		for _, e := range entries {
			if _, ok := drop[e.ID]; ok {
				continue
			}
			kept = append(kept, e)
		}
		removed = len(entries) - len(kept)
		if removed == 0 {
			return nil, errNoChange
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (m *Manager) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	var fav bool

	err := m.mutate(ctx, func(entries []models.VaultEntry) ([]models.VaultEntry, error) {
		i := indexOf(entries, id)
		if i < 0 {
			return nil, ErrEntryNotFound
		}
		entries[i].Favorite = !entries[i].Favorite
		entries[i].Touch(m.now().UTC())
		fav = entries[i].Favorite
		return entries, nil
	})
	return fav, err
}

// Entries returns a copy of every entry in stored order.
func (m *Manager) Entries() ([]models.VaultEntry, error) {
	var out []models.VaultEntry
	err := m.read(func(entries []models.VaultEntry) error {
		out = models.CloneEntries(entries)
		return nil
	})
	return out, err
}

// Entry returns a copy of the entry with the given id.
func (m *Manager) Entry(id string) (models.VaultEntry, error) {
	var out models.VaultEntry
	err := m.read(func(entries []models.VaultEntry) error {
		i := indexOf(entries, id)
		if i < 0 {
			return ErrEntryNotFound
		}
		out = entries[i].Clone()
		return nil
	})
	return out, err
}

// SearchEntries returns entries whose name, username or URL contains query,
// ignoring case. An empty query returns everything.
func (m *Manager) SearchEntries(query string) ([]models.VaultEntry, error) {
	return m.filter(func(e models.VaultEntry) bool { return e.Matches(query) })
}

// Favorites returns the entries marked as favorite.
func (m *Manager) Favorites() ([]models.VaultEntry, error) {
	return m.filter(func(e models.VaultEntry) bool { return e.Favorite })
}

func (m *Manager) filter(keep func(models.VaultEntry) bool) ([]models.VaultEntry, error) {
	out := []models.VaultEntry{}
	err := m.read(func(entries []models.VaultEntry) error {
		for _, e := range entries {
			if keep(e) {
				out = append(out, e.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TOTP computes the current one-time code for an entry. The stored secret
// may be a bare base32 seed or a full otpauth:// URI.
func (m *Manager) TOTP(id string, t time.Time) (totp.Code, error) {
	e, err := m.Entry(id)
	if err != nil {
		return totp.Code{}, err
	}
	if !e.HasTOTP() {
		return totp.Code{}, ErrNoTOTP
	}

	secret := strings.TrimSpace(e.TOTPSecret)
	if strings.HasPrefix(strings.ToLower(secret), "otpauth://") {
		key, err := totp.ParseURI(secret)
		if err != nil {
			return totp.Code{}, err
		}
		return key.CodeAt(t)
	}
	return totp.GenerateCode(secret, t)
}
