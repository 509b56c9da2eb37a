package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/secretstore"
	"github.com/dmitrijs2005/gophvault/internal/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEntry(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	saved, err := tv.AddEntry(ctx, models.VaultEntry{Name: "GitHub", Username: "octo", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", saved.ID)
	assert.Equal(t, models.CategoryLogin, saved.Category)
	assert.Equal(t, testNow, saved.CreatedAt)
	assert.Equal(t, testNow, saved.ModifiedAt)

	_, err = tv.AddEntry(ctx, models.VaultEntry{ID: "id-1", Name: "dup"})
	assert.ErrorIs(t, err, ErrEntryExists)

	_, err = tv.AddEntry(ctx, models.VaultEntry{Name: "bad", Category: "spaceship"})
	assert.ErrorIs(t, err, models.ErrUnknownCategory)

	explicit, err := tv.AddEntry(ctx, models.VaultEntry{ID: "wifi-home", Name: "Home", Category: models.CategoryWiFi})
	require.NoError(t, err)
	assert.Equal(t, "wifi-home", explicit.ID)

	entries, err := tv.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "GitHub", entries[0].Name)
	assert.Equal(t, "Home", entries[1].Name)
}

func TestUpdateEntry(t *testing.T) {
	ctx := context.Background()
	created := testNow
	clock := created
	tv := createdVault(t, WithClock(func() time.Time { return clock }))

	e, err := tv.AddEntry(ctx, models.VaultEntry{Name: "Mail", Username: "a"})
	require.NoError(t, err)

	clock = created.Add(time.Hour)
	e.Username = "b"
	e.CreatedAt = time.Time{}
	updated, err := tv.UpdateEntry(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, "b", updated.Username)
	assert.Equal(t, created, updated.CreatedAt)
	assert.Equal(t, clock, updated.ModifiedAt)

	got, err := tv.Entry(e.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)

	_, err = tv.UpdateEntry(ctx, models.VaultEntry{ID: "missing"})
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestUpdateEntry_ClockBehindCreation(t *testing.T) {
	ctx := context.Background()
	clock := testNow
	tv := createdVault(t, WithClock(func() time.Time { return clock }))

	e, err := tv.AddEntry(ctx, models.VaultEntry{Name: "n"})
	require.NoError(t, err)

	clock = testNow.Add(-time.Hour)
	updated, err := tv.UpdateEntry(ctx, e)
	require.NoError(t, err)
	assert.False(t, updated.ModifiedAt.Before(updated.CreatedAt))
}

func TestDeleteEntries(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	for _, name := range []string{"a", "b", "c"} {
		_, err := tv.AddEntry(ctx, models.VaultEntry{Name: name})
		require.NoError(t, err)
	}

	require.NoError(t, tv.DeleteEntry(ctx, "does-not-exist"))

	n, err := tv.DeleteEntries(ctx, []string{"id-1", "id-3", "nope"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := tv.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].Name)

	require.NoError(t, tv.DeleteEntry(ctx, "id-2"))
	entries, err = tv.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeleteEntry_AbsentIDDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	tv := &testVault{timers: &fakeTimers{}}
	fs := &flakyStore{Store: secretstore.NewMemory()}
	m := tv.open(fs)
	require.NoError(t, m.Create(ctx, testPassword))

	fs.fail("", errors.New("read-only"), nil)
	assert.NoError(t, m.DeleteEntry(ctx, "ghost"))
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	a, err := tv.AddEntry(ctx, models.VaultEntry{Name: "a"})
	require.NoError(t, err)
	_, err = tv.AddEntry(ctx, models.VaultEntry{Name: "b"})
	require.NoError(t, err)

	fav, err := tv.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, fav)

	favs, err := tv.Favorites()
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, a.ID, favs[0].ID)

	fav, err = tv.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, fav)

	_, err = tv.ToggleFavorite(ctx, "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestSearchEntries(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	seed := []models.VaultEntry{
		{Name: "GitHub", Username: "octocat", URL: "https://github.com"},
		{Name: "Bank", Username: "jane@example.com", URL: "https://bank.example"},
		{Name: "Router", Username: "admin", Category: models.CategoryWiFi},
	}
	for _, e := range seed {
		_, err := tv.AddEntry(ctx, e)
		require.NoError(t, err)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"GitHub", "Bank", "Router"}},
		{query: "GITHUB", want: []string{"GitHub"}},
		{query: "example", want: []string{"Bank"}},
		{query: "admin", want: []string{"Router"}},
		{query: "https", want: []string{"GitHub", "Bank"}},
		{query: "zzz", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, err := tv.SearchEntries(tt.query)
			require.NoError(t, err)
			names := []string{}
			for _, e := range got {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	e, err := tv.AddEntry(ctx, models.VaultEntry{
		Name:         "card",
		CustomFields: []models.CustomField{{Label: "pin", Value: "1234", Secret: true}},
	})
	require.NoError(t, err)

	got, err := tv.Entries()
	require.NoError(t, err)
	got[0].Name = "changed"
	got[0].CustomFields[0].Value = "0000"

	again, err := tv.Entry(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "card", again.Name)
	assert.Equal(t, "1234", again.CustomFields[0].Value)
}

func TestMutationPersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	tv := &testVault{timers: &fakeTimers{}}
	fs := &flakyStore{Store: secretstore.NewMemory()}
	m := tv.open(fs)
	require.NoError(t, m.Create(ctx, testPassword))

	e, err := m.AddEntry(ctx, models.VaultEntry{Name: "kept"})
	require.NoError(t, err)

	boom := errors.New("disk full")
	fs.fail(secretstore.KeyVaultPayload, boom, nil)

	_, err = m.AddEntry(ctx, models.VaultEntry{Name: "lost"})
	assert.ErrorIs(t, err, boom)
	_, err = m.ToggleFavorite(ctx, e.ID)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, m.DeleteEntry(ctx, e.ID), boom)

	entries, err := m.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Name)
	assert.False(t, entries[0].Favorite)

	// memory and disk agree
	fs.fail("", nil, nil)
	m.Lock()
	require.NoError(t, m.Unlock(ctx, testPassword))
	entries, err = m.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Name)
}

func TestTOTP(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)
	at := time.Unix(59, 0)

	plain, err := tv.AddEntry(ctx, models.VaultEntry{Name: "plain"})
	require.NoError(t, err)
	seed, err := tv.AddEntry(ctx, models.VaultEntry{Name: "seed", TOTPSecret: "JBSWY3DPEHPK3PXP"})
	require.NoError(t, err)
	uri, err := tv.AddEntry(ctx, models.VaultEntry{
		Name:       "uri",
		TOTPSecret: "otpauth://totp/Example:alice@example.com?secret=GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ&digits=8",
	})
	require.NoError(t, err)

	_, err = tv.TOTP(plain.ID, at)
	assert.ErrorIs(t, err, ErrNoTOTP)

	code, err := tv.TOTP(seed.ID, at)
	require.NoError(t, err)
	assert.Equal(t, "996554", code.Code)
	assert.Equal(t, 1, code.Remaining)

	code, err = tv.TOTP(uri.ID, at)
	require.NoError(t, err)
	assert.Equal(t, "94287082", code.Code)

	_, err = tv.TOTP("missing", at)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	bad, err := tv.AddEntry(ctx, models.VaultEntry{Name: "bad", TOTPSecret: "otpauth://hotp/x?secret=AAAA"})
	require.NoError(t, err)
	_, err = tv.TOTP(bad.ID, at)
	assert.ErrorIs(t, err, totp.ErrInvalidURI)
}
