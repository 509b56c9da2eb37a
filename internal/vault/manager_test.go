package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/autolock"
	"github.com/dmitrijs2005/gophvault/internal/biometric"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/secretstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testPassword = []byte("correct horse battery staple")
	testNow      = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
)

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if !stopped {
		t.f()
	}
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *fakeTimers) AfterFunc(_ time.Duration, fn func()) autolock.Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{f: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeTimers) last(t *testing.T) *fakeTimer {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.timers)
	return f.timers[len(f.timers)-1]
}

// flakyStore fails selected operations on top of a working store.
type flakyStore struct {
	secretstore.Store
	mu      sync.Mutex
	putErr  error
	getErr  error
	failKey string
}

func (s *flakyStore) fail(key string, put, get error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKey, s.putErr, s.getErr = key, put, get
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	err := s.putErr
	match := s.failKey == "" || s.failKey == key
	s.mu.Unlock()
	if err != nil && match {
		return err
	}
	return s.Store.Put(ctx, key, value)
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	err := s.getErr
	match := s.failKey == "" || s.failKey == key
	s.mu.Unlock()
	if err != nil && match {
		return nil, err
	}
	return s.Store.Get(ctx, key)
}

type testVault struct {
	*Manager
	store  *secretstore.Memory
	timers *fakeTimers
	ids    int
}

func newTestVault(t *testing.T, opts ...Option) *testVault {
	t.Helper()
	tv := &testVault{store: secretstore.NewMemory(), timers: &fakeTimers{}}
	tv.Manager = tv.open(tv.store, opts...)
	return tv
}

// open builds another manager sharing the test clock, ids and timers.
func (tv *testVault) open(store secretstore.Store, opts ...Option) *Manager {
	base := []Option{
		WithIterations(cryptox.MinIterations),
		WithClock(func() time.Time { return testNow }),
		WithAfterFunc(tv.timers.AfterFunc),
		WithIDGenerator(func() string {
			tv.ids++
			return fmt.Sprintf("id-%d", tv.ids)
		}),
	}
	return New(store, append(base, opts...)...)
}

func createdVault(t *testing.T, opts ...Option) *testVault {
	t.Helper()
	tv := newTestVault(t, opts...)
	require.NoError(t, tv.Create(context.Background(), testPassword))
	return tv
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "no vault", StateNoVault.String())
	assert.Equal(t, "locked", StateLocked.String())
	assert.Equal(t, "unlocked", StateUnlocked.String())
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	tv := newTestVault(t)

	st, err := tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateNoVault, st)

	require.NoError(t, tv.Create(ctx, testPassword))

	st, err = tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, st)

	entries, err := tv.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)

	for _, k := range []string{secretstore.KeyMasterKeyRecord, secretstore.KeyStorageKey, secretstore.KeyVaultPayload} {
		ok, err := tv.store.Exists(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok, k)
	}
	assert.ErrorIs(t, tv.Create(ctx, testPassword), ErrVaultAlreadyExists)
}

func TestCreate_EmptyPassword(t *testing.T) {
	tv := newTestVault(t)
	assert.ErrorIs(t, tv.Create(context.Background(), nil), ErrInvalidPassword)
	assert.Equal(t, 0, tv.store.Len())
}

func TestCreate_BelowMinimumIterations(t *testing.T) {
	tv := newTestVault(t, WithIterations(1000))
	err := tv.Create(context.Background(), testPassword)
	assert.ErrorIs(t, err, ErrKeyDerivationFailed)
	assert.Equal(t, 0, tv.store.Len())
}

func TestCreate_PersistFailureLeavesLocked(t *testing.T) {
	ctx := context.Background()
	tv := &testVault{timers: &fakeTimers{}}
	mem := secretstore.NewMemory()
	fs := &flakyStore{Store: mem}
	fs.fail(secretstore.KeyVaultPayload, errors.New("disk full"), nil)
	m := tv.open(fs)

	err := m.Create(ctx, testPassword)
	require.Error(t, err)

	_, err = m.Entries()
	assert.ErrorIs(t, err, ErrVaultLocked)
	assert.Equal(t, 0, mem.Len(), "nothing left behind")

	st, err := m.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateNoVault, st)

	fs.fail("", nil, nil)
	require.NoError(t, m.Create(ctx, testPassword))
	m.Lock()
	require.NoError(t, m.Unlock(ctx, testPassword))
}

func TestUnlock(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	_, err := tv.AddEntry(ctx, models.VaultEntry{Name: "GitHub", Username: "octo"})
	require.NoError(t, err)
	tv.Lock()

	st, err := tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, st)

	assert.ErrorIs(t, tv.Unlock(ctx, []byte("wrong")), ErrIncorrectPassword)
	assert.ErrorIs(t, tv.Unlock(ctx, nil), ErrInvalidPassword)

	// a fresh session over the same store sees the saved entry
	other := tv.open(tv.store)
	require.NoError(t, other.Unlock(ctx, testPassword))
	entries, err := other.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "GitHub", entries[0].Name)
}

func TestUnlock_NoVault(t *testing.T) {
	tv := newTestVault(t)
	assert.ErrorIs(t, tv.Unlock(context.Background(), testPassword), ErrVaultNotFound)
	assert.ErrorIs(t, tv.Unlock(context.Background(), nil), ErrVaultNotFound)
}

func TestUnlock_MissingPayloadIsEmptyVault(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)
	tv.Lock()
	require.NoError(t, tv.store.Delete(ctx, secretstore.KeyVaultPayload))

	require.NoError(t, tv.Unlock(ctx, testPassword))
	entries, err := tv.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnlock_CorruptState(t *testing.T) {
	ctx := context.Background()

	t.Run("missing storage key", func(t *testing.T) {
		tv := createdVault(t)
		tv.Lock()
		require.NoError(t, tv.store.Delete(ctx, secretstore.KeyStorageKey))
		assert.ErrorIs(t, tv.Unlock(ctx, testPassword), ErrCorruptRecord)
	})

	t.Run("short master key record", func(t *testing.T) {
		tv := createdVault(t)
		tv.Lock()
		require.NoError(t, tv.store.Put(ctx, secretstore.KeyMasterKeyRecord, []byte("short")))
		assert.ErrorIs(t, tv.Unlock(ctx, testPassword), ErrCorruptRecord)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tv := createdVault(t)
		tv.Lock()
		require.NoError(t, tv.store.Put(ctx, secretstore.KeyVaultPayload, []byte(`{"version":1,"nonce":"AAAAAAAAAAAAAAAA","ciphertext":"","tag":"AAAAAAAAAAAAAAAAAAAAAA=="}`)))
		assert.ErrorIs(t, tv.Unlock(ctx, testPassword), ErrDecryptionFailed)

		st, err := tv.State(ctx)
		require.NoError(t, err)
		assert.Equal(t, StateLocked, st)
	})

	t.Run("store read failure surfaces", func(t *testing.T) {
		tv := &testVault{timers: &fakeTimers{}}
		fs := &flakyStore{Store: secretstore.NewMemory()}
		m := tv.open(fs)
		require.NoError(t, m.Create(ctx, testPassword))
		m.Lock()

		boom := errors.New("io error")
		fs.fail(secretstore.KeyVaultPayload, nil, boom)
		assert.ErrorIs(t, m.Unlock(ctx, testPassword), boom)
	})
}

func TestLock(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	var reasons []autolock.Reason
	tv.OnLock(func(r autolock.Reason) { reasons = append(reasons, r) })

	assert.True(t, tv.Unlocked())
	tv.Lock()
	tv.Lock()
	assert.False(t, tv.Unlocked())
	assert.Equal(t, []autolock.Reason{autolock.ReasonExplicit}, reasons)

	_, err := tv.Entries()
	assert.ErrorIs(t, err, ErrVaultLocked)
	_, err = tv.AddEntry(ctx, models.VaultEntry{Name: "x"})
	assert.ErrorIs(t, err, ErrVaultLocked)
	_, err = tv.SearchEntries("")
	assert.ErrorIs(t, err, ErrVaultLocked)
	_, err = tv.Export(ctx, testPassword)
	assert.ErrorIs(t, err, ErrVaultLocked)
	_, err = tv.Import(ctx, []byte("{}"), testPassword)
	assert.ErrorIs(t, err, ErrVaultLocked)
	assert.ErrorIs(t, tv.ChangeMasterPassword(ctx, testPassword, []byte("n")), ErrVaultLocked)
	assert.ErrorIs(t, tv.SetBiometricEnabled(ctx, true), ErrVaultLocked)

	tv.Manager.mu.RLock()
	assert.Nil(t, tv.storageKey)
	assert.Nil(t, tv.entries)
	tv.Manager.mu.RUnlock()
}

func TestLock_WithoutVault(t *testing.T) {
	tv := newTestVault(t)
	called := false
	tv.OnLock(func(autolock.Reason) { called = true })
	tv.Lock()
	assert.False(t, called)
}

func TestAutoLock_Inactivity(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	got := make(chan autolock.Reason, 1)
	tv.OnLock(func(r autolock.Reason) { got <- r })

	tv.timers.last(t).fire()

	assert.Equal(t, autolock.ReasonInactivity, <-got)
	st, err := tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, st)
}

func TestAutoLock_ActivityRearms(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)
	first := tv.timers.last(t)

	_, err := tv.AddEntry(ctx, models.VaultEntry{Name: "n"})
	require.NoError(t, err)

	// the timer armed at unlock is superseded by the mutation
	first.fire()
	st, err := tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, st)

	tv.Touch()
	tv.timers.last(t).fire()
	st, err = tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, st)
}

func TestAutoLock_Background(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	var reasons []autolock.Reason
	tv.OnLock(func(r autolock.Reason) { reasons = append(reasons, r) })

	tv.EnterBackground()
	assert.Equal(t, []autolock.Reason{autolock.ReasonBackground}, reasons)

	st, err := tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, st)
}

func TestAutoLock_BackgroundGrace(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t, WithAutoLockPolicy(autolock.Policy{InactivityTimeout: time.Minute, BackgroundGrace: time.Minute}))
	assert.Equal(t, time.Minute, tv.AutoLockPolicy().BackgroundGrace)

	tv.EnterBackground()
	grace := tv.timers.last(t)
	tv.EnterForeground()
	grace.fire()

	st, err := tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, st)

	tv.SetAutoLockPolicy(autolock.Policy{})
	tv.EnterBackground()
	st, err = tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLocked, st)
}

func TestAutoLock_StaleCallbackAfterRelock(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)
	stale := tv.timers.last(t)

	tv.Lock()
	require.NoError(t, tv.Unlock(ctx, testPassword))

	// bypass the stopped flag: a timer that already fired still must not lock
	stale.f()
	st, err := tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, st)
}

type gateStub struct {
	err   error
	calls int
}

func (g *gateStub) Authenticate(context.Context, string) error {
	g.calls++
	return g.err
}

func TestUnlockWithBiometric(t *testing.T) {
	ctx := context.Background()

	t.Run("no gate", func(t *testing.T) {
		tv := createdVault(t)
		require.NoError(t, tv.SetBiometricEnabled(ctx, true))
		tv.Lock()
		assert.ErrorIs(t, tv.UnlockWithBiometric(ctx), ErrBiometricUnavailable)
	})

	t.Run("no vault", func(t *testing.T) {
		tv := newTestVault(t, WithBiometricGate(&gateStub{}))
		assert.ErrorIs(t, tv.UnlockWithBiometric(ctx), ErrVaultNotFound)
	})

	t.Run("not enabled", func(t *testing.T) {
		gate := &gateStub{}
		tv := createdVault(t, WithBiometricGate(gate))
		tv.Lock()
		assert.ErrorIs(t, tv.UnlockWithBiometric(ctx), ErrBiometricUnavailable)
		assert.Zero(t, gate.calls)
	})

	tests := []struct {
		name     string
		gateErr  error
		want     error
		wantGate error
	}{
		{name: "not enrolled", gateErr: biometric.ErrNotEnrolled, want: ErrBiometricUnavailable, wantGate: biometric.ErrNotEnrolled},
		{name: "no hardware", gateErr: biometric.ErrNotAvailable, want: ErrBiometricUnavailable, wantGate: biometric.ErrNotAvailable},
		{name: "cancelled", gateErr: biometric.ErrUserCancelled, want: ErrBiometricFailed, wantGate: biometric.ErrUserCancelled},
		{name: "locked out", gateErr: biometric.ErrLockedOut, want: ErrBiometricFailed, wantGate: biometric.ErrLockedOut},
		{name: "unknown error", gateErr: errors.New("sensor"), want: ErrBiometricFailed, wantGate: biometric.ErrFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tv := createdVault(t, WithBiometricGate(&gateStub{err: tt.gateErr}))
			require.NoError(t, tv.SetBiometricEnabled(ctx, true))
			tv.Lock()

			err := tv.UnlockWithBiometric(ctx)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.wantGate)

			st, serr := tv.State(ctx)
			require.NoError(t, serr)
			assert.Equal(t, StateLocked, st)
		})
	}

	t.Run("success", func(t *testing.T) {
		tv := createdVault(t, WithBiometricGate(&gateStub{}))
		_, err := tv.AddEntry(ctx, models.VaultEntry{Name: "bank"})
		require.NoError(t, err)
		require.NoError(t, tv.SetBiometricEnabled(ctx, true))
		tv.Lock()

		require.NoError(t, tv.UnlockWithBiometric(ctx))
		entries, err := tv.Entries()
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("disable", func(t *testing.T) {
		tv := createdVault(t, WithBiometricGate(&gateStub{}))
		require.NoError(t, tv.SetBiometricEnabled(ctx, true))
		on, err := tv.BiometricEnabled(ctx)
		require.NoError(t, err)
		assert.True(t, on)

		require.NoError(t, tv.SetBiometricEnabled(ctx, false))
		on, err = tv.BiometricEnabled(ctx)
		require.NoError(t, err)
		assert.False(t, on)
	})
}

func TestChangeMasterPassword(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)
	_, err := tv.AddEntry(ctx, models.VaultEntry{Name: "mail"})
	require.NoError(t, err)

	keyBefore, err := tv.store.Get(ctx, secretstore.KeyStorageKey)
	require.NoError(t, err)

	next := []byte("a new passphrase")
	assert.ErrorIs(t, tv.ChangeMasterPassword(ctx, []byte("wrong"), next), ErrIncorrectPassword)
	assert.ErrorIs(t, tv.ChangeMasterPassword(ctx, testPassword, nil), ErrInvalidPassword)
	require.NoError(t, tv.ChangeMasterPassword(ctx, testPassword, next))

	keyAfter, err := tv.store.Get(ctx, secretstore.KeyStorageKey)
	require.NoError(t, err)
	assert.Equal(t, keyBefore, keyAfter)

	tv.Lock()
	assert.ErrorIs(t, tv.Unlock(ctx, testPassword), ErrIncorrectPassword)
	require.NoError(t, tv.Unlock(ctx, next))

	entries, err := tv.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDeleteVault(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)
	require.NoError(t, tv.SetBiometricEnabled(ctx, true))

	assert.ErrorIs(t, tv.DeleteVault(ctx, []byte("nope")), ErrIncorrectPassword)
	require.NoError(t, tv.DeleteVault(ctx, testPassword))

	st, err := tv.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateNoVault, st)
	assert.Equal(t, 0, tv.store.Len())

	assert.ErrorIs(t, tv.DeleteVault(ctx, testPassword), ErrVaultNotFound)
	require.NoError(t, tv.Create(ctx, testPassword))
}

func TestCancelledContextDoesNotPersist(t *testing.T) {
	tv := createdVault(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tv.AddEntry(ctx, models.VaultEntry{Name: "x"})
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := tv.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	tv := createdVault(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := tv.AddEntry(ctx, models.VaultEntry{ID: fmt.Sprintf("e-%d", i), Name: "n"})
			assert.NoError(t, err)
			_, err = tv.SearchEntries("n")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := tv.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, n)

	// every acknowledged write reached the store
	other := tv.open(tv.store)
	require.NoError(t, other.Unlock(ctx, testPassword))
	stored, err := other.Entries()
	require.NoError(t, err)
	assert.Len(t, stored, n)
}
