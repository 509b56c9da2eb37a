// Package vault implements the vault session: creating and unlocking the
// vault, holding the decrypted entries while unlocked and persisting every
// change through a secretstore.Store.
//
// A Manager is an explicit session object. All state-changing operations are
// serialized behind one mutex that is held across key derivation, encryption
// and persistence; reads share the lock and always return copies.
package vault

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/autolock"
	"github.com/dmitrijs2005/gophvault/internal/biometric"
	"github.com/dmitrijs2005/gophvault/internal/codec"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/dmitrijs2005/gophvault/internal/secretstore"
	"github.com/google/uuid"
)

// State is the lifecycle state of the vault as seen by a Manager.
type State int

const (
	StateNoVault State = iota
	StateLocked
	StateUnlocked
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnlocked:
		return "unlocked"
	default:
		return "no vault"
	}
}

const biometricPrompt = "Unlock your vault"

// Option configures a Manager.
type Option func(*Manager)

// WithIterations sets the PBKDF2 round count for new master key records and
// exports. Values below cryptox.MinIterations fail at derivation time.
func WithIterations(n int) Option {
	return func(m *Manager) { m.iterations = n }
}

// WithCodec selects the payload serialization.
func WithCodec(c *codec.Codec) Option {
	return func(m *Manager) { m.codec = c }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithBiometricGate enables UnlockWithBiometric.
func WithBiometricGate(g biometric.Gate) Option {
	return func(m *Manager) { m.gate = g }
}

// WithClock replaces time.Now for entry timestamps and auto-lock bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
		m.lockOpts = append(m.lockOpts, autolock.WithClock(now))
	}
}

// WithIDGenerator replaces the uuid generator used for new entries.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) { m.newID = f }
}

// WithAutoLockPolicy sets the initial auto-lock policy.
func WithAutoLockPolicy(p autolock.Policy) Option {
	return func(m *Manager) { m.lockOpts = append(m.lockOpts, autolock.WithPolicy(p)) }
}

// WithAfterFunc replaces the auto-lock timer factory.
func WithAfterFunc(f autolock.AfterFunc) Option {
	return func(m *Manager) { m.lockOpts = append(m.lockOpts, autolock.WithAfterFunc(f)) }
}

// Manager owns the vault session.
type Manager struct {
	mu sync.RWMutex

	store      secretstore.Store
	codec      *codec.Codec
	iterations int
	logger     logging.Logger
	gate       biometric.Gate
	now        func() time.Time
	newID      func() string

	autolock *autolock.Controller
	lockOpts []autolock.Option

	// valid only while unlocked
	unlocked   bool
	storageKey []byte
	entries    []models.VaultEntry

	subMu       sync.Mutex
	subscribers []func(autolock.Reason)
}

// New returns a Manager over store. The manager starts locked; call State to
// find out whether a vault exists yet.
func New(store secretstore.Store, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		codec:      codec.Default,
		iterations: cryptox.DefaultIterations,
		logger:     logging.Nop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(m)
	}
	m.autolock = autolock.New(m.onAutoLock, m.lockOpts...)
	return m
}

// State reports whether a vault exists and whether it is unlocked.
func (m *Manager) State(ctx context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unlocked {
		return StateUnlocked, nil
	}
	ok, err := m.store.Exists(ctx, secretstore.KeyMasterKeyRecord)
	if err != nil {
		return StateNoVault, fmt.Errorf("failed to check vault: %w", err)
	}
	if !ok {
		return StateNoVault, nil
	}
	return StateLocked, nil
}

// Unlocked reports whether the vault is currently unlocked. Unlike State it
// never touches the store.
func (m *Manager) Unlocked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unlocked
}

// Create sets up a new vault protected by password and leaves it unlocked.
func (m *Manager) Create(ctx context.Context, password []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, err := m.store.Exists(ctx, secretstore.KeyMasterKeyRecord)
	if err != nil {
		return fmt.Errorf("failed to check vault: %w", err)
	}
	if ok {
		return ErrVaultAlreadyExists
	}
	if len(password) == 0 {
		return ErrInvalidPassword
	}

	rec, err := newMasterKeyRecord(password, m.iterations)
	if err != nil {
		return err
	}

	key, err := cryptox.NewStorageKey()
	if err != nil {
		return fmt.Errorf("failed to generate storage key: %w", err)
	}

	payload, err := m.seal(key, nil)
	if err != nil {
		cryptox.Wipe(key)
		return err
	}

	if err := ctx.Err(); err != nil {
		cryptox.Wipe(key)
		return err
	}

	err = secretstore.PutAll(ctx, m.store, map[string][]byte{
		secretstore.KeyMasterKeyRecord: rec.Bytes(),
		secretstore.KeyStorageKey:      key,
		secretstore.KeyVaultPayload:    payload,
	})
	if err != nil {
		cryptox.Wipe(key)
		m.logger.Error(ctx, "vault creation failed", "error", err)
		return fmt.Errorf("failed to persist vault: %w", err)
	}

	m.setUnlockedLocked(key, []models.VaultEntry{})
	m.logger.Info(ctx, "vault created", "iterations", m.iterations, "format", m.codec.Format())
	return nil
}

// Unlock verifies password against the master key record and loads the
// entries.
func (m *Manager) Unlock(ctx context.Context, password []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.loadRecord(ctx)
	if err != nil {
		return err
	}
	if len(password) == 0 {
		return ErrInvalidPassword
	}
	if !rec.Verify(password) {
		m.logger.Warn(ctx, "unlock rejected", "method", "password")
		return ErrIncorrectPassword
	}

	if err := m.loadLocked(ctx); err != nil {
		return err
	}
	m.logger.Info(ctx, "vault unlocked", "method", "password", "entries", len(m.entries))
	return nil
}

// UnlockWithBiometric unlocks without the master password once the biometric
// gate opens. Biometric unlock must have been enabled with
// SetBiometricEnabled and a gate configured with WithBiometricGate.
//
// The prompt runs without holding the manager lock.
func (m *Manager) UnlockWithBiometric(ctx context.Context) error {
	if m.gate == nil {
		return ErrBiometricUnavailable
	}

	ok, err := m.store.Exists(ctx, secretstore.KeyMasterKeyRecord)
	if err != nil {
		return fmt.Errorf("failed to check vault: %w", err)
	}
	if !ok {
		return ErrVaultNotFound
	}
	if !m.biometricFlag(ctx) {
		return ErrBiometricUnavailable
	}

	if err := biometric.Normalize(m.gate.Authenticate(ctx, biometricPrompt)); err != nil {
		m.logger.Warn(ctx, "unlock rejected", "method", "biometric", "error", err)
		if biometric.IsUnavailable(err) {
			return fmt.Errorf("%w: %w", ErrBiometricUnavailable, err)
		}
		return fmt.Errorf("%w: %w", ErrBiometricFailed, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.loadLocked(ctx); err != nil {
		return err
	}
	m.logger.Info(ctx, "vault unlocked", "method", "biometric", "entries", len(m.entries))
	return nil
}

// Lock wipes the key and drops the entries. Locking a locked vault, or a
// manager with no vault at all, is a no-op.
func (m *Manager) Lock() {
	m.mu.Lock()
	was := m.lockLocked()
	m.autolock.Stop()
	m.mu.Unlock()

	if was {
		m.logger.Info(context.Background(), "vault locked", "reason", autolock.ReasonExplicit.String())
		m.notify(autolock.ReasonExplicit)
	}
}

// OnLock registers f to run after every lock, whatever the reason. f runs
// on the locking goroutine and must not block.
func (m *Manager) OnLock(f func(autolock.Reason)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subscribers = append(m.subscribers, f)
}

// Touch records user activity for the inactivity timer.
func (m *Manager) Touch() {
	m.autolock.Touch()
}

// EnterBackground tells the manager the application left the foreground.
// Depending on the auto-lock policy the vault locks now or after a grace
// period.
func (m *Manager) EnterBackground() {
	m.autolock.EnterBackground()
}

// EnterForeground cancels a pending background lock.
func (m *Manager) EnterForeground() {
	m.autolock.EnterForeground()
}

// SetAutoLockPolicy replaces the auto-lock policy.
func (m *Manager) SetAutoLockPolicy(p autolock.Policy) {
	m.autolock.SetPolicy(p)
}

func (m *Manager) AutoLockPolicy() autolock.Policy {
	return m.autolock.Policy()
}

// onAutoLock is the auto-lock controller callback. It runs on a timer
// goroutine or on the caller of EnterBackground, never under m.mu.
func (m *Manager) onAutoLock(reason autolock.Reason) {
	m.mu.Lock()
	// an unlock that won the race has already restarted the controller
	if st, _ := m.autolock.State(); st == autolock.Unlocked {
		m.mu.Unlock()
		return
	}
	was := m.lockLocked()
	m.mu.Unlock()

	if was {
		m.logger.Info(context.Background(), "vault locked", "reason", reason.String())
		m.notify(reason)
	}
}

func (m *Manager) notify(reason autolock.Reason) {
	m.subMu.Lock()
	subs := append([]func(autolock.Reason){}, m.subscribers...)
	m.subMu.Unlock()

	for _, f := range subs {
		f(reason)
	}
}

func (m *Manager) lockLocked() bool {
	was := m.unlocked
	cryptox.Wipe(m.storageKey)
	m.storageKey = nil
	m.entries = nil
	m.unlocked = false
	return was
}

func (m *Manager) setUnlockedLocked(key []byte, entries []models.VaultEntry) {
	if m.storageKey != nil {
		cryptox.Wipe(m.storageKey)
	}
	m.storageKey = key
	m.entries = entries
	m.unlocked = true
	m.autolock.Start()
}

func (m *Manager) loadRecord(ctx context.Context) (*MasterKeyRecord, error) {
	raw, err := m.store.Get(ctx, secretstore.KeyMasterKeyRecord)
	if err != nil {
		if errors.Is(err, secretstore.ErrNotFound) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("failed to read master key record: %w", err)
	}
	return ParseMasterKeyRecord(raw)
}

// loadLocked reads the stored key and the payload and switches to unlocked.
// A missing payload is an empty vault.
func (m *Manager) loadLocked(ctx context.Context) error {
	key, err := m.store.Get(ctx, secretstore.KeyStorageKey)
	if err != nil {
		if errors.Is(err, secretstore.ErrNotFound) {
			return fmt.Errorf("%w: storage key missing", ErrCorruptRecord)
		}
		return fmt.Errorf("failed to read storage key: %w", err)
	}
	if len(key) != cryptox.KeySize {
		cryptox.Wipe(key)
		return fmt.Errorf("%w: storage key is %d bytes", ErrCorruptRecord, len(key))
	}

	entries := []models.VaultEntry{}
	raw, err := m.store.Get(ctx, secretstore.KeyVaultPayload)
	switch {
	case errors.Is(err, secretstore.ErrNotFound):
		m.logger.Debug(ctx, "no payload stored, starting empty")
	case err != nil:
		cryptox.Wipe(key)
		return fmt.Errorf("failed to read vault: %w", err)
	default:
		if entries, err = m.open(key, raw); err != nil {
			cryptox.Wipe(key)
			m.logger.Error(ctx, "vault payload unreadable", "error", err)
			return err
		}
	}

	m.setUnlockedLocked(key, entries)
	return nil
}

// seal encodes and encrypts entries under key into the stored form.
func (m *Manager) seal(key []byte, entries []models.VaultEntry) ([]byte, error) {
	plain, err := m.codec.Encode(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode vault: %w", err)
	}
	defer cryptox.Wipe(plain)

	blob, err := cryptox.Encrypt(plain, key)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt vault: %w", err)
	}
	return cryptox.MarshalBlob(blob)
}

func (m *Manager) open(key, raw []byte) ([]models.VaultEntry, error) {
	blob, err := cryptox.UnmarshalBlob(raw)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plain, err := cryptox.Decrypt(blob, key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer cryptox.Wipe(plain)

	entries, err := m.codec.Decode(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return entries, nil
}

// persistLocked writes entries with the current storage key.
func (m *Manager) persistLocked(ctx context.Context, entries []models.VaultEntry) error {
	payload, err := m.seal(m.storageKey, entries)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.store.Put(ctx, secretstore.KeyVaultPayload, payload); err != nil {
		m.logger.Error(ctx, "failed to save vault", "error", err)
		return fmt.Errorf("failed to save vault: %w", err)
	}
	return nil
}
