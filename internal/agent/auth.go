package agent

import (
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/vault"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenSubject = "vault-session"

// sessions issues HS256 tokens signed with a key that exists only while the
// vault is unlocked. Revoking wipes the key, which invalidates every token
// handed out so far.
//
// unlocked is consulted under mu when issuing. A lock that lands after the
// check revokes after issue returns, so no key outlives its unlocked period.
type sessions struct {
	mu       sync.Mutex
	key      []byte
	ttl      time.Duration
	now      func() time.Time
	unlocked func() bool
}

func newSessions(ttl time.Duration, now func() time.Time, unlocked func() bool) *sessions {
	return &sessions{ttl: ttl, now: now, unlocked: unlocked}
}

// issue returns a new token, creating the signing key on first use. It
// fails with vault.ErrVaultLocked once the vault has locked again.
func (s *sessions) issue() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.unlocked() {
		return "", vault.ErrVaultLocked
	}
	if s.key == nil {
		key, err := cryptox.RandomBytes(32)
		if err != nil {
			return "", err
		}
		s.key = key
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	return token.SignedString(s.key)
}

// verify checks signature, subject and expiry.
func (s *sessions) verify(tokenString string) error {
	s.mu.Lock()
	key := s.key
	s.mu.Unlock()

	if key == nil {
		return ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(tokenSubject),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (s *sessions) revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cryptox.Wipe(s.key)
	s.key = nil
}
