package totp

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidURI    = errors.New("invalid otpauth uri")
	ErrMissingSecret = errors.New("otpauth uri has no secret")
)

// Unknown is used for issuer or account when the URI does not carry one.
const Unknown = "Unknown"

// Key is the content of an otpauth://totp provisioning URI.
type Key struct {
	Secret  string
	Issuer  string
	Account string
	Generator
}

// ParseURI parses otpauth://totp/<label>?secret=...
//
// The label is split on its first ':' into issuer and account. Without a
// colon the whole label is the account and the issuer comes from the issuer
// query parameter. Missing parts default to Unknown; digits, period and
// algorithm default to the RFC 6238 values.
func ParseURI(raw string) (*Key, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidURI
	}
	if !strings.EqualFold(u.Scheme, "otpauth") || !strings.EqualFold(u.Host, "totp") {
		return nil, ErrInvalidURI
	}

	q := u.Query()
	secret := strings.TrimSpace(q.Get("secret"))
	if secret == "" {
		return nil, ErrMissingSecret
	}

	label := strings.TrimPrefix(u.Path, "/")
	issuer, account := "", label
	if i := strings.Index(label, ":"); i >= 0 {
		issuer, account = label[:i], label[i+1:]
	}
	issuer = strings.TrimSpace(issuer)
	account = strings.TrimSpace(account)
	if issuer == "" {
		issuer = strings.TrimSpace(q.Get("issuer"))
	}

	key := &Key{
		Secret:    secret,
		Issuer:    orUnknown(issuer),
		Account:   orUnknown(account),
		Generator: DefaultGenerator,
	}

	if v := q.Get("digits"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 6 || d > 9 {
			return nil, ErrInvalidURI
		}
		key.Digits = d
	}
	if v := q.Get("period"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 {
			return nil, ErrInvalidURI
		}
		key.Period = p
	}
	if v := q.Get("algorithm"); v != "" {
		alg := Algorithm(strings.ToUpper(v))
		if _, err := alg.hash(); err != nil {
			return nil, err
		}
		key.Algorithm = alg
	}

	return key, nil
}

// CodeAt returns the key's code at t using the key's own parameters.
func (k *Key) CodeAt(t time.Time) (Code, error) {
	return k.Generator.Code(k.Secret, t)
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
