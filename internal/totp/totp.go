// Package totp computes RFC 6238 time-based one-time passwords and parses
// otpauth:// provisioning URIs.
//
// Code generation is a pure function of (secret, time): callers drive it from
// their own ticker, typically once per second, and read Code.Remaining to
// render a countdown.
package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"
)

var (
	// ErrInvalidSecret is returned when a secret is empty or decodes to no bytes.
	ErrInvalidSecret = errors.New("invalid totp secret")
	// ErrUnsupportedAlgorithm is returned for HMAC algorithms other than SHA1/256/512.
	ErrUnsupportedAlgorithm = errors.New("unsupported totp algorithm")
)

// Algorithm names the HMAC hash used by a generator.
type Algorithm string

const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA512 Algorithm = "SHA512"
)

func (a Algorithm) hash() (func() hash.Hash, error) {
	switch Algorithm(strings.ToUpper(string(a))) {
	case SHA1, "":
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	case SHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, a)
	}
}

const (
	DefaultDigits = 6
	DefaultPeriod = 30
)

// Code is a one-time code together with the number of seconds it stays valid.
type Code struct {
	Code      string
	Remaining int
}

// Generator holds TOTP parameters. The zero value is not usable; start from
// DefaultGenerator or a Key parsed from a URI.
type Generator struct {
	Digits    int
	Period    int
	Algorithm Algorithm
}

// DefaultGenerator produces 6-digit HMAC-SHA1 codes on a 30 second step.
var DefaultGenerator = Generator{Digits: DefaultDigits, Period: DefaultPeriod, Algorithm: SHA1}

// GenerateCode returns the default 6-digit code for secret at t.
func GenerateCode(secret string, t time.Time) (Code, error) {
	return DefaultGenerator.Code(secret, t)
}

// Code returns the one-time code for secret at t.
func (g Generator) Code(secret string, t time.Time) (Code, error) {
	key := DecodeSecret(secret)
	if len(key) == 0 {
		return Code{}, ErrInvalidSecret
	}

	period := int64(g.Period)
	if period <= 0 {
		period = DefaultPeriod
	}
	digits := g.Digits
	if digits <= 0 || digits > 9 {
		digits = DefaultDigits
	}

	unix := t.Unix()
	counter := floorDiv(unix, period)

	value, err := hotp(key, uint64(counter), g.Algorithm)
	if err != nil {
		return Code{}, err
	}

	return Code{
		Code:      fmt.Sprintf("%0*d", digits, value%pow10(digits)),
		Remaining: int(period - floorMod(unix, period)),
	}, nil
}

// hotp is RFC 4226 HOTP before modular reduction: HMAC of the big-endian
// counter, dynamic truncation, high bit masked.
func hotp(key []byte, counter uint64, alg Algorithm) (uint32, error) {
	h, err := alg.hash()
	if err != nil {
		return 0, err
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(h, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	return binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff, nil
}

func pow10(n int) uint32 {
	p := uint32(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
