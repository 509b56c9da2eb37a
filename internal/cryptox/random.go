package cryptox

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomBytes returns n bytes read from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomHex returns a hex string made of n random bytes (2n characters).
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Wipe overwrites b with zeros. It is safe to call with a nil slice.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
