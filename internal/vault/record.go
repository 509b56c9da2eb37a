package vault

import (
	"encoding/binary"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
)

const (
	recordSize         = cryptox.HashSize + cryptox.SaltSize
	recordSizeWithIter = recordSize + 4
)

// MasterKeyRecord is what the vault keeps to verify the master password.
//
// The stored layout is hash ‖ salt (32 + 32 bytes). When the record was made
// with a non-default PBKDF2 round count, the count follows as a 4-byte
// big-endian integer so later verification derives with the same cost.
type MasterKeyRecord struct {
	Hash       []byte
	Salt       []byte
	Iterations int
}

func newMasterKeyRecord(password []byte, iterations int) (*MasterKeyRecord, error) {
	hash, salt, err := cryptox.HashPassword(password, nil, iterations)
	if err != nil {
		return nil, err
	}
	return &MasterKeyRecord{Hash: hash, Salt: salt, Iterations: iterations}, nil
}

// Verify reports whether password matches the record, in constant time.
func (r *MasterKeyRecord) Verify(password []byte) bool {
	return cryptox.VerifyPassword(password, r.Hash, r.Salt, r.Iterations)
}

// Bytes returns the stored layout.
func (r *MasterKeyRecord) Bytes() []byte {
	size := recordSize
	if r.Iterations != cryptox.DefaultIterations {
		size = recordSizeWithIter
	}

	b := make([]byte, size)
	copy(b, r.Hash)
	copy(b[cryptox.HashSize:], r.Salt)
	if size == recordSizeWithIter {
		binary.BigEndian.PutUint32(b[recordSize:], uint32(r.Iterations))
	}
	return b
}

// ParseMasterKeyRecord splits a stored record.
func ParseMasterKeyRecord(b []byte) (*MasterKeyRecord, error) {
	r := &MasterKeyRecord{Iterations: cryptox.DefaultIterations}

	switch len(b) {
	case recordSize:
	case recordSizeWithIter:
		r.Iterations = int(binary.BigEndian.Uint32(b[recordSize:]))
		if r.Iterations < cryptox.MinIterations || r.Iterations > cryptox.MaxIterations {
			return nil, fmt.Errorf("%w: iteration count %d", ErrCorruptRecord, r.Iterations)
		}
	default:
		return nil, fmt.Errorf("%w: master key record is %d bytes", ErrCorruptRecord, len(b))
	}

	r.Hash = append([]byte(nil), b[:cryptox.HashSize]...)
	r.Salt = append([]byte(nil), b[cryptox.HashSize:recordSize]...)
	return r, nil
}
