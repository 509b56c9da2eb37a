package vault

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasterKeyRecord_Layout(t *testing.T) {
	rec := &MasterKeyRecord{
		Hash:       bytes.Repeat([]byte{0xAA}, cryptox.HashSize),
		Salt:       bytes.Repeat([]byte{0xBB}, cryptox.SaltSize),
		Iterations: cryptox.DefaultIterations,
	}

	b := rec.Bytes()
	require.Len(t, b, 64)
	assert.Equal(t, rec.Hash, b[:32])
	assert.Equal(t, rec.Salt, b[32:])

	parsed, err := ParseMasterKeyRecord(b)
	require.NoError(t, err)
	assert.Equal(t, rec, parsed)
}

func TestMasterKeyRecord_CustomIterations(t *testing.T) {
	rec := &MasterKeyRecord{
		Hash:       bytes.Repeat([]byte{1}, cryptox.HashSize),
		Salt:       bytes.Repeat([]byte{2}, cryptox.SaltSize),
		Iterations: 300_000,
	}

	b := rec.Bytes()
	require.Len(t, b, 68)

	parsed, err := ParseMasterKeyRecord(b)
	require.NoError(t, err)
	assert.Equal(t, 300_000, parsed.Iterations)
}

func TestParseMasterKeyRecord_Corrupt(t *testing.T) {
	for _, n := range []int{0, 31, 63, 65, 67, 69} {
		_, err := ParseMasterKeyRecord(make([]byte, n))
		assert.ErrorIs(t, err, ErrCorruptRecord, "len %d", n)
	}

	// an iteration suffix below the minimum is rejected
	_, err := ParseMasterKeyRecord(make([]byte, 68))
	assert.ErrorIs(t, err, ErrCorruptRecord)

	// so is one above the maximum
	huge := make([]byte, 68)
	binary.BigEndian.PutUint32(huge[64:], uint32(cryptox.MaxIterations+1))
	_, err = ParseMasterKeyRecord(huge)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestMasterKeyRecord_Verify(t *testing.T) {
	rec, err := newMasterKeyRecord([]byte("pw"), cryptox.MinIterations)
	require.NoError(t, err)

	parsed, err := ParseMasterKeyRecord(rec.Bytes())
	require.NoError(t, err)
	assert.True(t, parsed.Verify([]byte("pw")))
	assert.False(t, parsed.Verify([]byte("pW")))
	assert.False(t, parsed.Verify(nil))
}
