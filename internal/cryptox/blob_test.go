package cryptox

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlob_JSONRoundTrip(t *testing.T) {
	blob, err := EncryptWithPassword([]byte("export me"), []byte("pw"), MinIterations)
	require.NoError(t, err)

	data, err := MarshalBlob(blob)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, k := range []string{"version", "salt", "nonce", "ciphertext", "tag", "iterations"} {
		assert.Contains(t, raw, k)
	}

	parsed, err := UnmarshalBlob(data)
	require.NoError(t, err)
	assert.Equal(t, blob, parsed)

	got, err := DecryptWithPassword(parsed, []byte("pw"))
	require.NoError(t, err)
	assert.Equal(t, "export me", string(got))
}

func TestBlob_IterationsOmittedForStoredKeyBlobs(t *testing.T) {
	key, err := NewStorageKey()
	require.NoError(t, err)
	blob, err := Encrypt([]byte("m"), key)
	require.NoError(t, err)

	data, err := MarshalBlob(blob)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "iterations")
}

func TestUnmarshalBlob_GarbageIsDecryptionError(t *testing.T) {
	for _, in := range []string{"", "not json", "[]", `{"version":1}`, `{"nonce":"AAAA"}`, `{"version":1,"nonce":"%%%"}`} {
		_, err := UnmarshalBlob([]byte(in))
		assert.Equal(t, ErrDecryption, err, "input %q", in)
	}
}
