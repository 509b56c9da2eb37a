package cryptox

import (
	"encoding/json"
)

// BlobVersion is the only EncryptedBlob layout this package understands.
const BlobVersion = 1

// EncryptedBlob is the self-describing result of an AES-GCM seal.
//
// The JSON form is used both for the at-rest vault payload and for export
// files. Byte slices are encoded as base64 strings by encoding/json.
type EncryptedBlob struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Tag        []byte `json:"tag"`
	Iterations int    `json:"iterations,omitempty"`
}

// MarshalBlob encodes b to its JSON wire form.
func MarshalBlob(b *EncryptedBlob) ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBlob parses the JSON wire form. Any parse problem is reported as
// ErrDecryption so callers cannot tell a garbled file from a wrong key.
func UnmarshalBlob(data []byte) (*EncryptedBlob, error) {
	var b EncryptedBlob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, ErrDecryption
	}
	if b.Version == 0 || len(b.Nonce) == 0 {
		return nil, ErrDecryption
	}
	return &b, nil
}
