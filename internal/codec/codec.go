// Package codec serializes the vault's entry collection to bytes and back.
//
// The payload is versioned:
//
//	{"version": 1, "entries": [ ... ]}
//
// JSON is the default encoding. CBOR (RFC 8949) is available as a compact
// alternative; Decode recognizes either form, so a vault written in one
// format can be read back after switching the configured format.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/fxamacker/cbor/v2"
)

// PayloadVersion is the current payload layout.
const PayloadVersion = 1

// Format selects the wire encoding produced by Encode.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported payload version")
	ErrUnsupportedFormat  = errors.New("unsupported payload format")
	ErrMalformedPayload   = errors.New("malformed payload")
)

// ParseFormat maps a config string to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

type payload struct {
	Version int                 `json:"version" cbor:"version"`
	Entries []models.VaultEntry `json:"entries" cbor:"entries"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	var err error
	if cborEnc, err = encOpts.EncMode(); err != nil {
		panic(err)
	}
	if cborDec, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic(err)
	}
}

// Codec encodes entries in a fixed Format.
type Codec struct {
	format Format
}

// New returns a Codec writing the given format.
func New(f Format) (*Codec, error) {
	if _, err := ParseFormat(string(f)); err != nil {
		return nil, err
	}
	if f == "" {
		f = FormatJSON
	}
	return &Codec{format: f}, nil
}

// Default is the JSON codec.
var Default = &Codec{format: FormatJSON}

// Format reports the encoding this codec writes.
func (c *Codec) Format() Format {
	return c.format
}

// Encode serializes entries. A nil slice is written as an empty list.
func (c *Codec) Encode(entries []models.VaultEntry) ([]byte, error) {
	if entries == nil {
		entries = []models.VaultEntry{}
	}
	p := payload{Version: PayloadVersion, Entries: entries}

	switch c.format {
	case FormatCBOR:
		return cborEnc.Marshal(p)
	default:
		return json.Marshal(p)
	}
}

// Decode parses a payload in either format.
//
// A bare JSON array of entries is accepted as the pre-versioning layout.
func (c *Codec) Decode(data []byte) ([]models.VaultEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrMalformedPayload
	}

	var p payload
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &p.Entries); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		p.Version = PayloadVersion
	case '{':
		if err := json.Unmarshal(trimmed, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
	default:
		if err := cborDec.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
	}

	if p.Version != PayloadVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}
	for i := range p.Entries {
		if !p.Entries[i].Category.Valid() {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrMalformedPayload, i, models.ErrUnknownCategory)
		}
		p.Entries[i].CreatedAt = p.Entries[i].CreatedAt.In(time.UTC)
		p.Entries[i].ModifiedAt = p.Entries[i].ModifiedAt.In(time.UTC)
	}
	if p.Entries == nil {
		p.Entries = []models.VaultEntry{}
	}
	return p.Entries, nil
}
