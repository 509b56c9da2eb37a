package codec

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []models.VaultEntry {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 535000000, time.UTC)
	return []models.VaultEntry{
		{
			ID:         "a1",
			Name:       "GitHub",
			Username:   "octo",
			Password:   "hunter2",
			URL:        "https://github.com",
			Category:   models.CategoryLogin,
			Favorite:   true,
			CreatedAt:  ts,
			ModifiedAt: ts.Add(time.Minute),
			TOTPSecret: "JBSWY3DPEHPK3PXP",
			CustomFields: []models.CustomField{
				{Label: "recovery", Value: "abcd-efgh", Secret: true},
				{Label: "team", Value: "core"},
			},
		},
		{
			ID:         "b2",
			Name:       "Home WiFi",
			Password:   "p@ss",
			Notes:      "router in the hall",
			Category:   models.CategoryWiFi,
			CreatedAt:  ts,
			ModifiedAt: ts,
		},
	}
}

func TestCodec_RoundTripBothFormats(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatCBOR} {
		t.Run(string(f), func(t *testing.T) {
			c, err := New(f)
			require.NoError(t, err)

			data, err := c.Encode(sampleEntries())
			require.NoError(t, err)

			got, err := c.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, sampleEntries(), got)
		})
	}
}

func TestCodec_DecodeDetectsFormat(t *testing.T) {
	cb, err := New(FormatCBOR)
	require.NoError(t, err)
	data, err := cb.Encode(sampleEntries())
	require.NoError(t, err)

	got, err := Default.Decode(data)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCodec_EmptyCollection(t *testing.T) {
	data, err := Default.Encode(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"entries":[]}`, string(data))

	got, err := Default.Decode(data)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCodec_LegacyArrayLayout(t *testing.T) {
	got, err := Default.Decode([]byte(`[{"id":"x","name":"n","username":"u","password":"p","category":"secure_note","favorite":false,"created_at":"2024-01-01T00:00:00Z","modified_at":"2024-01-01T00:00:00Z"}]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.CategorySecureNote, got[0].Category)
}

func TestCodec_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		err  error
	}{
		{name: "empty", in: "  ", err: ErrMalformedPayload},
		{name: "broken json", in: `{"version":1,"entries":[`, err: ErrMalformedPayload},
		{name: "future version", in: `{"version":2,"entries":[]}`, err: ErrUnsupportedVersion},
		{name: "missing version", in: `{"entries":[]}`, err: ErrUnsupportedVersion},
		{name: "unknown category", in: `{"version":1,"entries":[{"id":"1","category":"boat"}]}`, err: ErrMalformedPayload},
		{name: "missing category", in: `{"version":1,"entries":[{"id":"1"}]}`, err: ErrMalformedPayload},
		{name: "garbage bytes", in: "\xff\x00\x01", err: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default.Decode([]byte(tt.in))
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("cbor")
	require.NoError(t, err)
	assert.Equal(t, FormatCBOR, f)

	_, err = ParseFormat("xml")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = New("xml")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
