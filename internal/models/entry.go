// Package models defines vault entry types and their fields.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies an entry. The set is closed.
type Category string

const (
	CategoryLogin      Category = "login"
	CategoryCreditCard Category = "credit_card"
	CategorySecureNote Category = "secure_note"
	CategoryAPIKey     Category = "api_key"
	CategoryWiFi       Category = "wifi"
	CategoryIdentity   Category = "identity"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryLogin,
	CategoryCreditCard,
	CategorySecureNote,
	CategoryAPIKey,
	CategoryWiFi,
	CategoryIdentity,
}

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrIncorrectField  = errors.New("custom field must be label=value")
)

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseCategory(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// CustomField is a user-defined label/value pair. Secret fields are masked
// by front-ends until explicitly revealed.
type CustomField struct {
	Label  string `json:"label" cbor:"label"`
	Value  string `json:"value" cbor:"value"`
	Secret bool   `json:"secret,omitempty" cbor:"secret,omitempty"`
}

// CustomFieldsFromStrings parses "label=value" lines as typed by a user.
// A leading '!' on the label marks the field as secret.
func CustomFieldsFromStrings(s []string) ([]CustomField, error) {
	fields := make([]CustomField, len(s))
	for n, item := range s {
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, ErrIncorrectField
		}
		label, secret := strings.CutPrefix(parts[0], "!")
		fields[n] = CustomField{Label: label, Value: parts[1], Secret: secret}
	}
	return fields, nil
}

// VaultEntry is one credential held in the vault.
type VaultEntry struct {
	ID           string        `json:"id" cbor:"id"`
	Name         string        `json:"name" cbor:"name"`
	Username     string        `json:"username" cbor:"username"`
	Password     string        `json:"password" cbor:"password"`
	URL          string        `json:"url,omitempty" cbor:"url,omitempty"`
	Notes        string        `json:"notes,omitempty" cbor:"notes,omitempty"`
	Category     Category      `json:"category" cbor:"category"`
	Favorite     bool          `json:"favorite" cbor:"favorite"`
	CreatedAt    time.Time     `json:"created_at" cbor:"created_at"`
	ModifiedAt   time.Time     `json:"modified_at" cbor:"modified_at"`
	TOTPSecret   string        `json:"totp_secret,omitempty" cbor:"totp_secret,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty" cbor:"custom_fields,omitempty"`
}

// Clone returns a deep copy of e.
func (e VaultEntry) Clone() VaultEntry {
	if e.CustomFields != nil {
		e.CustomFields = append([]CustomField(nil), e.CustomFields...)
	}
	return e
}

// Touch records a modification at now, never moving ModifiedAt before CreatedAt.
func (e *VaultEntry) Touch(now time.Time) {
	if now.Before(e.CreatedAt) {
		now = e.CreatedAt
	}
	e.ModifiedAt = now
}

// Matches reports whether query occurs in the entry's name, username or URL,
// ignoring case. An empty query matches everything.
func (e VaultEntry) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(e.Name), q) ||
		strings.Contains(strings.ToLower(e.Username), q) ||
		strings.Contains(strings.ToLower(e.URL), q)
}

// HasTOTP reports whether the entry carries a TOTP seed.
func (e VaultEntry) HasTOTP() bool {
	return strings.TrimSpace(e.TOTPSecret) != ""
}

// CloneEntries deep-copies a slice of entries.
func CloneEntries(in []VaultEntry) []VaultEntry {
	out := make([]VaultEntry, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
