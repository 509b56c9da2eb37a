// Package timex holds time helpers shared by the configuration loaders.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidDuration = errors.New("invalid duration")

// Duration is a time.Duration that config files may spell either as a Go
// duration string ("90s", "5m") or as an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
	case int:
		d.Duration = time.Duration(val)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDuration, val)
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("%w: %v", ErrInvalidDuration, v)
	}
	return nil
}
