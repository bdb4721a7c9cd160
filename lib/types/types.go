// Package types contains nullable value types used by the config layers.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// ErrNullDuration signals an invalid JSON value for a duration field.
var ErrNullDuration = errors.New("types: invalid duration, must be a string or null")

// Duration is an alias for time.Duration that de/serialises to/from JSON
// strings in the standard Go duration notation ("10s", "1m30s", ...).
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// TimeDuration returns the value as a time.Duration.
func (d Duration) TimeDuration() time.Duration {
	return time.Duration(d)
}

// UnmarshalText converts text data to a Duration.
func (d *Duration) UnmarshalText(data []byte) error {
	v, err := time.ParseDuration(string(data))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// UnmarshalJSON converts JSON data to a Duration.
func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		return d.UnmarshalText([]byte(str))
	}
	return ErrNullDuration
}

// MarshalJSON returns the JSON representation of a Duration.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// NullDuration is a nullable Duration, in the style of the guregu/null types
// the rest of the config uses.
type NullDuration struct {
	Duration
	Valid bool
}

// NewNullDuration returns a NullDuration with the given validity.
func NewNullDuration(d time.Duration, valid bool) NullDuration {
	return NullDuration{Duration(d), valid}
}

// NullDurationFrom returns a valid NullDuration.
func NullDurationFrom(d time.Duration) NullDuration {
	return NullDuration{Duration(d), true}
}

// UnmarshalText converts text data to a valid NullDuration; empty text
// unsets it.
func (d *NullDuration) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*d = NullDuration{}
		return nil
	}
	if err := d.Duration.UnmarshalText(data); err != nil {
		return err
	}
	d.Valid = true
	return nil
}

// UnmarshalJSON converts JSON data to a NullDuration; JSON null unsets it.
func (d *NullDuration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte(`null`)) {
		d.Valid = false
		return nil
	}
	if err := d.Duration.UnmarshalJSON(data); err != nil {
		return err
	}
	d.Valid = true
	return nil
}

// MarshalJSON returns the JSON representation, null when not valid.
func (d NullDuration) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte(`null`), nil
	}
	return d.Duration.MarshalJSON()
}

// Set implements the pflag.Value interface, so NullDuration can back a CLI
// flag directly; an unset flag stays null.
func (d *NullDuration) Set(s string) error {
	return d.UnmarshalText([]byte(s))
}

// Type implements the pflag.Value interface.
func (d NullDuration) Type() string {
	return "duration"
}

// ValueOrZero returns the value or the zero duration when null.
func (d NullDuration) ValueOrZero() time.Duration {
	if !d.Valid {
		return 0
	}
	return time.Duration(d.Duration)
}
