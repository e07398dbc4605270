package transport

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNotString = errors.New("expected a string or null")

// OptionalString tells apart an absent key (Set false), an explicit null
// (Set true, Value nil) and a string value.
type OptionalString struct {
	Value *string
	Set   bool
}

func (o OptionalString) IsZero() bool {
	return !o.Set
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errNotString
	}
	o.Value = &raw
	return nil
}

// Trimmed returns the value with surrounding whitespace removed; null reads as "".
func (o OptionalString) Trimmed() string {
	if o.Value == nil {
		return ""
	}
	return strings.TrimSpace(*o.Value)
}

// HasValue reports whether the key was sent with a non-null value.
func (o OptionalString) HasValue() bool {
	return o.Set && o.Value != nil
}

// Some builds a set OptionalString holding s.
func Some(s string) OptionalString {
	return OptionalString{Value: &s, Set: true}
}

// QueryValue adapts gin's (value, present) query lookup.
func QueryValue(value string, present bool) OptionalString {
	if !present {
		return OptionalString{}
	}
	return Some(value)
}
