// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var (
	// ErrInvalidFormat is returned when the input has no recognizable
	// international calling code (for example it does not start with "+").
	ErrInvalidFormat = errors.New("phone: invalid format")
	// ErrInvalidNumber is returned when the input parses but is not an
	// assigned number in the numbering plan.
	ErrInvalidNumber = errors.New("phone: invalid number")
)

// Regions that do not name a country.
var nonGeographicRegions = map[string]struct{}{
	"":    {},
	"ZZ":  {},
	"001": {},
}

// Number is a parsed and validated phone number.
type Number struct {
	// E164 is the canonical form: "+", country code, national number.
	E164 string
	// Region is the ISO 3166-1 alpha-2 code, empty when the number has none.
	Region string
}

// HasRegion reports whether the number maps to a country.
func (n Number) HasRegion() bool {
	return n.Region != ""
}

// Normalizer parses international phone numbers. Numbers must carry their
// own country calling code; no default region is assumed.
type Normalizer struct{}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Parse parses raw once and returns its canonical form and region.
func (n *Normalizer) Parse(raw string) (Number, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Number{}, ErrInvalidFormat
	}

	number, err := phonenumbers.Parse(trimmed, "")
	if err != nil {
		return Number{}, ErrInvalidFormat
	}

	if !phonenumbers.IsValidNumber(number) {
		return Number{}, ErrInvalidNumber
	}

	region := phonenumbers.GetRegionCodeForNumber(number)
	if _, ok := nonGeographicRegions[region]; ok {
		region = ""
	}

	return Number{
		E164:   phonenumbers.Format(number, phonenumbers.E164),
		Region: region,
	}, nil
}

// Canonical formats input to E.164. If parsing fails, it returns the trimmed input.
func (n *Normalizer) Canonical(input string) string {
	trimmed := strings.TrimSpace(input)
	parsed, err := n.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	return parsed.E164
}
