package phone

import (
	"errors"
	"strings"
)

// Uganda MSISDN rules for the MTN network.
const (
	CountryCode    = "256"
	trunkPrefix    = "0"
	nationalLength = 12 // country code + 9 subscriber digits
)

// mtnPrefixes lists the two- and three-digit carrier prefixes (the digits
// immediately after the country code) routed to the MTN network.
var mtnPrefixes = map[string]bool{
	"76":  true,
	"77":  true,
	"78":  true,
	"772": true,
	"774": true,
	"776": true,
	"777": true,
	"778": true,
}

var (
	// ErrMalformed indicates the input does not normalize to a number of the
	// expected national length.
	ErrMalformed = errors.New("phone: malformed number")

	// ErrUnknownCarrier indicates a well-formed number outside the supported
	// carrier prefix table.
	ErrUnknownCarrier = errors.New("phone: unrecognized carrier prefix")
)

// Normalize converts arbitrary phone input to canonical international digits:
// non-digit characters are stripped, a leading trunk prefix is replaced with
// the country code, and a missing country code is prepended. Normalize is
// idempotent and performs no validation beyond reshaping.
func Normalize(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if digits == "" {
		return digits
	}
	if strings.HasPrefix(digits, trunkPrefix) {
		return CountryCode + digits[len(trunkPrefix):]
	}
	if !strings.HasPrefix(digits, CountryCode) {
		return CountryCode + digits
	}
	return digits
}

// Validate checks a normalized number against the national length and the MTN
// carrier prefix table. It returns the canonical number on success.
func Validate(normalized string) (string, error) {
	if len(normalized) != nationalLength {
		return "", ErrMalformed
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return "", ErrMalformed
		}
	}

	rest := normalized[len(CountryCode):]
	if mtnPrefixes[rest[:3]] || mtnPrefixes[rest[:2]] {
		return normalized, nil
	}
	return "", ErrUnknownCarrier
}

// NormalizeAndValidate is the single entry point callers should use: it
// normalizes raw input and validates the result in one step.
func NormalizeAndValidate(raw string) (string, error) {
	return Validate(Normalize(raw))
}
