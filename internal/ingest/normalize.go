package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPhone indicates an observation carried a phone number that
// cannot be canonicalized. Such observations are dropped at ingestion.
var ErrInvalidPhone = errors.New("phone number cannot be normalized")

const (
	minPhoneDigits = 6
	maxPhoneDigits = 15
)

// CanonicalPhone normalizes a raw phone number into the E.164-like form used
// as the registry key: an optional leading plus followed by digits only.
// Separator characters are stripped and an international 00 prefix is
// rewritten to a plus.
func CanonicalPhone(raw string) (string, error) {
	var builder strings.Builder
	builder.Grow(len(raw))

	trimmed := strings.TrimSpace(raw)
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '+' && i == 0:
			builder.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// separator noise
		default:
			return "", fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidPhone, r, raw)
		}
	}

	normalized := builder.String()
	if strings.HasPrefix(normalized, "00") {
		normalized = "+" + normalized[2:]
	}

	digits := strings.TrimPrefix(normalized, "+")
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", fmt.Errorf("%w: %d digits in %q", ErrInvalidPhone, len(digits), raw)
	}
	return normalized, nil
}
