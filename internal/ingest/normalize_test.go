package ingest

import (
	"errors"
	"testing"
)

func TestCanonicalPhone(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"plain digits", "5551234567", "5551234567"},
		{"plus prefix kept", "+15551234567", "+15551234567"},
		{"separators stripped", "+1 (555) 123-45.67", "+15551234567"},
		{"double zero rewritten", "0015551234567", "+15551234567"},
		{"surrounding whitespace", "  5551234567  ", "5551234567"},
		{"minimum length", "123456", "123456"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalPhone(tc.raw)
			if err != nil {
				t.Fatalf("CanonicalPhone(%q): %v", tc.raw, err)
			}
			if got != tc.want {
				t.Fatalf("CanonicalPhone(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}

func TestCanonicalPhoneRejectsGarbage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"letters", "call-me-maybe"},
		{"interior plus", "555+1234567"},
		{"too short", "12345"},
		{"too long", "1234567890123456"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CanonicalPhone(tc.raw); !errors.Is(err, ErrInvalidPhone) {
				t.Fatalf("CanonicalPhone(%q) err = %v, want ErrInvalidPhone", tc.raw, err)
			}
		})
	}
}

func TestCanonicalPhoneIsStable(t *testing.T) {
	first, err := CanonicalPhone("00 49 (30) 901820")
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := CanonicalPhone(first)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if first != second {
		t.Fatalf("normalization not idempotent: %q then %q", first, second)
	}
}
