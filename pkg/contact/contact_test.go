package contact

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	valid := map[string]string{
		"Anna Maria":   "Anna Maria",
		"Anne-Marie":   "Anne-Marie",
		"  Иван  ":     "Иван",
		"Jo":           "Jo",
		"José Álvarez": "José Álvarez",
	}
	for in, want := range valid {
		got, err := NormalizeName(in)
		if err != nil {
			t.Fatalf("NormalizeName(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}

	invalid := []string{"", "A", "A1", "Bob!", "--", strings.Repeat("a", 51)}
	for _, in := range invalid {
		if _, err := NormalizeName(in); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("NormalizeName(%q) err = %v, want ErrInvalidName", in, err)
		}
	}
}

func TestNormalizeNameCountsRunes(t *testing.T) {
	name := strings.Repeat("ж", 50)
	if _, err := NormalizeName(name); err != nil {
		t.Fatalf("50 cyrillic letters should be accepted: %v", err)
	}
}

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"+12345678901":       "+12345678901",
		"123-456-7890":       "1234567890",
		"+7 (912) 345-67-89": "+79123456789",
	}
	for in, want := range valid {
		got, err := NormalizePhone(in)
		if err != nil {
			t.Fatalf("NormalizePhone(%q) unexpected error: %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}

	invalid := []string{"", "12345", "abcdef1234", "1234567890123456", "12+34567890"}
	for _, in := range invalid {
		if _, err := NormalizePhone(in); !errors.Is(err, ErrInvalidPhone) {
			t.Fatalf("NormalizePhone(%q) err = %v, want ErrInvalidPhone", in, err)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("+12345678901"); got != "********8901" {
		t.Fatalf("mask = %q", got)
	}
	if got := MaskPhone("123"); got != "123" {
		t.Fatalf("short mask = %q", got)
	}
}
