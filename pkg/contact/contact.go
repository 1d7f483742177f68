// Package contact validates the name and phone a user supplies for a booking.
package contact

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minNameRunes = 2
	maxNameRunes = 50
)

var (
	ErrInvalidName  = errors.New("name must be 2-50 letters, spaces or hyphens")
	ErrInvalidPhone = errors.New("phone must contain 10-15 digits with optional leading +")
)

var phonePattern = regexp.MustCompile(`^\+?\d{10,15}$`)

// NormalizeName trims the input and checks it consists of letters, spaces and hyphens.
func NormalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(name)
	if n < minNameRunes || n > maxNameRunes {
		return "", ErrInvalidName
	}
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsSpace(r), r == '-':
		default:
			return "", ErrInvalidName
		}
	}
	if letters == 0 {
		return "", ErrInvalidName
	}
	return name, nil
}

// NormalizePhone drops every character except digits and '+', then checks the result.
// The normalized form is what gets stored.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	if !phonePattern.MatchString(phone) {
		return "", ErrInvalidPhone
	}
	return phone, nil
}

// MaskPhone hides all but the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
