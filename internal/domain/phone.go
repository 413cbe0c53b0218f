package domain

import (
	"errors"
	"strings"
	"unicode"
)

const maxPhoneLen = 15

// ErrInvalidPhone is returned for phone numbers that are not in +digits form.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone returns "+" followed by the digits of raw.
// raw must start with "+" and be at most 15 characters long.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "+") || len(raw) > maxPhoneLen {
		return "", ErrInvalidPhone
	}

	var b strings.Builder
	b.WriteByte('+')
	for _, r := range raw {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 {
		return "", ErrInvalidPhone
	}
	return b.String(), nil
}
