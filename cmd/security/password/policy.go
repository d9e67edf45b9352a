package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password against the policy. Failures are *PolicyError.
func (c Config) Validate(password string) error {
	n := utf8.RuneCountInString(password)
	if n < c.Policy.MinLength {
		return &PolicyError{Rule: ErrPasswordTooShort, Limit: c.Policy.MinLength}
	}
	if n > c.Policy.MaxLength {
		return &PolicyError{Rule: ErrPasswordTooLong, Limit: c.Policy.MaxLength}
	}
	if c.Policy.RejectVeryWeak && veryWeak(password) {
		return &PolicyError{Rule: ErrWeakPassword}
	}
	return nil
}

var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {},
	"123456": {}, "1234567": {}, "12345678": {}, "123456789": {},
	"qwerty": {}, "qwerty123": {}, "abc123": {}, "111111": {},
	"letmein": {}, "welcome": {}, "unileap": {},
}

// veryWeak catches a single repeated character, short all-digit PINs and a
// short list of the most common passwords.
func veryWeak(pw string) bool {
	s := strings.TrimSpace(pw)
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	same, digits := true, true
	for _, r := range s {
		if r != first {
			same = false
		}
		if !unicode.IsDigit(r) {
			digits = false
		}
	}
	return same || (digits && utf8.RuneCountInString(s) < 12)
}
