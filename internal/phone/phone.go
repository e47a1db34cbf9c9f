// Package phone validates and formats caller-entered phone numbers captured
// as raw DTMF digit strings.
package phone

import "strings"

// Digits returns only the decimal digit characters of raw, in order.
// Punctuation, whitespace and a leading "+" are all dropped.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether raw contains a dialable North American number:
// exactly 10 digits, or 11 digits with a leading country code of 1.
// It never fails; malformed or empty input simply reports false.
func Valid(raw string) bool {
	d := Digits(raw)
	switch len(d) {
	case 10:
		return true
	case 11:
		return d[0] == '1'
	default:
		return false
	}
}

// Normalize returns the E.164 form of a number that passed Valid, adding
// the +1 country prefix to bare 10-digit numbers. Returns "" for input
// that does not validate.
func Normalize(raw string) string {
	if !Valid(raw) {
		return ""
	}
	d := Digits(raw)
	if len(d) == 10 {
		return "+1" + d
	}
	return "+" + d
}

// Verbalize renders a digit string as a comma-joined per-character sequence
// so a text-to-speech engine reads it back slowly: "5551234567" becomes
// "5,5,5,1,2,3,4,5,6,7".
func Verbalize(digits string) string {
	if digits == "" {
		return ""
	}
	parts := make([]string, 0, len(digits))
	for _, r := range digits {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}
