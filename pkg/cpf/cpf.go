// Package cpf validates Brazilian CPF document numbers, the identifier
// used to deduplicate students across imports and registrations.
package cpf

import "strings"

// Normalize strips every non-digit character from a raw CPF string.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Valid reports whether the CPF passes the two-check-digit verification.
// Sequences of eleven identical digits pass the arithmetic but are not
// issued, so they are rejected outright.
func Valid(raw string) bool {
	digits := Normalize(raw)
	if len(digits) != 11 {
		return false
	}
	if allSame(digits) {
		return false
	}

	d1 := checkDigit(digits[:9])
	d2 := checkDigit(digits[:10])
	return d1 == int(digits[9]-'0') && d2 == int(digits[10]-'0')
}

// checkDigit computes a verification digit over a digit prefix using the
// standard descending weights modulo 11.
func checkDigit(prefix string) int {
	weight := len(prefix) + 1
	total := 0
	for i := 0; i < len(prefix); i++ {
		total += int(prefix[i]-'0') * (weight - i)
	}
	r := total % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
