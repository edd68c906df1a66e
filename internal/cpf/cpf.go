// Package cpf validates and formats Brazilian CPF numbers.
package cpf

import "strings"

// Normalize strips everything but digits from a CPF.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Format renders an 11-digit CPF as ddd.ddd.ddd-dd. Inputs that do not
// normalize to 11 digits are returned unchanged.
func Format(s string) string {
	digits := Normalize(s)
	if len(digits) != 11 {
		return s
	}
	return digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
}

// Valid reports whether s is a checksum-valid CPF. Separators are ignored.
func Valid(s string) bool {
	digits := Normalize(s)
	if len(digits) != 11 {
		return false
	}

	// All-repeated CPFs pass the mod-11 arithmetic but are not issued.
	if strings.Count(digits, digits[:1]) == 11 {
		return false
	}

	if checkDigit(digits, 9) != int(digits[9]-'0') {
		return false
	}
	return checkDigit(digits, 10) == int(digits[10]-'0')
}

// checkDigit computes the verification digit over the first n digits,
// weighted n+1 down to 2.
func checkDigit(digits string, n int) int {
	sum := 0
	for i := 0; i < n; i++ {
		sum += int(digits[i]-'0') * (n + 1 - i)
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// Mask hides all but the last three digits of a CPF. Used in user-facing
// rejection messages so the other party's full number is never leaked.
func Mask(s string) string {
	digits := Normalize(s)
	if len(digits) < 3 {
		return "***"
	}
	return "***" + digits[len(digits)-3:]
}
