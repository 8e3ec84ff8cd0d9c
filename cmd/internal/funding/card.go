package funding

import "strings"

// NormalizeCardNumber strips the spaces and hyphens people type between digit groups.
func NormalizeCardNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\v', '\f', '-':
			return -1
		}
		return r
	}, s)
}

// IsLuhnValid reports whether num is a non-empty string of ASCII digits whose
// Luhn checksum is zero. Separators are not accepted; normalize first.
func IsLuhnValid(num string) bool {
	if num == "" {
		return false
	}

	sum := 0
	double := false
	for i := len(num) - 1; i >= 0; i-- {
		c := num[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
