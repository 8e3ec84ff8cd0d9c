package identity

import (
	"regexp"
	"strings"
)

var phoneStripRe = regexp.MustCompile(`[\s\-()]`)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone strips spaces, hyphens and parentheses.
// "+1 (234) 567-8900" becomes "+12345678900".
func NormalizePhone(s string) string {
	return strings.TrimSpace(phoneStripRe.ReplaceAllString(s, ""))
}

// NormalizeState upper-cases a US state code.
func NormalizeState(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// SSNLast4 returns the last four characters of a validated SSN.
func SSNLast4(ssn string) string {
	if len(ssn) <= 4 {
		return ssn
	}
	return ssn[len(ssn)-4:]
}
