// Package emailaddr provides email address normalization and syntax checks
// for distribution targets. It deliberately implements only the loose
// local@domain shape the platform itself accepts; deliverability is the
// platform's problem.
package emailaddr

import (
	"regexp"
	"strings"
)

var reEmail = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Normalize trims surrounding whitespace and lowercases the address.
// Equality of email recipients is defined over the normalized form.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Valid reports whether the raw input, after trimming, matches a standard
// local@domain pattern.
func Valid(raw string) bool {
	return reEmail.MatchString(strings.TrimSpace(raw))
}
