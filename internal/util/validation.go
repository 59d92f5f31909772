package util

import (
	"regexp"
)

var sessionCodeRegex = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// IsValidSessionCode checks the 4-character uppercase alphanumeric
// session code format. Minted codes use a narrower alphabet, but lookup
// accepts the full format so legacy codes stay joinable.
func IsValidSessionCode(s string) bool {
	return sessionCodeRegex.MatchString(s)
}
