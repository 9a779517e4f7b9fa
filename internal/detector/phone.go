package detector

import (
	"regexp"
	"strings"
)

var (
	mobilePattern   = regexp.MustCompile(`^[6-9]\d{9}$`)
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "", "\t", "")
)

// ValidatePhone normalises an Indian mobile number. Spaces, dashes, parens and dots are
// removed along with a leading "+91" or a "91" prefix on a 12-digit number; the rest must
// be ten digits starting 6-9.
func ValidatePhone(raw string) (string, bool) {
	digits := phoneSeparators.Replace(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(digits, "+91"):
		digits = digits[3:]
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	}
	if !mobilePattern.MatchString(digits) {
		return "", false
	}
	return digits, true
}
