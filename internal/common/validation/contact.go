package validation

import (
	"regexp"
	"strings"
)

const (
	EmailPattern = `^[^\s@]+@[^\s@]+\.[^\s@]+$`
	// PhonePattern is E.164: optional '+', no leading zero, 2 to 15 digits.
	PhonePattern = `^\+?[1-9]\d{1,14}$`
)

var (
	emailRegexp = regexp.MustCompile(EmailPattern)
	phoneRegexp = regexp.MustCompile(PhonePattern)
)

// IsValidEmail reports whether s looks like local@domain.tld.
func IsValidEmail(s string) bool {
	return emailRegexp.MatchString(s)
}

// IsValidPhone reports whether s is an E.164-style number.
func IsValidPhone(s string) bool {
	return phoneRegexp.MatchString(s)
}

// FilterBlankPhones drops entries that are empty after trimming. Kept
// entries are returned unchanged.
func FilterBlankPhones(numbers []string) []string {
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		if strings.TrimSpace(n) == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// InvalidPhones returns the entries that fail IsValidPhone, in order.
func InvalidPhones(numbers []string) []string {
	var invalid []string
	for _, n := range numbers {
		if !IsValidPhone(n) {
			invalid = append(invalid, n)
		}
	}
	return invalid
}
