package util

import (
	"regexp"
	"strings"
)

// Iranian mobile numbers only: 11 digits, leading 09.
var phonePattern = regexp.MustCompile(`^09\d{9}$`)

// NormalizePhone strips formatting characters and rewrites the +98 / 0098
// international prefixes to the local 0 form used as the storage key.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		switch r {
		case ' ', '-', '(', ')':
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()

	switch {
	case strings.HasPrefix(s, "+98"):
		s = "0" + s[3:]
	case strings.HasPrefix(s, "0098"):
		s = "0" + s[4:]
	case strings.HasPrefix(s, "98") && len(s) == 12:
		s = "0" + s[2:]
	}

	return s
}

// IsValidPhone reports whether the normalized number is an acceptable
// mobile number.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// MaskPhone hides the middle digits for log output.
func MaskPhone(phone string) string {
	if len(phone) < 7 {
		return "***"
	}
	return phone[:4] + "***" + phone[len(phone)-2:]
}
