// Package phone normalizes and validates dialable phone numbers.
package phone

import (
	"strconv"
	"strings"
)

const defaultCountryCode = "1"

// Normalize converts raw input to E.164. All non-digit characters are
// stripped, a bare 10-digit national number gets the default country
// code, and the result carries a single leading "+". Empty input
// normalizes to the empty string, which callers must treat as "no
// destination". Normalize is idempotent.
func Normalize(raw string) string {
	digits := digitsOf(raw)
	if digits == "" {
		return ""
	}
	if len(digits) == 10 {
		return "+" + defaultCountryCode + digits
	}
	return "+" + digits
}

// IsValid reports whether raw is a valid 10-digit national number with
// an area code in [200, 999]. Any other digit count is invalid,
// including numbers that already carry a country code.
func IsValid(raw string) bool {
	digits := digitsOf(raw)
	if len(digits) != 10 {
		return false
	}
	area, err := strconv.Atoi(digits[:3])
	if err != nil {
		return false
	}
	return area >= 200 && area <= 999
}

func digitsOf(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
