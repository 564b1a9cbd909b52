package identifiers

import (
	"strings"
	"unicode"
)

// Type is the kind of ISBN a value is.
type Type string

const (
	TypeISBN10  Type = "isbn_10"
	TypeISBN13  Type = "isbn_13"
	TypeUnknown Type = ""
)

// DetectType reports whether value, once normalized, is a valid ISBN-10 or
// ISBN-13.
func DetectType(value string) Type {
	normalized := NormalizeISBN(value)
	switch {
	case ValidateISBN13(normalized):
		return TypeISBN13
	case ValidateISBN10(normalized):
		return TypeISBN10
	default:
		return TypeUnknown
	}
}

// IsValidISBN reports whether value is a valid ISBN of either length.
func IsValidISBN(value string) bool {
	return DetectType(value) != TypeUnknown
}

// CleanISBN strips hyphens and whitespace, leaving everything else alone. It is
// the form used for lookups and cover file names.
func CleanISBN(value string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, value)
}

// NormalizeISBN removes an "ISBN" prefix and keeps only digits and the
// ISBN-10 check character X.
func NormalizeISBN(value string) string {
	value = strings.TrimSpace(strings.ToUpper(value))
	value = strings.TrimPrefix(value, "ISBN:")
	value = strings.TrimPrefix(value, "ISBN")

	var result strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) || r == 'X' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ValidateISBN10 validates an ISBN-10 checksum (mod 11, weights 10 down to 1).
func ValidateISBN10(isbn string) bool {
	if len(isbn) != 10 {
		return false
	}

	var sum int
	for i, r := range isbn {
		var digit int
		switch {
		case r == 'X' || r == 'x':
			if i != 9 {
				return false
			}
			digit = 10
		case unicode.IsDigit(r):
			digit = int(r - '0')
		default:
			return false
		}
		sum += digit * (10 - i)
	}
	return sum%11 == 0
}

// ValidateISBN13 validates an ISBN-13 checksum (alternating weights 1 and 3).
func ValidateISBN13(isbn string) bool {
	if len(isbn) != 13 {
		return false
	}

	var sum int
	for i, r := range isbn {
		if !unicode.IsDigit(r) {
			return false
		}
		sum += int(r-'0') * isbn13Weight(i)
	}
	return sum%10 == 0
}

// ToISBN13 converts a valid ISBN-10 to its 978-prefixed ISBN-13. A valid
// ISBN-13 is returned normalized. Anything else returns "" and false.
func ToISBN13(value string) (string, bool) {
	normalized := NormalizeISBN(value)
	switch {
	case ValidateISBN13(normalized):
		return normalized, true
	case ValidateISBN10(normalized):
	default:
		return "", false
	}

	body := "978" + normalized[:9]
	var sum int
	for i, r := range body {
		sum += int(r-'0') * isbn13Weight(i)
	}
	check := (10 - sum%10) % 10
	return body + string(rune('0'+check)), true
}

func isbn13Weight(i int) int {
	if i%2 == 0 {
		return 1
	}
	return 3
}
