package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// TrimBarcode only strips surrounding whitespace. Barcode payloads are
// matched byte for byte, so '<', '>' and control characters are kept.
func TrimBarcode(input string) string {
	return strings.TrimSpace(input)
}

// SanitizeIdentifier cleans a device id or NIM reported by a scanner: tags
// and control characters are removed and whitespace trimmed.
func SanitizeIdentifier(input string) string {
	input = strings.TrimSpace(input)
	input = stripHTML(input)
	return removeControlChars(input)
}

// SanitizeText sanitizes free text such as attendee names
func SanitizeText(input string) string {
	trimmed := strings.TrimSpace(input)
	trimmed = stripHTML(trimmed)

	var result strings.Builder
	for _, r := range trimmed {
		if unicode.IsPrint(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

func stripHTML(input string) string {
	return htmlTag.ReplaceAllString(input, "")
}

func removeControlChars(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
