// Package utils provides text helpers shared by channel matching and search.
package utils

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

var countryCodeRegex = regexp.MustCompile(`^[A-Z]{2,3}:\s*`)

// Fold returns a case-folded copy of s suitable for case-insensitive comparison.
// Folding handles non-ASCII scripts such as Cyrillic channel names.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// NormalizeChannelName standardizes channel names by removing common prefixes and folding case.
func NormalizeChannelName(name string) string {
	normalized := name
	normalized = countryCodeRegex.ReplaceAllString(normalized, "")
	normalized = Fold(normalized)
	normalized = strings.TrimSpace(normalized)

	replacements := []struct {
		old string
		new string
	}{
		{" ", ""},
		{"-", ""},
		{"_", ""},
		{".", ""},
		{"&", "and"},
		{"+", "plus"},
	}

	for _, r := range replacements {
		normalized = strings.ReplaceAll(normalized, r.old, r.new)
	}

	return normalized
}

// ExtractChannelName strips quality and region suffixes such as " (HD)" or " [UK]" from a channel name.
func ExtractChannelName(name string) string {
	if name == "" {
		return ""
	}

	if idx := strings.Index(name, " ("); idx != -1 {
		name = name[:idx]
	}

	if idx := strings.Index(name, " ["); idx != -1 {
		name = name[:idx]
	}

	return strings.TrimSpace(name)
}
