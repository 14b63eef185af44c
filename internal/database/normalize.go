package database

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// CleanName trims a display name, collapses inner whitespace and converts it
// to NFC so that visually identical names are stored identically.
func CleanName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// NameKey normalizes a name for comparison (lowercase, no diacritics, spaces for dashes).
// Candidates are unique by this key.
func NameKey(name string) string {
	name = RemoveDiacritics(CleanName(name))
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return name
}

// NormalizeExternalID canonicalizes a voter's external identifier (national ID,
// student number) by removing whitespace and upper-casing it.
func NormalizeExternalID(id string) string {
	return strings.ToUpper(strings.Join(strings.Fields(id), ""))
}
