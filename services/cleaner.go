package services

import (
	"strings"
	"unicode"
)

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// CityFromLocation keeps the part of a "City, Sector" location before the first comma.
func CityFromLocation(location string) string {
	city, _, _ := strings.Cut(location, ",")
	return NormaliseText(city)
}

// BrandModelFromTitle splits "peugeot 208 active" into ("PEUGEOT", "208").
// Titles with fewer than two words yield empty strings.
func BrandModelFromTitle(title string) (brand, model string) {
	words := strings.Fields(title)
	if len(words) < 2 {
		return "", ""
	}
	return strings.ToUpper(words[0]), capitalise(words[1])
}

// StripMarker removes a leading marker such as a check mark from a list entry.
func StripMarker(s, marker string) string {
	if marker != "" {
		s = strings.ReplaceAll(s, marker, "")
	}
	return NormaliseText(s)
}

func capitalise(s string) string {
	r := []rune(strings.ToLower(s))
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
