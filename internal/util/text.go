package util

import (
	"regexp"
	"strings"
)

var (
	rePunct  = regexp.MustCompile(`[.,#'"]`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// Common street-suffix abbreviations unified to their long form so
// "100 Main St" and "100 MAIN STREET" compare equal.
var suffixForms = map[string]string{
	"st":   "street",
	"str":  "street",
	"ave":  "avenue",
	"av":   "avenue",
	"blvd": "boulevard",
	"dr":   "drive",
	"rd":   "road",
	"ln":   "lane",
	"ct":   "court",
	"cir":  "circle",
	"pl":   "place",
	"pkwy": "parkway",
	"hwy":  "highway",
	"ter":  "terrace",
}

// NormalizeAddress produces the comparison form of a street address:
// lowercased, punctuation stripped, whitespace collapsed, suffix
// abbreviations expanded.
func NormalizeAddress(input string) string {
	s := strings.ToLower(strings.TrimSpace(input))
	s = rePunct.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	parts := strings.Split(s, " ")
	for i, p := range parts {
		if long, ok := suffixForms[p]; ok {
			parts[i] = long
		}
	}
	return strings.Join(parts, " ")
}

// SameAddress reports whether two raw addresses normalize to the same form.
func SameAddress(a, b string) bool {
	na := NormalizeAddress(a)
	if na == "" {
		return false
	}
	return na == NormalizeAddress(b)
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func StringPtr(v string) *string { return &v }

func IntPtr(v int) *int { return &v }
