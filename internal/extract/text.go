package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	// "Location: 1,234-1,240" or "Page: 12"; the header is whitespace-normalised
	// before matching so non-breaking spaces are already plain spaces here.
	locationPattern = regexp.MustCompile(`(?i)(?:Location|Page):\s*([\d,]+(?:\s*-\s*[\d,]+)?)`)
	locationShape   = regexp.MustCompile(`^\d+(,\d+)*(-\d+(,\d+)*)?$`)

	// "Yellow highlight | Location: 12"
	colorPattern = regexp.MustCompile(`(?i)^\s*([a-z]+)\s+highlight`)

	authorPrefix = regexp.MustCompile(`(?i)^by:\s*`)
)

// CleanText decodes HTML entities and collapses every whitespace run,
// including non-breaking spaces, into a single space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// ParseLocation returns the location or page range named in an annotation
// header, or "" when the header carries none or it does not parse.
func ParseLocation(header string) string {
	m := locationPattern.FindStringSubmatch(CleanText(header))
	if m == nil {
		return ""
	}
	loc := strings.ReplaceAll(m[1], " ", "")
	loc = strings.TrimRight(loc, ",-")
	if !locationShape.MatchString(loc) {
		return ""
	}
	return loc
}

// ParseColor returns the word preceding "highlight" in an annotation header.
func ParseColor(header string) string {
	m := colorPattern.FindStringSubmatch(CleanText(header))
	if m == nil {
		return ""
	}
	return m[1]
}

// CleanAuthor normalises an author line and strips the "By:" prefix.
func CleanAuthor(s string) string {
	return strings.TrimSpace(authorPrefix.ReplaceAllString(CleanText(s), ""))
}

var genericTitles = map[string]bool{
	"":                               true,
	"unknown title":                  true,
	"kindle":                         true,
	"amazon kindle":                  true,
	"notebook":                       true,
	"your notebook":                  true,
	"kindle notebook":                true,
	"your kindle notes & highlights": true,
	"kindle cloud reader":            true,
	"loading...":                     true,
}

// IsGenericTitle reports whether a title is a page placeholder rather than
// the name of a book.
func IsGenericTitle(title string) bool {
	return genericTitles[strings.ToLower(CleanText(title))]
}
