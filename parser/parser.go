// Package parser holds the pure text helpers used to turn scraped markup
// into record fields.
package parser

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceTokenPattern  = regexp.MustCompile(`\S*?\d[\d,]*(?:\.\d+)?\+*`)
	tablesRangePattern = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)
	digitPattern       = regexp.MustCompile(`\d`)
)

// PathIdentifier extracts the identifier and slug that follow segment in the
// URL path, e.g. "/detail/" in ".../detail/123/grand-hall/". The path must
// contain segment followed by a non-empty element; otherwise id is "". slug
// is "" when no second element exists.
func PathIdentifier(rawURL, segment string) (id, slug string) {
	if segment == "" {
		return "", ""
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	idx := strings.Index(path, segment)
	if idx < 0 {
		return "", ""
	}
	parts := strings.Split(path[idx+len(segment):], "/")
	id = strings.TrimSpace(parts[0])
	if id == "" {
		return "", ""
	}
	if len(parts) > 1 {
		slug = strings.TrimSpace(parts[1])
	}
	return id, slug
}

// SplitPrice splits a cell like "$1,200+ (Fri only)" into the first price
// token and the remaining qualifier. A leading "From" is dropped. ok is false
// when the text carries no price token.
func SplitPrice(text string) (from, days string, ok bool) {
	text = NormalizeSpace(text)
	loc := priceTokenPattern.FindStringIndex(text)
	if loc == nil {
		return "", text, false
	}
	lead := strings.TrimSpace(text[:loc[0]])
	if strings.EqualFold(lead, "from") {
		lead = ""
	}
	return text[loc[0]:loc[1]], strings.TrimSpace(lead + " " + text[loc[1]:]), true
}

// TablesRange is a parsed "10 - 20 tables" cell.
type TablesRange struct {
	Range string
	Min   int
	Max   int
	Days  string
}

// SplitTables extracts the numeric range and its qualifier from a capacity cell.
func SplitTables(text string) (TablesRange, bool) {
	text = NormalizeSpace(text)
	loc := tablesRangePattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return TablesRange{Days: text}, false
	}
	min, err := strconv.Atoi(text[loc[2]:loc[3]])
	if err != nil {
		return TablesRange{Days: text}, false
	}
	max, err := strconv.Atoi(text[loc[4]:loc[5]])
	if err != nil {
		return TablesRange{Days: text}, false
	}
	rest := strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
	return TablesRange{
		Range: text[loc[0]:loc[1]],
		Min:   min,
		Max:   max,
		Days:  rest,
	}, true
}

// ParseRating converts a rating attribute to a number, 0 when unparsable or
// not finite.
func ParseRating(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// CleanName trims whitespace and the site title suffix.
func CleanName(text, suffix string) string {
	text = NormalizeSpace(text)
	if suffix != "" {
		text = strings.ReplaceAll(text, NormalizeSpace(suffix), "")
	}
	return strings.TrimSpace(text)
}

// StripScheme removes a link scheme such as "tel:" or "mailto:".
func StripScheme(href, scheme string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(strings.ToLower(href), scheme) {
		href = href[len(scheme):]
	}
	if i := strings.Index(href, "?"); scheme == "mailto:" && i >= 0 {
		href = href[:i]
	}
	return strings.TrimSpace(href)
}

// IsAbsoluteURL reports whether href is an http(s) URL.
func IsAbsoluteURL(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")
}

// HasDigit reports whether text contains at least one digit.
func HasDigit(text string) bool {
	return digitPattern.MatchString(text)
}

// NormalizeSpace collapses runs of whitespace.
func NormalizeSpace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
