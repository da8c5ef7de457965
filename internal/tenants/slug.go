package tenants

import (
	"regexp"
	"strings"
)

var (
	slugRe      = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)
	slugCleanRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeSlug lowercases and trims a user supplied slug.
func NormalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidSlug reports whether slug is 3..63 chars of [a-z0-9-] without a
// leading or trailing dash.
func ValidSlug(slug string) bool {
	return slugRe.MatchString(slug)
}

// SlugFromName derives a slug candidate from a restaurant name. Non-ASCII
// letters are dropped, so the result may still need validating.
func SlugFromName(name string) string {
	s := slugCleanRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if len(s) > 63 {
		s = strings.TrimRight(s[:63], "-")
	}
	return s
}
