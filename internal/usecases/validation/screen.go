package validation

import "regexp"

// The screen is a small denylist, not a grammar: domain values (UCI moves,
// chess:// URIs, catalog identifiers) never contain control characters,
// path traversal, or template/script fragments, so anything matching here
// is hostile or corrupt input.
var denylist = []struct {
	pattern *regexp.Regexp
	reason  string
}{
	{regexp.MustCompile(`[\x00-\x1f\x7f]`), "contains control characters"},
	{regexp.MustCompile(`\.\./`), "contains path traversal"},
	{regexp.MustCompile(`(?i)<\s*script`), "contains script markup"},
	{regexp.MustCompile("[`$]\\{?"), "contains shell or template metacharacters"},
}

const maxFieldLength = 512

// screen checks one free-text value against the denylist.
func screen(text string) (string, bool) {
	if len(text) > maxFieldLength {
		return "exceeds maximum length", true
	}
	for _, entry := range denylist {
		if entry.pattern.MatchString(text) {
			return entry.reason, true
		}
	}
	return "", false
}
