package scraper

import (
	"regexp"
	"strings"
)

var (
	// grading-company tokens with an optional grade, e.g. "PSA 10", "BGS9.5",
	// "SGC 8", bare "CGC"
	gradingTokenRe = regexp.MustCompile(`(?i)\b(PSA|BGS|SGC|CGC)\s*((10|[1-9])(\.5)?)?\b`)
	// serial-number fraction tokens, e.g. "#12/99", "045/150"
	fractionTokenRe = regexp.MustCompile(`#?\d+\s*/\s*\d+`)
	spaceRe         = regexp.MustCompile(`\s{2,}`)
)

// NormalizeQuery loosens a search query for the zero-result fallback: grading
// tokens and serial fractions narrow marketplace searches too aggressively, so
// the fallback retries without them. Returns the input unchanged when nothing
// was stripped.
func NormalizeQuery(query string) string {
	loosened := gradingTokenRe.ReplaceAllString(query, " ")
	loosened = fractionTokenRe.ReplaceAllString(loosened, " ")
	loosened = spaceRe.ReplaceAllString(loosened, " ")
	loosened = strings.TrimSpace(loosened)
	if loosened == "" {
		return query
	}
	return loosened
}
