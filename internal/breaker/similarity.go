package breaker

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// similarity returns the difflib ratio of two strings compared
// character by character, in [0, 1].
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	matcher := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return matcher.Ratio()
}

// maxSimilarity returns the highest similarity of candidate against
// each of the previous responses.
func maxSimilarity(candidate string, previous []string) float64 {
	best := 0.0
	for _, prev := range previous {
		if r := similarity(candidate, prev); r > best {
			best = r
		}
	}
	return best
}
