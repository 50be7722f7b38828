// Package strings splits free-text queries into search terms.
package strings

import (
	"strings"
)

// MaxTerms caps how many terms one query may carry.
const MaxTerms = 10

// SearchTerms splits q on whitespace and returns the distinct lower-cased terms
// in order of first appearance, at most MaxTerms of them.
//
// Example:
//
//	SearchTerms("  Go  gopher go ")
//	// Returns: []string{"go", "gopher"}
func SearchTerms(q string) []string {
	terms := DedupeLower(strings.Fields(q))
	if len(terms) > MaxTerms {
		terms = terms[:MaxTerms]
	}
	return terms
}

// DedupeLower lower-cases values and drops empties and repeats. Order is
// preserved.
func DedupeLower(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		lowered := strings.ToLower(strings.TrimSpace(v))
		if lowered == "" {
			continue
		}
		if _, ok := seen[lowered]; !ok {
			seen[lowered] = struct{}{}
			result = append(result, lowered)
		}
	}
	return result
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns a term into an ILIKE pattern matching it as a literal
// substring.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// ContainsPatterns maps ContainsPattern over terms.
func ContainsPatterns(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = ContainsPattern(t)
	}
	return out
}
