package core

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// FilterAll is the payer filter value that disables payer filtering.
const FilterAll = "all"

// maxSuggestDistance bounds how far a typo may be from a payer name
// before no suggestion is offered.
const maxSuggestDistance = 2

// ParsePayer resolves s to a household member, case-insensitively.
func ParsePayer(s string) (Payer, error) {
	if p, ok := canonicalPayer(s); ok {
		return p, nil
	}
	if hint, ok := SuggestPayer(s); ok {
		return "", fmt.Errorf("%w: %q (did you mean %s?)", ErrUnknownPayer, s, hint)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPayer, s)
}

// SuggestPayer returns the closest known payer to s, if any is close enough.
func SuggestPayer(s string) (Payer, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	best, bestDist := Payer(""), maxSuggestDistance+1
	for _, k := range KnownPayers {
		d := levenshtein.ComputeDistance(s, strings.ToLower(string(k)))
		if d < bestDist {
			best, bestDist = k, d
		}
	}
	return best, best != ""
}

// ParsePayerFilter normalises a query value to "all" or a payer name.
// Unknown values fall back to "all".
func ParsePayerFilter(s string) string {
	if p, ok := canonicalPayer(s); ok {
		return string(p)
	}
	return FilterAll
}
