// Package match resolves free-text queries to catalog titles with fuzzy string scoring.
package match

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// tokenSetWeight discounts token-set scores, which reach 100 whenever one side is a
// subset of the other.
const tokenSetWeight = 0.95

// Normalize lowercases s, turns every non letter/digit rune into a space and collapses
// runs of whitespace.
func Normalize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Ratio is the normalised edit-distance similarity of two already normalised strings,
// on a 0..100 scale. Empty input scores 0.
func Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(longest))))
}

// TokenSortRatio compares the strings after sorting their words, so word order is ignored.
func TokenSortRatio(a, b string) int {
	return Ratio(sortedTokens(strings.Fields(a)), sortedTokens(strings.Fields(b)))
}

// TokenSetRatio compares the shared words against each side's leftovers.
func TokenSetRatio(a, b string) int {
	setA, setB := tokenSet(a), tokenSet(b)
	var common, onlyA, onlyB []string
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			common = append(common, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for tok := range setB {
		if _, ok := setA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}
	base := sortedTokens(common)
	withA := strings.TrimSpace(base + " " + sortedTokens(onlyA))
	withB := strings.TrimSpace(base + " " + sortedTokens(onlyB))
	best := Ratio(withA, withB)
	if base != "" {
		best = max(best, Ratio(base, withA), Ratio(base, withB))
	}
	return best
}

// Score is the similarity of a query and a title on a 0..100 scale: the best of the plain,
// token-sort and (discounted) token-set ratios over the normalised strings. Identical
// non-empty spellings always score 100, even when nothing survives normalisation.
func Score(query, title string) int {
	if q := strings.TrimSpace(query); q != "" && q == strings.TrimSpace(title) {
		return 100
	}
	a, b := Normalize(query), Normalize(title)
	if a == "" || b == "" {
		return 0
	}
	best := max(Ratio(a, b), TokenSortRatio(a, b))
	set := int(math.Round(float64(TokenSetRatio(a, b)) * tokenSetWeight))
	return max(best, set)
}

func sortedTokens(tokens []string) string {
	out := append([]string(nil), tokens...)
	sort.Strings(out)
	return strings.Join(out, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}
