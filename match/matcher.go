package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/onnwee/reelbot/catalog"
)

// TitleLister is the slice of the catalog store the matcher reads.
type TitleLister interface {
	ListTitles(ctx context.Context) ([]catalog.Title, error)
}

// Result is the best-scoring title for a query.
type Result struct {
	catalog.Title
	Score int
}

// Best returns the highest-scoring title. Equal scores prefer a title spelled exactly
// like the query, then one equal up to case, then the first encountered, so titles that
// normalise alike still resolve to the one typed verbatim. ok is false for an empty list.
func Best(query string, titles []catalog.Title) (best Result, ok bool) {
	query = strings.TrimSpace(query)
	bestRank := 0
	for _, t := range titles {
		s := Score(query, t.Title)
		r := spellingRank(query, t.Title)
		if !ok || s > best.Score || (s == best.Score && r > bestRank) {
			best = Result{Title: t, Score: s}
			bestRank = r
			ok = true
		}
	}
	return best, ok
}

// spellingRank orders equally scored titles by how literally they match the query.
func spellingRank(query, title string) int {
	title = strings.TrimSpace(title)
	switch {
	case title == query:
		return 2
	case strings.EqualFold(title, query):
		return 1
	}
	return 0
}

// Matcher resolves queries against the live catalog.
type Matcher struct {
	titles    TitleLister
	threshold int
}

// New returns a Matcher that accepts only scores strictly above threshold.
func New(titles TitleLister, threshold int) *Matcher {
	return &Matcher{titles: titles, threshold: threshold}
}

// Threshold returns the minimum score (exclusive) a match needs.
func (m *Matcher) Threshold() int { return m.threshold }

// Match returns the best title for query when its score clears the threshold.
func (m *Matcher) Match(ctx context.Context, query string) (Result, bool, error) {
	titles, err := m.titles.ListTitles(ctx)
	if err != nil {
		return Result{}, false, fmt.Errorf("match %q: %w", query, err)
	}
	best, ok := Best(query, titles)
	if !ok || best.Score <= m.threshold {
		return best, false, nil
	}
	return best, true, nil
}
