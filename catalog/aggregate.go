package catalog

import "fmt"

// Summary is the mean star value and the number of votes for a movie.
// A zero Votes value means nobody has rated the movie yet and Average is meaningless.
type Summary struct {
	Average float64
	Votes   int
}

// HasVotes reports whether the summary covers at least one rating.
func (s Summary) HasVotes() bool { return s.Votes > 0 }

// String renders the summary the way the rating widget shows it.
func (s Summary) String() string {
	if !s.HasVotes() {
		return "No ratings yet"
	}
	noun := "votes"
	if s.Votes == 1 {
		noun = "vote"
	}
	return fmt.Sprintf("%.1f/5 (%d %s)", s.Average, s.Votes, noun)
}

// Aggregate computes the arithmetic mean and count of stars. No weighting, no decay.
func Aggregate(stars []int) Summary {
	if len(stars) == 0 {
		return Summary{}
	}
	total := 0
	for _, s := range stars {
		total += s
	}
	return Summary{Average: float64(total) / float64(len(stars)), Votes: len(stars)}
}
