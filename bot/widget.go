package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/onnwee/reelbot/catalog"
	"github.com/onnwee/reelbot/messenger"
)

const (
	notFoundText   = "🎬 Movie not found. Try exact title!"
	newMovieRating = "New movie!"
)

// ratingKeyboard lays out the 1..5 star buttons as [1 2 3] / [4 5].
func ratingKeyboard(movieID int) messenger.Keyboard {
	button := func(stars int) messenger.Button {
		return messenger.Button{
			Label: strings.Repeat("⭐", stars),
			Data:  Action{Kind: ActionRate, MovieID: movieID, Stars: stars}.Encode(),
		}
	}
	return messenger.Keyboard{
		{button(1), button(2), button(3)},
		{button(4), button(5)},
	}
}

// widgetText renders the rating widget caption. A zero summary reads as a new movie.
func widgetText(s catalog.Summary, retention time.Duration) string {
	rating := newMovieRating
	if s.HasVotes() {
		rating = s.String()
	}
	return fmt.Sprintf("⭐ Current Rating: %s\n⏳ Auto-deletes in %s\n\n🎯 Watched it? Rate:", rating, formatRetention(retention))
}

// formatRetention renders a window as "3 hours", "1 hour" or "90 minutes".
func formatRetention(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
