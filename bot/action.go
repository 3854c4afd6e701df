package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/onnwee/reelbot/catalog"
)

// ErrMalformedAction is returned for button payloads that do not decode into an Action.
var ErrMalformedAction = errors.New("malformed callback action")

// ActionKind names what a button press asks for.
type ActionKind string

// ActionRate stores a star rating for a movie.
const ActionRate ActionKind = "rate"

// Action is a decoded inline-button payload, e.g. "rate_12_4".
type Action struct {
	Kind    ActionKind
	MovieID int
	Stars   int
}

// Encode renders the payload carried by the button.
func (a Action) Encode() string {
	return fmt.Sprintf("%s_%d_%d", a.Kind, a.MovieID, a.Stars)
}

// ParseAction decodes a button payload. Only well-formed rate actions with a positive
// movie id and 1..5 stars are accepted.
func ParseAction(data string) (Action, error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 || ActionKind(parts[0]) != ActionRate {
		return Action{}, fmt.Errorf("%w: %q", ErrMalformedAction, data)
	}
	movieID, err := strconv.Atoi(parts[1])
	if err != nil || movieID <= 0 {
		return Action{}, fmt.Errorf("%w: bad movie id in %q", ErrMalformedAction, data)
	}
	stars, err := strconv.Atoi(parts[2])
	if err != nil || stars < catalog.MinStars || stars > catalog.MaxStars {
		return Action{}, fmt.Errorf("%w: bad stars in %q", ErrMalformedAction, data)
	}
	return Action{Kind: ActionRate, MovieID: movieID, Stars: stars}, nil
}
