package catalog

import "time"

// Title is the (id, title) pair the matcher scores against.
type Title struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// Movie is an indexed post from the source channel.
type Movie struct {
	ID              int
	Title           string
	SourceMessageID int
	CreatedAt       time.Time
}

// Rating is one user's vote for one movie. (UserID, MovieID) identifies it.
type Rating struct {
	UserID    int64
	MovieID   int
	Stars     int
	Timestamp time.Time
}

const (
	MinStars = 1
	MaxStars = 5
)
