// Package catalog persists indexed movies and per-user ratings and aggregates the ratings
// into the summary shown on the rating widget.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrMovieNotFound is returned when a movie id does not reference an indexed movie.
	ErrMovieNotFound = errors.New("movie not found")
	// ErrInvalidStars is returned for ratings outside MinStars..MaxStars.
	ErrInvalidStars = errors.New("stars out of range")
)

// Postgres error codes the store maps onto sentinel errors.
const (
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Store is the catalog and rating store. It borrows the process-wide pool; every method
// is a single statement so no transaction spans two logical steps.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListTitles returns every indexed title ordered by id.
func (s *Store) ListTitles(ctx context.Context) ([]Title, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title FROM movies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	var titles []Title
	for rows.Next() {
		var t Title
		if err := rows.Scan(&t.ID, &t.Title); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// UpsertMovie records a tagged source post. It is a no-op when the source message is
// already indexed; inserted reports whether a new row was created.
func (s *Store) UpsertMovie(ctx context.Context, title string, sourceMessageID int) (inserted bool, err error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO movies (title, private_msg_id) VALUES ($1, $2)
		 ON CONFLICT (private_msg_id) DO NOTHING`, title, sourceMessageID)
	if err != nil {
		return false, fmt.Errorf("upsert movie %d: %w", sourceMessageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert movie %d: rows affected: %w", sourceMessageID, err)
	}
	return n > 0, nil
}

// Movie loads one movie by id.
func (s *Store) Movie(ctx context.Context, id int) (Movie, error) {
	var m Movie
	var created sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, private_msg_id, created_at FROM movies WHERE id = $1`, id).
		Scan(&m.ID, &m.Title, &m.SourceMessageID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Movie{}, ErrMovieNotFound
	}
	if err != nil {
		return Movie{}, fmt.Errorf("load movie %d: %w", id, err)
	}
	m.CreatedAt = created.Time
	return m, nil
}

// CountMovies returns the catalog size.
func (s *Store) CountMovies(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM movies`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return n, nil
}

// UpsertRating stores a vote, replacing any earlier vote by the same user for the same
// movie (last write wins) and stamping the current time.
func (s *Store) UpsertRating(ctx context.Context, userID int64, movieID, stars int) error {
	if stars < MinStars || stars > MaxStars {
		return fmt.Errorf("%w: %d", ErrInvalidStars, stars)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (user_id, movie_id, rating, timestamp) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, movie_id) DO UPDATE SET rating = EXCLUDED.rating, timestamp = NOW()`,
		userID, movieID, stars)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgForeignKeyViolation:
				return fmt.Errorf("rate movie %d: %w", movieID, ErrMovieNotFound)
			case pgCheckViolation:
				return fmt.Errorf("rate movie %d: %w", movieID, ErrInvalidStars)
			}
		}
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// Ratings returns every stored rating for a movie.
func (s *Store) Ratings(ctx context.Context, movieID int) ([]Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, movie_id, rating, timestamp FROM ratings WHERE movie_id = $1 ORDER BY timestamp`, movieID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var out []Rating
	for rows.Next() {
		var r Rating
		var ts sql.NullTime
		if err := rows.Scan(&r.UserID, &r.MovieID, &r.Stars, &ts); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		r.Timestamp = ts.Time
		out = append(out, r)
	}
	return out, rows.Err()
}

// RatingSummary aggregates the stored ratings of a movie. A movie nobody rated yields a
// zero Summary rather than an error.
func (s *Store) RatingSummary(ctx context.Context, movieID int) (Summary, error) {
	ratings, err := s.Ratings(ctx, movieID)
	if err != nil {
		return Summary{}, err
	}
	stars := make([]int, len(ratings))
	for i, r := range ratings {
		stars[i] = r.Stars
	}
	return Aggregate(stars), nil
}
