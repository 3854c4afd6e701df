// Package db provides database connection helpers and schema migration.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens the process-wide Postgres pool and verifies it is reachable.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return database, nil
}

// Migrate applies idempotent schema changes for the catalog tables.
// It is the fallback for databases that cannot run versioned migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS movies (
			id SERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			private_msg_id BIGINT UNIQUE,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ratings (
			user_id BIGINT NOT NULL,
			movie_id INTEGER NOT NULL REFERENCES movies(id),
			rating SMALLINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
			timestamp TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (user_id, movie_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ratings_movie ON ratings(movie_id)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
