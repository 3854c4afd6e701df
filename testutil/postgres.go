package testutil

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/onnwee/reelbot/db"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// postgresDSN resolves the DSN for integration tests: TEST_PG_DSN wins, otherwise a
// throwaway container is started once per test binary when TEST_PG_CONTAINER=1.
func postgresDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_PG_DSN"); dsn != "" {
		return dsn
	}
	if os.Getenv("TEST_PG_CONTAINER") != "1" {
		return ""
	}
	containerOnce.Do(func() {
		ctx := context.Background()
		c, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("reelbot"),
			postgres.WithUsername("reelbot"),
			postgres.WithPassword("reelbot"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = c.ConnectionString(ctx, "sslmode=disable")
	})
	if containerErr != nil {
		t.Fatalf("failed to start postgres container: %v", containerErr)
	}
	return containerDSN
}

// SetupTestDB creates a test database connection, runs migrations and empties the
// catalog tables. It skips the test if neither TEST_PG_DSN nor TEST_PG_CONTAINER is set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := postgresDSN(t)
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()
	database, err := db.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Setup(ctx, database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	truncate := func() {
		if _, err := database.ExecContext(context.Background(), `TRUNCATE ratings, movies RESTART IDENTITY CASCADE`); err != nil {
			t.Errorf("failed to truncate tables: %v", err)
		}
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		database.Close()
	})
	return database
}
