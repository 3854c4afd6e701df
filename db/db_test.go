package db

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set; skipping postgres migration test")
	}
	database, err := Connect(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("failed to close db: %v", err)
		}
	})
	return database
}

func tableExists(t *testing.T, database *sql.DB, table string) bool {
	t.Helper()
	var exists bool
	err := database.QueryRow(`SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_name = $1
	)`, table).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", table, err)
	}
	return exists
}

func TestMigrateIdempotent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := Migrate(ctx, database); err != nil {
			t.Fatalf("migrate run %d: %v", i+1, err)
		}
	}
	for _, table := range []string{"movies", "ratings"} {
		if !tableExists(t, database, table) {
			t.Errorf("table %s does not exist after migration", table)
		}
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	database := openTestDB(t)

	if err := RunMigrations(database); err != nil {
		t.Fatalf("first RunMigrations() error = %v", err)
	}
	version1, dirty1, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error = %v", err)
	}
	if err := RunMigrations(database); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}
	version2, dirty2, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatalf("GetMigrationVersion() error = %v", err)
	}
	if version1 != version2 || dirty1 != dirty2 {
		t.Errorf("migration state changed: (%d,%v) -> (%d,%v)", version1, dirty1, version2, dirty2)
	}
	if version1 < 1 {
		t.Errorf("migration version = %d, want >= 1", version1)
	}
}

// openSchemaDB returns a pool whose search_path is a throwaway schema, so destructive
// migration tests do not disturb tables other packages test against.
func openSchemaDB(t *testing.T, schema string) *sql.DB {
	t.Helper()
	base := openTestDB(t)
	ctx := context.Background()
	if _, err := base.ExecContext(ctx, `DROP SCHEMA IF EXISTS `+schema+` CASCADE`); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if _, err := base.ExecContext(ctx, `CREATE SCHEMA `+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		if _, err := base.ExecContext(ctx, `DROP SCHEMA IF EXISTS `+schema+` CASCADE`); err != nil {
			t.Errorf("drop schema: %v", err)
		}
	})

	dsn := os.Getenv("TEST_PG_DSN")
	switch {
	case !strings.Contains(dsn, "://"):
		dsn += " search_path=" + schema
	case strings.Contains(dsn, "?"):
		dsn += "&search_path=" + schema
	default:
		dsn += "?search_path=" + schema
	}
	database, err := Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect to schema %s: %v", schema, err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("failed to close db: %v", err)
		}
	})
	return database
}

func schemaTableExists(t *testing.T, database *sql.DB, table string) bool {
	t.Helper()
	var exists bool
	err := database.QueryRow(`SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	)`, table).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", table, err)
	}
	return exists
}

func TestMigrateDownRoundTrip(t *testing.T) {
	database := openSchemaDB(t, "reelbot_migrate_roundtrip")

	if err := RunMigrations(database); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	versionBefore, _, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatalf("GetMigrationVersion() before down error = %v", err)
	}
	if !schemaTableExists(t, database, "movies") {
		t.Fatal("movies table missing after up")
	}

	if err := MigrateDown(database); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	versionAfter, dirty, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatalf("GetMigrationVersion() after down error = %v", err)
	}
	if dirty {
		t.Error("migration is dirty after down")
	}
	if versionAfter >= versionBefore {
		t.Errorf("version did not decrease: %d -> %d", versionBefore, versionAfter)
	}
	if versionAfter == 0 {
		for _, table := range []string{"movies", "ratings"} {
			if schemaTableExists(t, database, table) {
				t.Errorf("table %s still exists after rolling back the catalog migration", table)
			}
		}
	}

	if err := RunMigrations(database); err != nil {
		t.Fatalf("RunMigrations() after rollback error = %v", err)
	}
	versionFinal, dirty, err := GetMigrationVersion(database)
	if err != nil {
		t.Fatalf("GetMigrationVersion() after re-apply error = %v", err)
	}
	if dirty {
		t.Error("migration is dirty after re-apply")
	}
	if versionFinal != versionBefore {
		t.Errorf("version after re-apply = %d, want %d", versionFinal, versionBefore)
	}
	if !schemaTableExists(t, database, "ratings") {
		t.Error("ratings table missing after re-apply")
	}
}

func TestRatingsForeignKey(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	if err := Setup(ctx, database); err != nil {
		t.Fatalf("setup: %v", err)
	}
	_, err := database.ExecContext(ctx, `INSERT INTO ratings (user_id, movie_id, rating) VALUES (1, -42, 5)`)
	if err == nil {
		t.Fatal("expected foreign key violation for unknown movie")
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	if up == 0 || up != down {
		t.Errorf("embedded migrations up=%d down=%d, want matching non-zero counts", up, down)
	}
}
