package database

import (
	"database/sql"
	"os"
	"testing"

	"github.com/choplin/mdreview/internal/config"
)

func setupTestDB(t *testing.T) *Context {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("MDREVIEW_DIR", tmp)

	ctx, err := CreateDatabase("")
	if err != nil {
		t.Fatalf("CreateDatabase returned error: %v", err)
	}

	t.Cleanup(func() {
		if err := CloseDatabase(ctx); err != nil {
			t.Fatalf("CloseDatabase error: %v", err)
		}
	})

	return ctx
}

func TestDatabaseCreationAndMigration(t *testing.T) {
	ctx := setupTestDB(t)

	dbPath := config.GetDBPath()
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file to exist at %s: %v", dbPath, err)
	}

	var version int
	var dirty bool
	if err := ctx.DB.QueryRow("SELECT version, dirty FROM schema_migrations").Scan(&version, &dirty); err != nil {
		t.Fatalf("failed to read schema_migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("expected clean version 1, got %d (dirty=%v)", version, dirty)
	}

	if !tableExists(t, ctx.DB, "sidecars") {
		t.Fatalf("expected table sidecars to exist")
	}
}

func TestCreateDatabaseIsReentrant(t *testing.T) {
	setupTestDB(t)

	second, err := CreateDatabase("")
	if err != nil {
		t.Fatalf("second CreateDatabase returned error: %v", err)
	}
	if err := CloseDatabase(second); err != nil {
		t.Fatalf("CloseDatabase error: %v", err)
	}
}

func TestCloseDatabaseNil(t *testing.T) {
	if err := CloseDatabase(nil); err != nil {
		t.Fatalf("CloseDatabase(nil) returned error: %v", err)
	}
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return name == table
}

func assertCount(t *testing.T, db *sql.DB, table string, want int) {
	t.Helper()
	var got int
	//nolint:gosec // table names are fixed in tests
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&got); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	if got != want {
		t.Fatalf("expected %d rows in %s, got %d", want, table, got)
	}
}
