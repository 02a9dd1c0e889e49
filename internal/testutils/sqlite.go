package testutils

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"lifelock-backend/internal/db"
)

// OpenTestSQLite returns a migrated sqlite database in a temp dir, closed when
// the test ends.
func OpenTestSQLite(t testing.TB) *sql.DB {
	t.Helper()
	conn, err := db.Connect(context.Background(), string(db.SQLite), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.Migrate(conn, db.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
