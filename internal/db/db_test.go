package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"
	assert.Equal(t, q, Rebind(SQLite, q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", Rebind(Postgres, q))
}

func TestConnectAndMigrate_SQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lifelock.db")

	conn, err := Connect(ctx, "sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, Migrate(conn, SQLite))
	// idempotent
	require.NoError(t, Migrate(conn, SQLite))

	for _, table := range []string{"usage_events", "usage_daily_summary", "timebox_tasks"} {
		var name string
		err := conn.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(context.Background(), "oracle", "x")
	assert.Error(t, err)
}
