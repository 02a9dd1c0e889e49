package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

// goose keeps its dialect and base FS in package state.
var migrateMu sync.Mutex

// Dialect names the SQL flavour a *sql.DB speaks.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Connect opens and pings a database for the given driver ("postgres" or
// "sqlite"). The caller owns the returned handle and must Close it.
func Connect(ctx context.Context, driver, connString string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch Dialect(driver) {
	case Postgres:
		db, err = sql.Open("postgres", connString)
	case SQLite:
		db, err = sql.Open("sqlite", sqliteDSN(connString))
		if err == nil {
			// a single writer avoids SQLITE_BUSY under concurrent handlers
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s ping: %w", driver, err)
	}
	return db, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Migrate applies the embedded goose migrations for the dialect.
func Migrate(db *sql.DB, dialect Dialect) error {
	gooseDialect := "postgres"
	if dialect == SQLite {
		gooseDialect = "sqlite3"
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations/"+string(dialect)); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Rebind rewrites '?' placeholders into '$n' for postgres. Queries are written
// once with '?' and rebound per dialect.
func Rebind(dialect Dialect, query string) string {
	if dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
