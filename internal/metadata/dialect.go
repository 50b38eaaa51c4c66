package metadata

import (
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/aidanlsb/chronos/internal/sqlutil"
)

// Driver names a supported database backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver parses a configured driver name. Empty means SQLite.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", s)
	}
}

type dialect struct {
	driver     Driver
	sqlDriver  string
	pragmas    []string
	statements []string
}

func (d dialect) rebind(query string) string {
	if d.driver == DriverPostgres {
		return sqlutil.Rebind(query)
	}
	return query
}

// dsn turns a configured DSN into the form the sql driver expects.
func (d dialect) dsn(raw string) string {
	if d.driver != DriverSQLite {
		return raw
	}
	if raw == ":memory:" {
		return "file::memory:?_pragma=foreign_keys(1)"
	}
	if strings.HasPrefix(raw, "file:") {
		return raw
	}
	return "file:" + filepath.ToSlash(raw) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

var sqliteDialect = dialect{
	driver:    DriverSQLite,
	sqlDriver: "sqlite",
	pragmas: []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	},
	statements: []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scripts (
			uid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			schedule TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			script TEXT NOT NULL REFERENCES scripts(uid) DEFERRABLE INITIALLY DEFERRED,
			exit_code INTEGER NOT NULL DEFAULT 0,
			output TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_script ON logs(script)`,
	},
}

var postgresDialect = dialect{
	driver:    DriverPostgres,
	sqlDriver: "pgx",
	statements: []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scripts (
			uid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			schedule TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id BIGSERIAL PRIMARY KEY,
			script TEXT NOT NULL REFERENCES scripts(uid) DEFERRABLE INITIALLY DEFERRED,
			exit_code INTEGER NOT NULL DEFAULT 0,
			output TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_script ON logs(script)`,
	},
}

func dialectFor(driver Driver) (dialect, error) {
	switch driver {
	case DriverSQLite, "":
		return sqliteDialect, nil
	case DriverPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}
