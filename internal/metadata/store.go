// Package metadata handles the relational store holding script metadata and
// execution logs.
//
// Two tables matter to a rename:
//
//	scripts(uid PK, name, ...)          one row per script
//	logs(id PK, script -> scripts.uid)  many rows per script
//
// logs.script is a deferred foreign key so a session can re-point logs and
// the owning script row in either order before committing.
package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aidanlsb/chronos/internal/sqlutil"
	"github.com/aidanlsb/chronos/internal/uid"
)

// CurrentSchemaVersion is the schema version written to the meta table.
const CurrentSchemaVersion = 1

var (
	// ErrNotFound indicates the requested script or log row does not exist.
	ErrNotFound = errors.New("not found in metadata store")
	// ErrExists indicates a script row already exists for the identifier.
	ErrExists = errors.New("already exists in metadata store")
)

// Script is a scripts row.
type Script struct {
	UID       uid.ID
	Name      string
	Enabled   bool
	Schedule  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Log is a logs row.
type Log struct {
	ID        int64
	Script    uid.ID
	ExitCode  int
	Output    string
	CreatedAt time.Time
}

// Options selects the backend and its connection string.
type Options struct {
	Driver Driver
	DSN    string
}

// Store is the metadata database handle.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open opens (and initializes) the metadata store described by opts.
func Open(opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, errors.New("database dsn is required")
	}

	db, err := sql.Open(d.sqlDriver, d.dsn(opts.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if d.driver == DriverSQLite {
		// SQLite allows a single writer; in-memory databases also live and
		// die with their connection.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, dialect: d, now: time.Now}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens a SQLite store at path.
func OpenSQLite(path string) (*Store, error) {
	return Open(Options{Driver: DriverSQLite, DSN: path})
}

// OpenInMemory opens an in-memory SQLite store (for testing).
func OpenInMemory() (*Store, error) {
	return OpenSQLite(":memory:")
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver {
	return s.dialect.driver
}

func (s *Store) initialize() error {
	ctx := context.Background()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, pragma := range s.dialect.pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	for _, stmt := range s.dialect.statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`), strconv.Itoa(CurrentSchemaVersion))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// SchemaVersion returns the schema version recorded in the meta table.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

// CreateScript inserts a scripts row. Registration belongs to other
// subsystems; this exists for them and for fixtures.
func (s *Store) CreateScript(ctx context.Context, sc Script) error {
	if !sc.UID.Valid() {
		return fmt.Errorf("invalid script uid %q", sc.UID)
	}
	now := s.now()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	if sc.UpdatedAt.IsZero() {
		sc.UpdatedAt = sc.CreatedAt
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO scripts (uid, name, enabled, schedule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO NOTHING
	`), sc.UID.String(), sc.Name, sc.Enabled, sc.Schedule, sc.CreatedAt.Unix(), sc.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create script %s: %w", sc.UID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("create script %s: %w", sc.UID, ErrExists)
	}
	return nil
}

// AppendLog inserts a logs row and returns its id.
func (s *Store) AppendLog(ctx context.Context, l Log) (int64, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`
		INSERT INTO logs (script, exit_code, output, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`), l.Script.String(), l.ExitCode, l.Output, l.CreatedAt.Unix()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append log for %s: %w", l.Script, err)
	}
	return id, nil
}

// Script returns the scripts row for id.
func (s *Store) Script(ctx context.Context, id uid.ID) (*Script, error) {
	return scriptByUID(ctx, s.db, s.dialect, id)
}

// Scripts returns all scripts ordered by uid.
func (s *Store) Scripts(ctx context.Context) ([]Script, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, name, enabled, schedule, created_at, updated_at
		FROM scripts ORDER BY uid
	`)
	if err != nil {
		return nil, err
	}
	return sqlutil.ScanRows(rows, func(r *sql.Rows) (Script, error) {
		sc, err := scanScript(r)
		if err != nil {
			return Script{}, err
		}
		return *sc, nil
	})
}

// Logs returns the logs of script id ordered by id.
func (s *Store) Logs(ctx context.Context, id uid.ID) ([]Log, error) {
	logs, err := logsForScript(ctx, s.db, s.dialect, id)
	if err != nil {
		return nil, err
	}
	out := make([]Log, len(logs))
	for i, l := range logs {
		out[i] = *l
	}
	return out, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScript(r rowScanner) (*Script, error) {
	var (
		sc               Script
		id               string
		created, updated int64
	)
	if err := r.Scan(&id, &sc.Name, &sc.Enabled, &sc.Schedule, &created, &updated); err != nil {
		return nil, err
	}
	sc.UID = uid.ID(id)
	sc.CreatedAt = time.Unix(created, 0)
	sc.UpdatedAt = time.Unix(updated, 0)
	return &sc, nil
}

func scriptByUID(ctx context.Context, q queryer, d dialect, id uid.ID) (*Script, error) {
	row := q.QueryRowContext(ctx, d.rebind(`
		SELECT uid, name, enabled, schedule, created_at, updated_at
		FROM scripts WHERE uid = ?
	`), id.String())
	sc, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("script %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load script %s: %w", id, err)
	}
	return sc, nil
}

func logsForScript(ctx context.Context, q queryer, d dialect, id uid.ID) ([]*Log, error) {
	rows, err := q.QueryContext(ctx, d.rebind(`
		SELECT id, script, exit_code, output, created_at
		FROM logs WHERE script = ? ORDER BY id
	`), id.String())
	if err != nil {
		return nil, fmt.Errorf("load logs for %s: %w", id, err)
	}
	return sqlutil.ScanRows(rows, func(r *sql.Rows) (*Log, error) {
		var (
			l       Log
			script  string
			created int64
		)
		if err := r.Scan(&l.ID, &script, &l.ExitCode, &l.Output, &created); err != nil {
			return nil, err
		}
		l.Script = uid.ID(script)
		l.CreatedAt = time.Unix(created, 0)
		return &l, nil
	})
}
