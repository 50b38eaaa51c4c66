package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aidanlsb/chronos/internal/uid"
)

var (
	// ErrSessionClosed indicates the session was already committed or closed.
	ErrSessionClosed = errors.New("metadata session is closed")
	// ErrNotTracked indicates a staged record was not loaded through the session.
	ErrNotTracked = errors.New("record was not loaded by this session")
)

// Session is a unit of work over one database transaction.
//
// Records are loaded through the session, mutated in memory and staged.
// Nothing staged is written until Commit, which flushes every staged record
// and commits the transaction. Close rolls back an uncommitted session and
// must be called on every path.
type Session struct {
	tx      *sql.Tx
	dialect dialect
	now     func() time.Time

	// loaded scripts, keyed by pointer, remember the uid they were read with
	// so a changed uid can still find its row.
	scripts map[*Script]uid.ID
	logs    map[*Log]struct{}
	staged  []any
	closed  bool
}

// Begin starts a session.
func (s *Store) Begin(ctx context.Context) (*Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin metadata session: %w", err)
	}
	return &Session{
		tx:      tx,
		dialect: s.dialect,
		now:     s.now,
		scripts: make(map[*Script]uid.ID),
		logs:    make(map[*Log]struct{}),
	}, nil
}

// LogsForScript returns the logs whose script reference equals id.
func (ss *Session) LogsForScript(ctx context.Context, id uid.ID) ([]*Log, error) {
	if ss.closed {
		return nil, ErrSessionClosed
	}
	logs, err := logsForScript(ctx, ss.tx, ss.dialect, id)
	if err != nil {
		return nil, err
	}
	for _, l := range logs {
		ss.logs[l] = struct{}{}
	}
	return logs, nil
}

// ScriptByUID returns the script row for id, or an error wrapping ErrNotFound.
func (ss *Session) ScriptByUID(ctx context.Context, id uid.ID) (*Script, error) {
	if ss.closed {
		return nil, ErrSessionClosed
	}
	sc, err := scriptByUID(ctx, ss.tx, ss.dialect, id)
	if err != nil {
		return nil, err
	}
	ss.scripts[sc] = sc.UID
	return sc, nil
}

// StageLog schedules l to be written at commit.
func (ss *Session) StageLog(l *Log) error {
	if ss.closed {
		return ErrSessionClosed
	}
	if _, ok := ss.logs[l]; !ok {
		return fmt.Errorf("stage log: %w", ErrNotTracked)
	}
	ss.staged = append(ss.staged, l)
	return nil
}

// StageScript schedules sc to be written at commit.
func (ss *Session) StageScript(sc *Script) error {
	if ss.closed {
		return ErrSessionClosed
	}
	if _, ok := ss.scripts[sc]; !ok {
		return fmt.Errorf("stage script: %w", ErrNotTracked)
	}
	ss.staged = append(ss.staged, sc)
	return nil
}

// Commit flushes staged records in staging order and commits.
// A failed commit rolls the transaction back; the session is closed either way.
func (ss *Session) Commit(ctx context.Context) error {
	if ss.closed {
		return ErrSessionClosed
	}
	for _, rec := range ss.staged {
		if err := ss.flush(ctx, rec); err != nil {
			_ = ss.rollback()
			return err
		}
	}
	ss.closed = true
	if err := ss.tx.Commit(); err != nil {
		return fmt.Errorf("commit metadata session: %w", err)
	}
	return nil
}

// Close releases the session, rolling back anything not committed.
// It is safe to call after Commit.
func (ss *Session) Close() error {
	if ss.closed {
		return nil
	}
	return ss.rollback()
}

func (ss *Session) rollback() error {
	ss.closed = true
	if err := ss.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (ss *Session) flush(ctx context.Context, rec any) error {
	switch r := rec.(type) {
	case *Log:
		_, err := ss.tx.ExecContext(ctx, ss.dialect.rebind(
			`UPDATE logs SET script = ?, exit_code = ?, output = ? WHERE id = ?`),
			r.Script.String(), r.ExitCode, r.Output, r.ID)
		if err != nil {
			return fmt.Errorf("write log %d: %w", r.ID, err)
		}
	case *Script:
		orig := ss.scripts[r]
		r.UpdatedAt = ss.now()
		res, err := ss.tx.ExecContext(ctx, ss.dialect.rebind(`
			UPDATE scripts SET uid = ?, name = ?, enabled = ?, schedule = ?, updated_at = ?
			WHERE uid = ?
		`), r.UID.String(), r.Name, r.Enabled, r.Schedule, r.UpdatedAt.Unix(), orig.String())
		if err != nil {
			return fmt.Errorf("write script %s: %w", orig, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("write script %s: %w", orig, ErrNotFound)
		}
		ss.scripts[r] = r.UID
	}
	return nil
}
