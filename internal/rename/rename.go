// Package rename moves a script from one identifier to another across the
// script directory, its execution environment, its generated artifacts and
// its metadata and log rows.
//
// A rename runs these steps in order:
//
//	start -> identity_resolved -> fs_relocated -> env_relocated
//	      -> metadata_staged -> committed -> notified
//
// Any failure ends in failed. Completed steps are never undone; the intent
// journal records how far a failed rename got so it can be resumed.
package rename

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aidanlsb/chronos/internal/events"
	"github.com/aidanlsb/chronos/internal/intent"
	"github.com/aidanlsb/chronos/internal/lock"
	"github.com/aidanlsb/chronos/internal/metadata"
	"github.com/aidanlsb/chronos/internal/scriptfs"
	"github.com/aidanlsb/chronos/internal/uid"
)

// State is a position in the rename state machine.
type State string

const (
	StateStart            State = "start"
	StateIdentityResolved State = "identity_resolved"
	StateFSRelocated      State = "fs_relocated"
	StateEnvRelocated     State = "env_relocated"
	StateMetadataStaged   State = "metadata_staged"
	StateCommitted        State = "committed"
	StateNotified         State = "notified"
	StateFailed           State = "failed"
)

// Relocator moves a script on disk.
type Relocator interface {
	RenameDir(oldID, newID uid.ID) error
	RenameSource(oldID, newID uid.ID) error
	PatchArtifacts(oldID, newID uid.ID, guard scriptfs.ArtifactGuard) ([]string, error)
	DirRelocated(oldID, newID uid.ID) bool
	SourceRelocated(oldID, newID uid.ID) bool
}

// EnvManager renames a script's execution environment.
type EnvManager interface {
	Rename(ctx context.Context, oldID, newID uid.ID) error
}

// envLookup is implemented by environment managers that can report whether
// an environment exists. Resume uses it to skip an env rename that already
// happened.
type envLookup interface {
	Exists(id uid.ID) bool
}

// Session is a metadata unit of work.
type Session interface {
	LogsForScript(ctx context.Context, id uid.ID) ([]*metadata.Log, error)
	ScriptByUID(ctx context.Context, id uid.ID) (*metadata.Script, error)
	StageLog(l *metadata.Log) error
	StageScript(sc *metadata.Script) error
	Commit(ctx context.Context) error
	Close() error
}

// Sessions opens a metadata session.
type Sessions func(ctx context.Context) (Session, error)

// StoreSessions opens sessions on a metadata store.
func StoreSessions(s *metadata.Store) Sessions {
	return func(ctx context.Context) (Session, error) {
		ss, err := s.Begin(ctx)
		if err != nil {
			return nil, err
		}
		return ss, nil
	}
}

// Request names the script to rename and its new name.
type Request struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// Result is the identifier pair of a completed rename.
type Result struct {
	OldUID uid.ID `json:"old_uid"`
	NewUID uid.ID `json:"new_uid"`
}

// Renamer runs renames. FS, Env, Sessions are required; the rest are optional.
type Renamer struct {
	Resolve  func(name string) uid.ID
	FS       Relocator
	Env      EnvManager
	Sessions Sessions
	Bus      events.Bus
	Intents  *intent.Store
	Locker   *lock.Locker
	Logger   *slog.Logger
}

// Rename renames the script called req.OldName to req.NewName.
//
// Once the request is validated the rename ignores cancellation of ctx and
// runs until it completes or fails. Events are emitted only after the
// metadata commit succeeds.
func (r *Renamer) Rename(ctx context.Context, req Request) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	run := r.newRun(req.NewName)

	oldID, newID, err := r.resolve(req)
	if err != nil {
		return Result{}, run.fail(err)
	}
	run.oldID, run.newID = oldID, newID
	run.transition(StateIdentityResolved)

	held, err := r.acquire(oldID, newID)
	if err != nil {
		return Result{}, run.fail(err)
	}
	defer held.Release()

	if r.Intents != nil {
		rec, err := r.Intents.Begin(req.OldName, req.NewName, oldID, newID)
		if err != nil {
			return Result{}, run.fail(&Error{Kind: KindStoreFailure, Op: "intent journal", UID: oldID, Err: err})
		}
		run.record = rec
	}

	if err := r.execute(ctx, run); err != nil {
		return Result{}, err
	}
	return Result{OldUID: oldID, NewUID: newID}, nil
}

// Resume continues a recorded rename from its first incomplete step.
func (r *Renamer) Resume(ctx context.Context, id string) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	if r.Intents == nil {
		return Result{}, &Error{Kind: KindInvalidInput, Op: "resume requires an intent journal"}
	}
	rec, err := r.Intents.Load(id)
	if err != nil {
		kind := KindStoreFailure
		if errors.Is(err, intent.ErrNotFound) {
			kind = KindNotFound
		}
		return Result{}, &Error{Kind: kind, Op: "intent " + id, Err: err}
	}

	run := r.newRun(rec.NewName)
	run.oldID, run.newID = rec.OldUID, rec.NewUID
	run.transition(StateIdentityResolved)

	held, err := r.acquire(rec.OldUID, rec.NewUID)
	if err != nil {
		return Result{}, run.fail(err)
	}
	defer held.Release()

	if err := r.Intents.Resume(rec); err != nil {
		return Result{}, run.fail(&Error{Kind: KindStoreFailure, Op: "intent journal", UID: rec.OldUID, Err: err})
	}
	run.record = rec
	run.resumed = true
	run.logger.Info("resuming rename", "intent", rec.ID, "completed", len(rec.Steps))

	if err := r.execute(ctx, run); err != nil {
		return Result{}, err
	}
	return Result{OldUID: rec.OldUID, NewUID: rec.NewUID}, nil
}

func (r *Renamer) resolve(req Request) (uid.ID, uid.ID, error) {
	resolve := r.Resolve
	if resolve == nil {
		resolve = uid.For
	}
	if strings.TrimSpace(req.OldName) == "" {
		return "", "", &Error{Kind: KindInvalidInput, Op: "old name is required"}
	}
	if strings.TrimSpace(req.NewName) == "" {
		return "", "", &Error{Kind: KindInvalidInput, Op: "new name is required"}
	}
	oldID, newID := resolve(req.OldName), resolve(req.NewName)
	if !oldID.Valid() {
		return "", "", &Error{Kind: KindInvalidInput, Op: "old name " + quote(req.OldName) + " has no usable identifier"}
	}
	if !newID.Valid() {
		return "", "", &Error{Kind: KindInvalidInput, Op: "new name " + quote(req.NewName) + " has no usable identifier"}
	}
	if oldID == newID {
		return "", "", &Error{Kind: KindInvalidInput, Op: "old and new names resolve to the same identifier", UID: oldID}
	}
	return oldID, newID, nil
}

func (r *Renamer) acquire(oldID, newID uid.ID) (*lock.Held, error) {
	if r.Locker == nil {
		return nil, nil
	}
	held, err := r.Locker.Acquire(oldID, newID)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, &Error{Kind: KindLocked, Op: "acquire script lock", UID: oldID, Err: err}
		}
		return nil, &Error{Kind: KindStoreFailure, Op: "acquire script lock", UID: oldID, Err: err}
	}
	return held, nil
}

// execute runs every step the run's record has not completed.
func (r *Renamer) execute(ctx context.Context, run *run) error {
	oldID, newID := run.oldID, run.newID

	if !run.done(intent.StepDirRenamed) {
		if run.resumed && r.FS.DirRelocated(oldID, newID) {
			run.logger.Info("script directory already relocated", "new_uid", newID)
		} else if err := r.FS.RenameDir(oldID, newID); err != nil {
			return run.fail(fsError(err, oldID))
		}
		run.mark(intent.StepDirRenamed)
	}
	if !run.done(intent.StepSourceRenamed) {
		if run.resumed && r.FS.SourceRelocated(oldID, newID) {
			run.logger.Info("script source already relocated", "new_uid", newID)
		} else if err := r.FS.RenameSource(oldID, newID); err != nil {
			return run.fail(fsError(err, oldID))
		}
		run.mark(intent.StepSourceRenamed)
	}
	if !run.done(intent.StepArtifactsPatched) {
		patched, err := r.FS.PatchArtifacts(oldID, newID, run)
		if err != nil {
			return run.fail(fsError(err, newID))
		}
		run.logger.Debug("patched artifacts", "artifacts", patched)
		run.mark(intent.StepArtifactsPatched)
	}
	run.transition(StateFSRelocated)

	if !run.done(intent.StepEnvRenamed) {
		if run.resumed && r.envRelocated(oldID, newID) {
			run.logger.Info("environment already relocated", "new_uid", newID)
		} else if err := r.Env.Rename(ctx, oldID, newID); err != nil {
			return run.fail(&Error{Kind: KindDelegatedFailure, Op: "environment rename", UID: oldID, Err: err})
		}
		run.mark(intent.StepEnvRenamed)
	}
	run.transition(StateEnvRelocated)

	if !run.done(intent.StepCommitted) {
		if err := r.commitMetadata(ctx, run); err != nil {
			return run.fail(err)
		}
		run.mark(intent.StepCommitted)
	}
	run.transition(StateCommitted)

	if !run.done(intent.StepNotified) {
		r.notify(oldID, newID)
		run.mark(intent.StepNotified)
	}
	run.transition(StateNotified)
	run.finish()
	return nil
}

// commitMetadata re-points logs and the script row inside one session.
// The session is closed on every path, which rolls back unless committed.
func (r *Renamer) commitMetadata(ctx context.Context, run *run) error {
	ss, err := r.Sessions(ctx)
	if err != nil {
		return &Error{Kind: KindStoreFailure, Op: "open metadata session", UID: run.oldID, Err: err}
	}
	defer func() {
		if cerr := ss.Close(); cerr != nil {
			run.logger.Warn("closing metadata session failed", "error", cerr)
		}
	}()

	if run.resumed {
		done, err := metadataCommitted(ctx, ss, run.oldID, run.newID, run.newName)
		if err != nil {
			return err
		}
		if done {
			run.logger.Info("script metadata already committed", "new_uid", run.newID)
			return nil
		}
	}

	if err := UpdateMetadata(ctx, ss, run.oldID, run.newID, run.newName); err != nil {
		return err
	}
	run.transition(StateMetadataStaged)

	if err := ss.Commit(ctx); err != nil {
		return &Error{Kind: KindStoreFailure, Op: "commit metadata", UID: run.oldID, Err: err}
	}
	return nil
}

func (r *Renamer) envRelocated(oldID, newID uid.ID) bool {
	p, ok := r.Env.(envLookup)
	return ok && !p.Exists(oldID) && p.Exists(newID)
}

// metadataCommitted reports whether an earlier attempt already committed the
// rename: no row for oldID and a row for newID carrying newName.
func metadataCommitted(ctx context.Context, ss Session, oldID, newID uid.ID, newName string) (bool, error) {
	if _, err := ss.ScriptByUID(ctx, oldID); err == nil {
		return false, nil
	} else if !errors.Is(err, metadata.ErrNotFound) {
		return false, &Error{Kind: KindStoreFailure, Op: "load script metadata", UID: oldID, Err: err}
	}
	sc, err := ss.ScriptByUID(ctx, newID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return false, nil
		}
		return false, &Error{Kind: KindStoreFailure, Op: "load script metadata", UID: newID, Err: err}
	}
	return sc.Name == newName, nil
}

// UpdateMetadata stages the metadata half of a rename on ss: every log of
// oldID is re-pointed to newID, then the script row takes the new uid and
// name. Nothing is written until ss is committed.
func UpdateMetadata(ctx context.Context, ss Session, oldID, newID uid.ID, newName string) error {
	logs, err := ss.LogsForScript(ctx, oldID)
	if err != nil {
		return &Error{Kind: KindStoreFailure, Op: "load script logs", UID: oldID, Err: err}
	}
	for _, l := range logs {
		l.Script = newID
		if err := ss.StageLog(l); err != nil {
			return &Error{Kind: KindStoreFailure, Op: "stage script log", UID: oldID, Err: err}
		}
	}

	sc, err := ss.ScriptByUID(ctx, oldID)
	if err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return &Error{Kind: KindNotFound, Op: "script metadata", UID: oldID, Err: err}
		}
		return &Error{Kind: KindStoreFailure, Op: "load script metadata", UID: oldID, Err: err}
	}
	sc.UID = newID
	sc.Name = newName
	if err := ss.StageScript(sc); err != nil {
		return &Error{Kind: KindStoreFailure, Op: "stage script metadata", UID: oldID, Err: err}
	}
	return nil
}

func (r *Renamer) notify(oldID, newID uid.ID) {
	bus := r.Bus
	if bus == nil {
		bus = events.Nop
	}
	bus.Trigger(events.ActionComplete, events.Payload{
		"action":  "rename",
		"old_uid": oldID.String(),
		"new_uid": newID.String(),
	})
	bus.Trigger(events.ScriptRenamed, events.Payload{
		"old_uid": oldID.String(),
		"new_uid": newID.String(),
	})
}

// fsError classifies a scriptfs failure.
func fsError(err error, id uid.ID) error {
	var pe *scriptfs.PathError
	if !errors.As(err, &pe) {
		return &Error{Kind: KindStoreFailure, Op: "relocate script files", UID: id, Err: err}
	}
	kind := KindStoreFailure
	switch {
	case errors.Is(pe.Err, scriptfs.ErrNotFound):
		kind = KindNotFound
	case errors.Is(pe.Err, scriptfs.ErrExists):
		kind = KindConflict
	}
	return &Error{Kind: kind, Op: pe.What, UID: id, Path: pe.Path, Err: pe.Err}
}

func quote(s string) string {
	return `"` + s + `"`
}
