package rename

import (
	"log/slog"

	"github.com/aidanlsb/chronos/internal/intent"
	"github.com/aidanlsb/chronos/internal/uid"
)

// run tracks one rename through the state machine and its intent record.
type run struct {
	renamer *Renamer
	logger  *slog.Logger
	state   State
	oldID   uid.ID
	newID   uid.ID
	newName string
	record  *intent.Record
	resumed bool
}

func (r *Renamer) newRun(newName string) *run {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &run{renamer: r, logger: logger, state: StateStart, newName: newName}
}

func (rn *run) transition(s State) {
	rn.state = s
	rn.logger.Debug("rename transition", "old_uid", rn.oldID, "new_uid", rn.newID, "state", s)
}

func (rn *run) done(step intent.Step) bool {
	return rn.record != nil && rn.record.Done(step)
}

// mark records a completed step. A journal write failure does not fail the
// rename. A resume then repeats the unmarked step, which recognises work that
// already happened: moved files are detected on disk, artifacts by their
// recorded digest, and the metadata commit by the rows it left.
func (rn *run) mark(step intent.Step) {
	if rn.record == nil {
		return
	}
	if err := rn.renamer.Intents.Mark(rn.record, step); err != nil {
		rn.logger.Warn("intent journal update failed", "intent", rn.record.ID, "step", step, "error", err)
	}
}

func (rn *run) fail(err error) error {
	from := rn.state
	rn.state = StateFailed
	rn.logger.Error("rename failed",
		"old_uid", rn.oldID,
		"new_uid", rn.newID,
		"from", from,
		"kind", KindOf(err),
		"error", err,
	)
	if rn.record != nil {
		if len(rn.record.Steps) == 0 && !rn.resumed {
			// Nothing was mutated, so there is nothing to resume.
			rn.finish()
			return err
		}
		if jerr := rn.renamer.Intents.Fail(rn.record, err); jerr != nil {
			rn.logger.Warn("intent journal update failed", "intent", rn.record.ID, "error", jerr)
		}
	}
	return err
}

func (rn *run) finish() {
	if rn.record == nil {
		return
	}
	if err := rn.renamer.Intents.Finish(rn.record); err != nil {
		rn.logger.Warn("removing finished intent failed", "intent", rn.record.ID, "error", err)
	}
}

// Rewritten implements scriptfs.ArtifactGuard over the intent record.
func (rn *run) Rewritten(name string, content []byte) bool {
	return rn.record != nil && rn.record.ArtifactRewritten(name, content)
}

// Rewriting implements scriptfs.ArtifactGuard. The mark must be durable
// before the artifact changes, so a journal error aborts the rewrite.
func (rn *run) Rewriting(name string, content []byte) error {
	if rn.record == nil {
		return nil
	}
	return rn.renamer.Intents.MarkArtifact(rn.record, name, content)
}
