// Package intent records in-flight renames on disk so an interrupted or
// failed rename can be inspected and resumed.
//
// A record is written before the first mutation and updated after every
// completed step. Successful renames remove their record; anything left in
// the directory is unfinished work.
package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aidanlsb/chronos/internal/atomicfile"
	"github.com/aidanlsb/chronos/internal/uid"
)

// Step is a completed unit of a rename.
type Step string

const (
	StepDirRenamed       Step = "dir_renamed"
	StepSourceRenamed    Step = "source_renamed"
	StepArtifactsPatched Step = "artifacts_patched"
	StepEnvRenamed       Step = "env_renamed"
	StepCommitted        Step = "committed"
	StepNotified         Step = "notified"
)

// Steps lists every step in execution order.
var Steps = []Step{
	StepDirRenamed,
	StepSourceRenamed,
	StepArtifactsPatched,
	StepEnvRenamed,
	StepCommitted,
	StepNotified,
}

// State is the lifecycle state of a record.
type State string

const (
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// ErrNotFound indicates no record exists for an id.
var ErrNotFound = errors.New("intent not found")

// Record is one rename intent.
type Record struct {
	ID        string    `yaml:"id"`
	OldName   string    `yaml:"old_name"`
	NewName   string    `yaml:"new_name"`
	OldUID    uid.ID    `yaml:"old_uid"`
	NewUID    uid.ID    `yaml:"new_uid"`
	Steps     []Step    `yaml:"steps"`
	// Artifacts maps an artifact name to the SHA-256 of the content it is
	// being rewritten to. Entries are written before the rewrite.
	Artifacts map[string]string `yaml:"artifacts,omitempty"`
	State     State     `yaml:"state"`
	Error     string    `yaml:"error,omitempty"`
	StartedAt time.Time `yaml:"started_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Done reports whether step has completed.
func (r *Record) Done(step Step) bool {
	for _, s := range r.Steps {
		if s == step {
			return true
		}
	}
	return false
}

// ArtifactRewritten reports whether content is what the artifact name was
// recorded as being rewritten to.
func (r *Record) ArtifactRewritten(name string, content []byte) bool {
	want, ok := r.Artifacts[name]
	return ok && want == digest(content)
}

// Next returns the first step that has not completed.
func (r *Record) Next() (Step, bool) {
	for _, s := range Steps {
		if !r.Done(s) {
			return s, true
		}
	}
	return "", false
}

// Dir returns the intent directory under a chronos home.
func Dir(home string) string {
	return filepath.Join(home, "state", "intents")
}

// Store reads and writes intent records in a directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: func() time.Time { return time.Now().UTC() }}
}

// Begin creates and persists a new running record.
func (s *Store) Begin(oldName, newName string, oldUID, newUID uid.ID) (*Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate intent id: %w", err)
	}
	now := s.now()
	r := &Record{
		ID:        id.String(),
		OldName:   oldName,
		NewName:   newName,
		OldUID:    oldUID,
		NewUID:    newUID,
		State:     StateRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Mark records step as complete.
func (s *Store) Mark(r *Record, step Step) error {
	if !r.Done(step) {
		r.Steps = append(r.Steps, step)
	}
	return s.Save(r)
}

// MarkArtifact records that the artifact name is about to be rewritten to
// content.
func (s *Store) MarkArtifact(r *Record, name string, content []byte) error {
	if r.Artifacts == nil {
		r.Artifacts = make(map[string]string)
	}
	r.Artifacts[name] = digest(content)
	return s.Save(r)
}

// Fail records cause and moves the record to the failed state.
func (s *Store) Fail(r *Record, cause error) error {
	r.State = StateFailed
	if cause != nil {
		r.Error = cause.Error()
	}
	return s.Save(r)
}

// Resume moves a failed record back to running.
func (s *Store) Resume(r *Record) error {
	r.State = StateRunning
	r.Error = ""
	return s.Save(r)
}

// Finish removes the record of a completed rename.
func (s *Store) Finish(r *Record) error {
	return s.Remove(r.ID)
}

// Save writes r atomically.
func (s *Store) Save(r *Record) error {
	path, err := s.path(r.ID)
	if err != nil {
		return err
	}
	r.UpdatedAt = s.now()
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create intent directory: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write intent %s: %w", r.ID, err)
	}
	return nil
}

// Load reads the record with id.
func (s *Store) Load(id string) (*Record, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read intent %s: %w", id, err)
	}
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse intent %s: %w", id, err)
	}
	return &r, nil
}

// List returns every record, oldest first. Unreadable files are skipped.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list intents: %w", err)
	}

	var out []*Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		r, err := s.Load(strings.TrimSuffix(name, ".yaml"))
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Remove deletes the record with id.
func (s *Store) Remove(id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("failed to remove intent %s: %w", id, err)
	}
	return nil
}

func (s *Store) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid intent id %q", id)
	}
	return filepath.Join(s.dir, id+".yaml"), nil
}

func digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
