// Package lock provides per-identifier mutual exclusion across goroutines
// and processes sharing a chronos home.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/aidanlsb/chronos/internal/uid"
)

// ErrLocked indicates another holder owns the identifier.
var ErrLocked = errors.New("identifier is locked by another operation")

// Dir returns the lock directory under a chronos home.
func Dir(home string) string {
	return filepath.Join(home, "state", "locks")
}

// Locker hands out identifier locks. Locks are taken with a non-blocking
// exclusive file lock per identifier, guarded in-process by a held set.
type Locker struct {
	dir string

	mu   sync.Mutex
	held map[uid.ID]struct{}
}

// New returns a Locker storing lock files in dir.
func New(dir string) *Locker {
	return &Locker{dir: dir, held: make(map[uid.ID]struct{})}
}

// Held is a set of acquired locks.
type Held struct {
	locker *Locker
	ids    []uid.ID
	files  []*os.File
	once   sync.Once
}

// Acquire locks every id or none of them. Ids are locked in sorted order and
// duplicates are ignored. If any id is already held the error wraps ErrLocked.
func (l *Locker) Acquire(ids ...uid.ID) (*Held, error) {
	sorted := dedupe(ids)
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	h := &Held{locker: l}
	for _, id := range sorted {
		if !id.Valid() {
			h.Release()
			return nil, fmt.Errorf("cannot lock invalid identifier %q", id)
		}
		if !l.claim(id) {
			h.Release()
			return nil, fmt.Errorf("%s: %w", id, ErrLocked)
		}
		f, err := l.lockFile(id)
		if err != nil {
			l.unclaim(id)
			h.Release()
			return nil, err
		}
		h.ids = append(h.ids, id)
		h.files = append(h.files, f)
	}
	return h, nil
}

// Release unlocks everything in h. It is safe to call more than once.
func (h *Held) Release() error {
	if h == nil {
		return nil
	}
	var errs []error
	h.once.Do(func() {
		for i := len(h.files) - 1; i >= 0; i-- {
			f := h.files[i]
			if err := unlockFile(f); err != nil {
				errs = append(errs, fmt.Errorf("unlock %s: %w", h.ids[i], err))
			}
			if err := f.Close(); err != nil {
				errs = append(errs, err)
			}
			h.locker.unclaim(h.ids[i])
		}
	})
	return errors.Join(errs...)
}

func (l *Locker) lockFile(id uid.ID) (*os.File, error) {
	path := filepath.Join(l.dir, id.String()+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock for %s: %w", id, err)
	}
	if err := lockFileExclusiveNonBlocking(f); err != nil {
		f.Close()
		if isWouldBlockError(err) {
			return nil, fmt.Errorf("%s: %w", id, ErrLocked)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", id, err)
	}
	return f, nil
}

func (l *Locker) claim(id uid.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[id]; ok {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

func (l *Locker) unclaim(id uid.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}

func dedupe(ids []uid.ID) []uid.ID {
	seen := make(map[uid.ID]struct{}, len(ids))
	out := make([]uid.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
