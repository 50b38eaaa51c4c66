package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Journal appends events as JSON lines to a file.
type Journal struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// JournalPath returns the default journal location under a chronos home.
func JournalPath(home string) string {
	return filepath.Join(home, "state", "events.log")
}

// NewJournal creates a journal writing to path. A nil logger uses slog.Default.
func NewJournal(path string, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{path: path, logger: logger}
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Trigger appends the event. Write failures are logged.
func (j *Journal) Trigger(name string, payload Payload) {
	if err := j.Append(Event{Name: name, Payload: payload}); err != nil {
		j.logger.Error("event journal write failed", "event", name, "path", j.path, "error", err)
	}
}

// Append writes e to the journal.
func (j *Journal) Append(e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Read returns every event in the journal. Malformed lines are skipped.
func (j *Journal) Read() ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read event journal: %w", err)
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// ReadSince returns the events at or after since.
func (j *Journal) ReadSince(since time.Time) ([]Event, error) {
	all, err := j.Read()
	if err != nil {
		return nil, err
	}
	var out []Event
	for _, e := range all {
		if !e.Time.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}
