package cli

import (
	"fmt"
	"os"

	"github.com/aidanlsb/chronos/internal/events"
	"github.com/aidanlsb/chronos/internal/intent"
	"github.com/aidanlsb/chronos/internal/lock"
	"github.com/aidanlsb/chronos/internal/metadata"
	"github.com/aidanlsb/chronos/internal/rename"
	"github.com/aidanlsb/chronos/internal/scriptfs"
	"github.com/aidanlsb/chronos/internal/venv"
)

// app holds the collaborators of a command that touches a chronos home.
type app struct {
	store   *metadata.Store
	journal *events.Journal
	intents *intent.Store
	locker  *lock.Locker
	renamer *rename.Renamer
}

// openApp opens the metadata store and builds a renamer for the resolved
// home. Events go to the journal (when enabled) and to every extra bus.
func openApp(extra ...events.Bus) (*app, error) {
	r := resolved
	if r == nil {
		return nil, fmt.Errorf("chronos home is not resolved")
	}
	if r.Driver == metadata.DriverSQLite {
		if err := os.MkdirAll(r.Home, 0755); err != nil {
			return nil, fmt.Errorf("failed to create home %s: %w", r.Home, err)
		}
	}

	store, err := metadata.Open(metadata.Options{Driver: r.Driver, DSN: r.DSN})
	if err != nil {
		return nil, err
	}

	a := &app{
		store:   store,
		intents: intent.NewStore(intent.Dir(r.Home)),
		locker:  lock.New(lock.Dir(r.Home)),
	}

	var bus events.Multi
	if r.Journal {
		a.journal = events.NewJournal(events.JournalPath(r.Home), logger)
		bus = append(bus, a.journal)
	}
	bus = append(bus, extra...)

	relocator := scriptfs.NewRelocator(r.Layout())
	relocator.Match = r.ArtifactMatch

	a.renamer = &rename.Renamer{
		FS:       relocator,
		Env:      venv.New(r.EnvsDir),
		Sessions: rename.StoreSessions(store),
		Bus:      bus,
		Intents:  a.intents,
		Locker:   a.locker,
		Logger:   logger,
	}
	return a, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
