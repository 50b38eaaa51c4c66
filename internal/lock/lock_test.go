package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aidanlsb/chronos/internal/uid"
)

func TestAcquireAndRelease(t *testing.T) {
	l := New(Dir(t.TempDir()))

	h, err := l.Acquire("beta", "alpha", "beta")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	ids := h.ids
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Fatalf("ids = %v, want sorted and deduplicated", ids)
	}
	if _, err := os.Stat(filepath.Join(l.dir, "alpha.lock")); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	if err := h.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	again, err := l.Acquire("alpha", "beta")
	if err != nil {
		t.Fatalf("re-Acquire after release: %v", err)
	}
	again.Release()
}

func TestAcquireConflictSameLocker(t *testing.T) {
	l := New(Dir(t.TempDir()))
	h, err := l.Acquire("alpha")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()

	_, err = l.Acquire("beta", "alpha")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	// All-or-nothing: beta must have been released again.
	hb, err := l.Acquire("beta")
	if err != nil {
		t.Fatalf("beta should be free: %v", err)
	}
	hb.Release()
}

func TestAcquireConflictAcrossLockers(t *testing.T) {
	dir := Dir(t.TempDir())
	first := New(dir)
	second := New(dir)

	h, err := first.Acquire("alpha")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := second.Acquire("alpha"); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked from file lock, got %v", err)
	}
	h.Release()

	h2, err := second.Acquire("alpha")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	h2.Release()
}

func TestAcquireRejectsInvalidID(t *testing.T) {
	l := New(Dir(t.TempDir()))
	if _, err := l.Acquire(uid.ID("../escape")); err == nil {
		t.Fatal("expected error for invalid id")
	}
	if _, err := l.Acquire(""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestNilHeldRelease(t *testing.T) {
	var h *Held
	if err := h.Release(); err != nil {
		t.Fatalf("Release on nil: %v", err)
	}
}
