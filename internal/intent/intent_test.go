package intent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBeginMarkLoad(t *testing.T) {
	s := NewStore(Dir(t.TempDir()))
	r, err := s.Begin("Alpha", "Beta", "alpha", "beta")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if r.State != StateRunning {
		t.Fatalf("state = %q", r.State)
	}
	if next, ok := r.Next(); !ok || next != StepDirRenamed {
		t.Fatalf("Next = %q, %v", next, ok)
	}

	if err := s.Mark(r, StepDirRenamed); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := s.Mark(r, StepDirRenamed); err != nil {
		t.Fatalf("Mark twice: %v", err)
	}
	if err := s.Mark(r, StepSourceRenamed); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	loaded, err := s.Load(r.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.OldUID != "alpha" || loaded.NewUID != "beta" || loaded.NewName != "Beta" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if len(loaded.Steps) != 2 {
		t.Fatalf("steps = %v", loaded.Steps)
	}
	if next, _ := loaded.Next(); next != StepArtifactsPatched {
		t.Fatalf("Next = %q", next)
	}
}

func TestFailAndResume(t *testing.T) {
	s := NewStore(Dir(t.TempDir()))
	r, err := s.Begin("Alpha", "Beta", "alpha", "beta")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Fail(r, errors.New("disk full")); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	loaded, err := s.Load(r.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.State != StateFailed || loaded.Error != "disk full" {
		t.Fatalf("loaded = %+v", loaded)
	}

	if err := s.Resume(loaded); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	again, _ := s.Load(r.ID)
	if again.State != StateRunning || again.Error != "" {
		t.Fatalf("after resume = %+v", again)
	}
}

func TestFinishRemoves(t *testing.T) {
	s := NewStore(Dir(t.TempDir()))
	r, err := s.Begin("Alpha", "Beta", "alpha", "beta")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Finish(r); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := s.Load(r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Remove(r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestListOrdersAndSkipsJunk(t *testing.T) {
	dir := Dir(t.TempDir())
	s := NewStore(dir)
	first, err := s.Begin("A", "B", "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Begin("C", "D", "c", "d")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "garbage.yaml"), []byte("::"), 0644); err != nil {
		t.Fatal(err)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 records, got %d", len(list))
	}
	ids := map[string]bool{list[0].ID: true, list[1].ID: true}
	if !ids[first.ID] || !ids[second.ID] {
		t.Fatalf("list = %+v", list)
	}
}

func TestListMissingDir(t *testing.T) {
	list, err := NewStore(filepath.Join(t.TempDir(), "none")).List()
	if err != nil || list != nil {
		t.Fatalf("List = %v, %v", list, err)
	}
}

func TestRejectsInvalidID(t *testing.T) {
	s := NewStore(Dir(t.TempDir()))
	if _, err := s.Load("../../etc/passwd"); err == nil {
		t.Fatal("expected error for invalid id")
	}
	if err := s.Remove("nope"); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestMarkArtifactSurvivesReload(t *testing.T) {
	s := NewStore(Dir(t.TempDir()))
	r, err := s.Begin("Alpha", "Alpha V2", "alpha", "alpha_v2")
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.MarkArtifact(r, "execute.sh", []byte("envs/alpha_v2\n")); err != nil {
		t.Fatalf("MarkArtifact: %v", err)
	}

	loaded, err := s.Load(r.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"execute.sh", "envs/alpha_v2\n", true},
		{"execute.sh", "envs/alpha\n", false},
		{"install.sh", "envs/alpha_v2\n", false},
	}
	for _, tt := range tests {
		if got := loaded.ArtifactRewritten(tt.name, []byte(tt.content)); got != tt.want {
			t.Errorf("ArtifactRewritten(%s, %q) = %v, want %v", tt.name, tt.content, got, tt.want)
		}
	}
}
