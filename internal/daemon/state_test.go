package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStatePersistence(t *testing.T) {
	fp := filepath.Join(t.TempDir(), "nested", "state.json")

	s, err := NewState(fp)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}

	started := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := s.MarkStarted(started); err != nil {
		t.Fatalf("MarkStarted: %v", err)
	}
	if err := s.RecordCycle(started.Add(time.Minute), CycleStats{SearchesRun: 3, ConcertsFound: 5, NotificationsSent: 2}); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
	if err := s.RecordCycle(started.Add(2*time.Minute), CycleStats{SearchesRun: 1, SearchesFailed: 1, Err: errors.New("all search services failed")}); err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}

	if _, err := os.Stat(fp + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary state file left behind")
	}

	restored, err := NewState(fp)
	if err != nil {
		t.Fatalf("NewState restore: %v", err)
	}
	got := restored.GetState()

	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if !got.LastCycle.Equal(started.Add(2 * time.Minute)) {
		t.Errorf("LastCycle = %v", got.LastCycle)
	}
	if got.Cycles != 2 || got.SearchesRun != 4 || got.SearchesFailed != 1 || got.ConcertsFound != 5 || got.NotificationsSent != 2 {
		t.Errorf("unexpected counters %+v", got)
	}
	if got.LastError != "all search services failed" {
		t.Errorf("LastError = %q", got.LastError)
	}
}

func TestStateErrorClears(t *testing.T) {
	s, err := NewState("")
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	_ = s.RecordCycle(time.Now(), CycleStats{Err: errors.New("boom")})
	_ = s.RecordCycle(time.Now(), CycleStats{})
	if got := s.GetState().LastError; got != "" {
		t.Errorf("expected error to clear after a clean cycle, got %q", got)
	}
}

func TestReadState(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		rs, err := ReadState(filepath.Join(dir, "missing.json"))
		if err != nil {
			t.Fatalf("ReadState: %v", err)
		}
		if rs.Cycles != 0 {
			t.Errorf("expected zero state, got %+v", rs)
		}
	})

	t.Run("corrupt file", func(t *testing.T) {
		fp := filepath.Join(dir, "corrupt.json")
		if err := os.WriteFile(fp, []byte("{not json"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if _, err := ReadState(fp); err == nil {
			t.Error("expected error for corrupt state")
		}
		// The daemon still starts with an empty state.
		s, err := NewState(fp)
		if err == nil {
			t.Error("expected NewState to report the corrupt file")
		}
		if s == nil {
			t.Fatal("expected usable state despite error")
		}
	})
}
