package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunState is what the daemon has done since it was first started.
type RunState struct {
	StartedAt         time.Time `json:"started_at"`
	LastCycle         time.Time `json:"last_cycle"`
	Cycles            int       `json:"cycles"`
	SearchesRun       int       `json:"searches_run"`
	SearchesFailed    int       `json:"searches_failed"`
	ConcertsFound     int       `json:"concerts_found"`
	NotificationsSent int       `json:"notifications_sent"`
	LastError         string    `json:"last_error,omitempty"`
}

// CycleStats summarizes one pass over the due schedules.
type CycleStats struct {
	SearchesRun       int
	SearchesFailed    int
	ConcertsFound     int
	NotificationsSent int
	Err               error
}

// State manages the daemon's run state with thread-safe access and persistence
type State struct {
	mu       sync.RWMutex
	current  RunState
	filePath string // Path to state file for persistence
}

// NewState creates a new State instance
// If filePath is provided, attempts to restore state from disk
func NewState(filePath string) (*State, error) {
	s := &State{
		filePath: filePath,
	}

	if filePath != "" {
		if err := s.restore(); err != nil && !os.IsNotExist(err) {
			// The daemon can start fresh; the caller decides whether to log.
			return s, err
		}
	}

	return s, nil
}

// ReadState loads a state file without taking ownership of it. A missing
// file yields a zero RunState.
func ReadState(filePath string) (RunState, error) {
	s := &State{filePath: filePath}
	if err := s.restore(); err != nil {
		if os.IsNotExist(err) {
			return RunState{}, nil
		}
		return RunState{}, err
	}
	return s.GetState(), nil
}

// MarkStarted records the daemon start time.
func (s *State) MarkStarted(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.StartedAt = at
	return s.persist()
}

// RecordCycle adds the results of a cycle that finished at at.
func (s *State) RecordCycle(at time.Time, stats CycleStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.LastCycle = at
	s.current.Cycles++
	s.current.SearchesRun += stats.SearchesRun
	s.current.SearchesFailed += stats.SearchesFailed
	s.current.ConcertsFound += stats.ConcertsFound
	s.current.NotificationsSent += stats.NotificationsSent
	if stats.Err != nil {
		s.current.LastError = stats.Err.Error()
	} else {
		s.current.LastError = ""
	}
	return s.persist()
}

// GetState returns a copy of the current state
func (s *State) GetState() RunState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

// persist saves the current state to disk
// Must be called with lock held
func (s *State) persist() error {
	if s.filePath == "" {
		return nil // No persistence configured
	}

	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.filePath)
}

// restore loads state from disk
func (s *State) restore() error {
	if s.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var rs RunState
	if err := json.Unmarshal(data, &rs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = rs
	return nil
}
