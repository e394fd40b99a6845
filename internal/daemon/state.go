package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Status is the externally visible daemon state, also the JSON shape
// returned for the `status` IPC command.
type Status struct {
	Playing    bool      `json:"playing"`
	Mode       string    `json:"mode"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// State manages the daemon's state with thread-safe access and persistence
type State struct {
	mu       sync.RWMutex
	current  Status
	filePath string // Path to state file for persistence
}

// NewState creates a new State instance
// If filePath is provided, attempts to restore state from disk
func NewState(filePath, mode string) (*State, error) {
	s := &State{
		filePath: filePath,
		current:  Status{Mode: mode},
	}

	// Try to restore state from disk if file exists
	if filePath != "" {
		if err := s.restore(); err != nil && !os.IsNotExist(err) {
			// Not a fatal error - daemon can start fresh
			return s, err
		}
	}

	// The backend mode is fixed at startup; a restored file from a
	// previous run does not override it.
	s.current.Mode = mode

	return s, nil
}

// SetPlaying updates the playing flag and persists the state.
func (s *State) SetPlaying(playing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Playing = playing
	s.current.LastUpdate = time.Now()
	return s.persist()
}

// Get returns a copy of the current state.
func (s *State) Get() Status {
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

	// Ensure directory exists
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

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = status

	return nil
}
