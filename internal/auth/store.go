// Package auth persists the delegated-authorization token between runs.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sidetrack-cli/sidetrack/pkg/spotify"
)

// Store is a file-backed token store. It implements spotify.TokenStore
// so refreshed tokens are written back transparently.
type Store struct {
	Path string
}

// NewStore creates a store for the token file at path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the persisted token. Returns nil (no error) when no token
// has been saved yet.
func (s *Store) Load() (*spotify.Token, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var token spotify.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}

// Persist writes the token atomically via temp file + rename.
// Token files hold credentials, so they are written owner-only.
func (s *Store) Persist(token *spotify.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmpPath := s.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return os.Rename(tmpPath, s.Path)
}

// Clear removes the persisted token. Removing a token that does not
// exist is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
