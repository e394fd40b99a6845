package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IdentifierPath returns the well-known location of the session
// identifier file. The uid keeps sessions of different users on a
// shared host apart.
func IdentifierPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("sidetrack-%d.session", os.Getuid()))
}

// WriteIdentifier persists the child's pid as this session's identifier.
// Every guarded hook command reads it at fire time.
func WriteIdentifier(path string, pid int) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return fmt.Errorf("failed to write session identifier: %w", err)
	}
	return nil
}

// ReadIdentifier reads the persisted session pid.
func ReadIdentifier(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read session identifier: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed session identifier: %w", err)
	}
	return pid, nil
}

// IdentifierMatches reports whether the persisted session identifier
// equals pid. Any read failure means no match: a hook from a session
// whose identifier is gone must not control playback.
func IdentifierMatches(path string, pid int) bool {
	stored, err := ReadIdentifier(path)
	if err != nil {
		return false
	}
	return stored == pid
}

// RemoveIdentifier deletes the session identifier file. Removing a
// file that does not exist is not an error.
func RemoveIdentifier(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session identifier: %w", err)
	}
	return nil
}
