// Package hooks temporarily augments the assistant's settings file so
// its tool-use lifecycle drives playback, and restores the original
// settings verbatim on every exit path.
//
// The settings file is shared with other tools, so everything this
// package does not understand is round-tripped untouched: the document
// is held as raw JSON fragments and only the three injected hook groups
// are ever synthesized.
package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hook events sidetrack injects into.
const (
	EventPreToolUse   = "PreToolUse"   // assistant is about to work: play
	EventStop         = "Stop"         // turn complete: pause
	EventNotification = "Notification" // assistant needs user input: pause
)

// Entry is a single command hook inside a group.
type Entry struct {
	Type    string `json:"type"`
	Command string `json:"command"`
}

// Group is one hook group under an event. Injected groups carry the
// marker fields so an audit can tell wrapper-owned groups from
// user-defined ones.
type Group struct {
	Matcher   string  `json:"matcher,omitempty"`
	Hooks     []Entry `json:"hooks"`
	Sidetrack bool    `json:"sidetrack,omitempty"`
	GroupID   string  `json:"sidetrackId,omitempty"`
}

// Snapshot is the pre-install state of the settings file, restored
// verbatim on cleanup.
type Snapshot struct {
	Existed bool
	Data    []byte
}

// InstallOptions controls what Install injects.
type InstallOptions struct {
	Executable  string // path of the sidetrack binary invoked by hooks
	SessionFile string // session-identifier file checked by the guard
	EnablePause bool   // inject the pause hooks (Stop, Notification)
}

// Manager owns the install/restore pair around the settings file.
type Manager struct {
	path   string
	logger zerolog.Logger
}

// NewManager creates a manager for the settings file at path.
func NewManager(path string, logger zerolog.Logger) *Manager {
	return &Manager{
		path:   path,
		logger: logger.With().Str("component", "hooks").Logger(),
	}
}

// DefaultSettingsPath returns the assistant's settings file location.
func DefaultSettingsPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".claude", "settings.json")
	}
	return filepath.Join(homeDir, ".claude", "settings.json")
}

// GuardedCommand builds the shell command injected into a hook group.
//
// The command is guarded: the hook process passes its parent pid
// ($PPID expands inside the assistant's hook shell, whose parent is the
// assistant process itself) and sidetrack executes the playback command
// only when that pid matches the session-identifier file. Hooks fired
// by a different assistant process on the same host therefore never
// control this session's playback.
func GuardedCommand(executable, action, sessionFile string) string {
	return fmt.Sprintf(`%s hook %s --session-file %s --parent "$PPID" >/dev/null 2>&1 || true`,
		executable, action, sessionFile)
}

// Install reads the settings file, keeps its exact bytes as the restore
// snapshot, appends the wrapper-owned hook groups and writes the result.
// A missing or malformed settings file is treated as empty.
//
// Read or write failures are fatal to session startup; the caller must
// not continue with half-installed hooks.
func (m *Manager) Install(opts InstallOptions) (*Snapshot, error) {
	snapshot := &Snapshot{}

	data, err := os.ReadFile(m.path)
	switch {
	case err == nil:
		snapshot.Existed = true
		snapshot.Data = data
	case os.IsNotExist(err):
		// First run or fresh machine: inject into an empty document.
	default:
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	doc := parseDocument(data)

	playCmd := GuardedCommand(opts.Executable, "play", opts.SessionFile)
	appendGroup(doc.hooks, EventPreToolUse, playCmd)

	if opts.EnablePause {
		pauseCmd := GuardedCommand(opts.Executable, "pause", opts.SessionFile)
		appendGroup(doc.hooks, EventStop, pauseCmd)
		appendGroup(doc.hooks, EventNotification, pauseCmd)
	}

	out, err := doc.marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(m.path, out, 0644); err != nil {
		return nil, fmt.Errorf("failed to write settings: %w", err)
	}

	m.logger.Debug().Str("path", m.path).Bool("pause", opts.EnablePause).Msg("Hooks installed")
	return snapshot, nil
}

// Restore overwrites the settings file with the exact pre-install
// snapshot. If the file did not exist before install, it is removed.
// Restore is idempotent: calling it twice with the same snapshot is safe.
func (m *Manager) Restore(snapshot *Snapshot) error {
	if snapshot == nil {
		return nil
	}

	if !snapshot.Existed {
		if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove settings: %w", err)
		}
		m.logger.Debug().Str("path", m.path).Msg("Settings removed (did not exist before install)")
		return nil
	}

	if err := os.WriteFile(m.path, snapshot.Data, 0644); err != nil {
		return fmt.Errorf("failed to restore settings: %w", err)
	}
	m.logger.Debug().Str("path", m.path).Msg("Settings restored")
	return nil
}

// document is the settings file split into the hooks mapping (which
// sidetrack appends to) and every other top-level field held raw.
type document struct {
	hooks map[string][]json.RawMessage
	extra map[string]json.RawMessage
}

// parseDocument decodes the settings bytes. Malformed input yields an
// empty document, matching the install contract.
func parseDocument(data []byte) *document {
	doc := &document{
		hooks: make(map[string][]json.RawMessage),
		extra: make(map[string]json.RawMessage),
	}

	if len(data) == 0 {
		return doc
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return doc
	}

	for key, raw := range top {
		if key != "hooks" {
			doc.extra[key] = raw
			continue
		}
		var hooks map[string][]json.RawMessage
		if err := json.Unmarshal(raw, &hooks); err != nil {
			// A malformed hooks section is treated as empty, same as a
			// malformed file. The snapshot still restores it verbatim.
			continue
		}
		doc.hooks = hooks
	}

	return doc
}

// appendGroup adds a wrapper-owned command group to an event.
func appendGroup(hooks map[string][]json.RawMessage, event, command string) {
	group := Group{
		Hooks:     []Entry{{Type: "command", Command: command}},
		Sidetrack: true,
		GroupID:   uuid.NewString(),
	}
	raw, _ := json.Marshal(group)
	hooks[event] = append(hooks[event], raw)
}

// marshal re-assembles the document: untouched fields verbatim plus the
// augmented hooks mapping.
func (d *document) marshal() ([]byte, error) {
	top := make(map[string]json.RawMessage, len(d.extra)+1)
	for key, raw := range d.extra {
		top[key] = raw
	}
	if len(d.hooks) > 0 {
		raw, err := json.Marshal(d.hooks)
		if err != nil {
			return nil, err
		}
		top["hooks"] = raw
	}
	return json.MarshalIndent(top, "", "  ")
}
