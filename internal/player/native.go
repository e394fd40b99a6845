package player

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Native controls a locally running player application with single-shot
// osascript commands. No persistent connection is held; each call is
// independent and stateless.
type Native struct {
	app    string // AppleScript application name: "Spotify" or "Music"
	logger zerolog.Logger
}

// NewNative creates a native backend for the configured player app.
// Unknown player names fall back to Spotify.
func NewNative(playerName string, logger zerolog.Logger) *Native {
	app := "Spotify"
	if strings.EqualFold(playerName, "music") {
		app = "Music"
	}
	return &Native{
		app:    app,
		logger: logger.With().Str("component", "player").Str("mode", "native").Logger(),
	}
}

// Mode names the backend.
func (n *Native) Mode() string { return "native" }

// Probe checks if the player app is currently running.
func (n *Native) Probe(ctx context.Context) error {
	script := fmt.Sprintf(`tell application "System Events" to (name of processes) contains %q`, n.app)

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to check if %s is running: %w", n.app, err)
	}

	if strings.TrimSpace(string(output)) != "true" {
		return fmt.Errorf("%s is not running", n.app)
	}
	return nil
}

// Play resumes playback in the player app.
func (n *Native) Play(ctx context.Context) error {
	script := fmt.Sprintf(`tell application %q to play`, n.app)
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}
	return nil
}

// Pause pauses playback in the player app.
func (n *Native) Pause(ctx context.Context) error {
	script := fmt.Sprintf(`tell application %q to pause`, n.app)
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}
	return nil
}

// CurrentTrack returns the current track from the player app.
// This uses a single osascript call that checks if the app is running
// and queries track data atomically, avoiding two subprocess spawns.
func (n *Native) CurrentTrack(ctx context.Context) (*Track, error) {
	script := fmt.Sprintf(`
tell application "System Events"
	if not ((name of processes) contains %q) then
		return "not_running"
	end if
end tell
tell application %q
	if player state is stopped then
		return "stopped"
	else
		set trackName to name of current track
		set trackArtist to artist of current track
		return trackName & "|||" & trackArtist
	end if
end tell`, n.app, n.app)

	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("osascript error: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("failed to execute osascript: %w", err)
	}

	result := strings.TrimSpace(string(output))
	if result == "not_running" || result == "stopped" {
		return nil, nil
	}

	track, err := parseTrackOutput(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse track output: %w", err)
	}
	return track, nil
}

// parseTrackOutput parses the delimited output from the AppleScript
func parseTrackOutput(output string) (*Track, error) {
	parts := strings.Split(output, "|||")
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected 2 parts, got %d: %q", len(parts), output)
	}

	return &Track{
		Name:   strings.TrimSpace(parts[0]),
		Artist: strings.TrimSpace(parts[1]),
	}, nil
}
