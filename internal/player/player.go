// Package player provides the playback backends sidetrack toggles.
//
// Two real backends exist: native (single-shot osascript commands
// against the local player app) and remote (Spotify Web API with a
// delegated-authorization token). The backend is chosen once at
// startup and fixed for the session's lifetime.
package player

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/sidetrack-cli/sidetrack/internal/auth"
	"github.com/sidetrack-cli/sidetrack/internal/config"
	"github.com/sidetrack-cli/sidetrack/pkg/spotify"
)

// Track identifies what is currently playing.
type Track struct {
	Name   string
	Artist string
}

// Controller is the capability interface every backend implements.
// Play and Pause are idempotent: playing while already playing is a
// no-op with no error.
type Controller interface {
	// Probe checks whether the backend can control a player right now.
	Probe(ctx context.Context) error

	// Play resumes playback.
	Play(ctx context.Context) error

	// Pause pauses playback.
	Pause(ctx context.Context) error

	// CurrentTrack returns the current track, or nil when nothing is
	// playing or the backend cannot tell.
	CurrentTrack(ctx context.Context) (*Track, error)

	// Mode names the backend: native, remote, or disabled.
	Mode() string
}

// ErrUnavailable is returned by Select when no backend can control a
// player. The session continues with music control disabled.
var ErrUnavailable = errors.New("player: no usable playback backend")

// Select picks a backend once, based on config and probe results.
//
// Mode "remote" requires a persisted token; mode "native" requires the
// player app to be reachable. Mode "auto" prefers remote when a token
// exists and falls back to native. When nothing probes successfully a
// disabled controller is returned along with ErrUnavailable so the
// caller can warn and continue.
func Select(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Controller, error) {
	remote, remoteErr := newRemoteIfAuthenticated(cfg, logger)

	switch cfg.Mode {
	case config.ModeRemote:
		if remoteErr != nil {
			return NewDisabled(logger), remoteErr
		}
		return remote, nil

	case config.ModeNative:
		native := NewNative(cfg.Player, logger)
		if err := native.Probe(ctx); err != nil {
			return NewDisabled(logger), ErrUnavailable
		}
		return native, nil

	default: // auto
		if remoteErr == nil {
			return remote, nil
		}

		native := NewNative(cfg.Player, logger)
		if err := native.Probe(ctx); err == nil {
			return native, nil
		}
		return NewDisabled(logger), ErrUnavailable
	}
}

// newRemoteIfAuthenticated builds the remote backend when a token is
// persisted, otherwise reports why it cannot.
func newRemoteIfAuthenticated(cfg *config.Config, logger zerolog.Logger) (*Remote, error) {
	if cfg.Spotify.ClientID == "" {
		return nil, spotify.ErrNoToken
	}

	store := auth.NewStore(config.TokenPath())
	token, err := store.Load()
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, spotify.ErrNoToken
	}

	client, err := spotify.NewClient(spotify.Config{
		ClientID:   cfg.Spotify.ClientID,
		Token:      token,
		TokenStore: store,
	})
	if err != nil {
		return nil, err
	}

	return NewRemote(client, logger), nil
}
