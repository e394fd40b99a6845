package player

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/sidetrack-cli/sidetrack/pkg/spotify"
)

// Remote controls playback through the Spotify Web API using a
// delegated-authorization token. Token refresh happens transparently
// inside the API client.
type Remote struct {
	client *spotify.Client
	logger zerolog.Logger

	// Soft play errors are warned once, then demoted to debug. Play
	// calls arrive from concurrent dispatch goroutines, hence atomic.
	warnedSoft atomic.Bool
}

// NewRemote creates a remote backend over an authenticated API client.
func NewRemote(client *spotify.Client, logger zerolog.Logger) *Remote {
	return &Remote{
		client: client,
		logger: logger.With().Str("component", "player").Str("mode", "remote").Logger(),
	}
}

// Mode names the backend.
func (r *Remote) Mode() string { return "remote" }

// Probe verifies the token works by asking for the current playback.
func (r *Remote) Probe(ctx context.Context) error {
	_, err := r.client.Player().CurrentlyPlaying(ctx)
	if err != nil && spotify.IsSoft(err) {
		return nil
	}
	return err
}

// Play resumes playback. Soft player errors (no active device,
// subscription required) are logged as warnings, not propagated.
func (r *Remote) Play(ctx context.Context) error {
	err := r.client.Player().Play(ctx)
	if err != nil && spotify.IsSoft(err) {
		if r.warnedSoft.CompareAndSwap(false, true) {
			r.logger.Warn().Err(err).Msg("Playback not available")
		} else {
			r.logger.Debug().Err(err).Msg("Playback not available")
		}
		return nil
	}
	return err
}

// Pause pauses playback. Soft player errors are silent no-ops: if
// there is no device or no permission, there is nothing to pause.
func (r *Remote) Pause(ctx context.Context) error {
	err := r.client.Player().Pause(ctx)
	if err != nil && spotify.IsSoft(err) {
		r.logger.Debug().Err(err).Msg("Nothing to pause")
		return nil
	}
	return err
}

// CurrentTrack returns the currently playing track, or nil.
func (r *Remote) CurrentTrack(ctx context.Context) (*Track, error) {
	track, err := r.client.Player().CurrentlyPlaying(ctx)
	if err != nil {
		if spotify.IsSoft(err) {
			return nil, nil
		}
		return nil, err
	}
	if track == nil {
		return nil, nil
	}
	return &Track{Name: track.Name, Artist: track.Artist}, nil
}
