package player

import (
	"context"

	"github.com/rs/zerolog"
)

// Disabled is the backend used when no player is reachable. Every call
// is a logged no-op so the wrapped session keeps working without music.
type Disabled struct {
	logger zerolog.Logger
}

// NewDisabled creates a disabled backend.
func NewDisabled(logger zerolog.Logger) *Disabled {
	return &Disabled{
		logger: logger.With().Str("component", "player").Str("mode", "disabled").Logger(),
	}
}

// Mode names the backend.
func (d *Disabled) Mode() string { return "disabled" }

// Probe always fails; a disabled backend controls nothing.
func (d *Disabled) Probe(ctx context.Context) error { return ErrUnavailable }

// Play is a no-op.
func (d *Disabled) Play(ctx context.Context) error {
	d.logger.Debug().Msg("Play ignored, music control disabled")
	return nil
}

// Pause is a no-op.
func (d *Disabled) Pause(ctx context.Context) error {
	d.logger.Debug().Msg("Pause ignored, music control disabled")
	return nil
}

// CurrentTrack reports nothing playing.
func (d *Disabled) CurrentTrack(ctx context.Context) (*Track, error) {
	return nil, nil
}
