package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PlayerService provides playback control operations.
//
// All operations require a token with the playback scopes. Soft player
// errors (no active device, premium required) are returned as *Error
// with Soft() == true; callers typically log them and move on.
type PlayerService struct {
	client *Client
}

// Play resumes playback on the user's active device.
func (p *PlayerService) Play(ctx context.Context) error {
	_, _, err := p.client.call(ctx, http.MethodPut, "/me/player/play", nil)
	return err
}

// Pause pauses playback on the user's active device.
func (p *PlayerService) Pause(ctx context.Context) error {
	_, _, err := p.client.call(ctx, http.MethodPut, "/me/player/pause", nil)
	return err
}

// CurrentlyPlaying returns the track currently playing on the user's
// account, or nil when nothing is playing.
func (p *PlayerService) CurrentlyPlaying(ctx context.Context) (*Track, error) {
	body, status, err := p.client.call(ctx, http.MethodGet, "/me/player/currently-playing", nil)
	if err != nil {
		return nil, err
	}

	// 204 means no playback session at all.
	if status == http.StatusNoContent || len(body) == 0 {
		return nil, nil
	}

	var cp currentlyPlayingResponse
	if err := json.Unmarshal(body, &cp); err != nil {
		return nil, fmt.Errorf("failed to parse currently-playing response: %w", err)
	}
	if cp.Item == nil {
		return nil, nil
	}

	track := &Track{
		Name:  cp.Item.Name,
		Album: cp.Item.Album.Name,
	}
	if len(cp.Item.Artists) > 0 {
		track.Artist = cp.Item.Artists[0].Name
	}
	return track, nil
}
