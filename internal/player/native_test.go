package player

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseTrackOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    Track
		wantErr bool
	}{
		{
			name:   "valid output",
			output: "Song Name|||Artist Name",
			want:   Track{Name: "Song Name", Artist: "Artist Name"},
		},
		{
			name:   "whitespace trimmed",
			output: "  Song  ||| Artist ",
			want:   Track{Name: "Song", Artist: "Artist"},
		},
		{
			name:   "track title containing pipes",
			output: "A | B|||Artist",
			want:   Track{Name: "A | B", Artist: "Artist"},
		},
		{
			name:    "missing delimiter",
			output:  "Song Name - Artist",
			wantErr: true,
		},
		{
			name:    "too many parts",
			output:  "a|||b|||c",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTrackOutput(tt.output)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTrackOutput: %v", err)
			}
			if *got != tt.want {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestNewNative_AppSelection(t *testing.T) {
	tests := []struct {
		player string
		app    string
	}{
		{"spotify", "Spotify"},
		{"music", "Music"},
		{"Music", "Music"},
		{"", "Spotify"},
		{"unknown", "Spotify"},
	}

	for _, tt := range tests {
		n := NewNative(tt.player, zerolog.Nop())
		if n.app != tt.app {
			t.Errorf("NewNative(%q).app = %q, want %q", tt.player, n.app, tt.app)
		}
	}
}

func TestDisabled_NoOps(t *testing.T) {
	d := NewDisabled(zerolog.Nop())
	ctx := context.Background()

	if err := d.Play(ctx); err != nil {
		t.Errorf("Play: %v", err)
	}
	if err := d.Pause(ctx); err != nil {
		t.Errorf("Pause: %v", err)
	}
	track, err := d.CurrentTrack(ctx)
	if err != nil || track != nil {
		t.Errorf("CurrentTrack = %+v, %v", track, err)
	}
	if err := d.Probe(ctx); err != ErrUnavailable {
		t.Errorf("Probe = %v, want ErrUnavailable", err)
	}
}
