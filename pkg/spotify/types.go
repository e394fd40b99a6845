package spotify

import "time"

// Token holds the delegated-authorization credentials for a user.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Expired reports whether the token is past its expiry.
func (t *Token) Expired() bool {
	return !t.Expiry.IsZero() && time.Now().After(t.Expiry)
}

// NeedsRefresh reports whether the token is within the refresh window
// of its expiry and should be refreshed before use.
func (t *Token) NeedsRefresh() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry.Add(-refreshWindow))
}

// Track describes the currently playing item.
type Track struct {
	Name   string // Track title
	Artist string // Primary artist name
	Album  string // Album name
}

// tokenResponse is the accounts service token endpoint payload.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// currentlyPlayingResponse is the Web API currently-playing payload,
// reduced to the fields sidetrack reads.
type currentlyPlayingResponse struct {
	IsPlaying bool `json:"is_playing"`
	Item      *struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name string `json:"name"`
		} `json:"album"`
	} `json:"item"`
}
