package spotify

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthService provides delegated-authorization operations.
//
// The flow is authorization code with PKCE, so no client secret is
// ever stored on the user's machine:
//
//	verifier := spotify.GenerateVerifier()
//	fmt.Println("Visit:", client.Auth().AuthorizeURL(state, verifier))
//	// ... user authorizes, redirect delivers ?code=...
//	token, err := client.Auth().Exchange(ctx, code, verifier)
type AuthService struct {
	client *Client
}

// Scopes required for playback control and current-track queries.
const requiredScopes = "user-modify-playback-state user-read-playback-state user-read-currently-playing"

// GenerateVerifier returns a new random PKCE code verifier.
func GenerateVerifier() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// challenge derives the S256 code challenge from a verifier.
func challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// AuthorizeURL returns the URL where the user authorizes the application.
//
// After the user approves, Spotify redirects to the configured redirect
// URI with a `code` query parameter; pass that code to Exchange along
// with the same verifier.
func (a *AuthService) AuthorizeURL(state, verifier string) string {
	q := url.Values{}
	q.Set("client_id", a.client.clientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", a.client.redirectURI)
	q.Set("state", state)
	q.Set("scope", requiredScopes)
	q.Set("code_challenge_method", "S256")
	q.Set("code_challenge", challenge(verifier))
	return a.client.accountsURL + "/authorize?" + q.Encode()
}

// Exchange trades an authorization code for an access/refresh token pair.
func (a *AuthService) Exchange(ctx context.Context, code, verifier string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.client.redirectURI)
	form.Set("client_id", a.client.clientID)
	form.Set("code_verifier", verifier)

	return a.tokenRequest(ctx, form, "")
}

// Refresh exchanges a refresh token for a new access token.
//
// Spotify may rotate the refresh token; when the response omits one,
// the previous refresh token is carried forward.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	if refreshToken == "" {
		return nil, ErrNoToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", a.client.clientID)

	return a.tokenRequest(ctx, form, refreshToken)
}

// tokenRequest posts to the accounts token endpoint and parses the result.
func (a *AuthService) tokenRequest(ctx context.Context, form url.Values, priorRefreshToken string) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, "POST",
		a.client.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		a.client.logDebugf("spotify: token endpoint rejected request: %s", string(body))
		return nil, ErrTokenExpired
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Status: resp.StatusCode, Message: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access token")
	}

	refresh := tr.RefreshToken
	if refresh == "" {
		refresh = priorRefreshToken
	}

	return &Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: refresh,
		Expiry:       time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}
