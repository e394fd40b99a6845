// Package spotify provides a client for the Spotify Web API.
//
// This package implements the subset of the API that sidetrack needs:
// delegated authorization (authorization code with PKCE), token refresh,
// and playback control. It is designed to be usable as a standalone SDK.
//
// Example usage:
//
//	client, err := spotify.NewClient(spotify.Config{
//	    ClientID: "your-client-id",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	verifier := spotify.GenerateVerifier()
//	fmt.Println("Authorize at:", client.Auth().AuthorizeURL("state", verifier))
package spotify

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Config holds client configuration.
type Config struct {
	ClientID    string        // Required: Spotify application client ID
	RedirectURI string        // Optional: OAuth redirect URI (defaults to the local callback)
	HTTPClient  *http.Client  // Optional: HTTP client (defaults to a client with a 15s timeout)
	BaseURL     string        // Optional: Web API base URL (defaults to Spotify, used for testing)
	AccountsURL string        // Optional: Accounts service base URL (used for testing)
	Token       *Token        // Optional: previously persisted token
	TokenStore  TokenStore    // Optional: called whenever the token is refreshed
	Logger      Logger        // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// TokenStore persists refreshed tokens so that a new process can pick up
// where the previous one left off.
type TokenStore interface {
	// Persist stores the token. Called after every successful refresh.
	Persist(token *Token) error
}

// Client is the main entry point for Spotify Web API operations.
//
// A Client is safe for concurrent use. The token is guarded by a
// mutex; when it needs refreshing the refresh is single-flighted, so
// concurrent calls never race the accounts service against each other.
type Client struct {
	clientID    string
	redirectURI string
	httpClient  *http.Client
	baseURL     string
	accountsURL string
	store       TokenStore
	logger      Logger

	mu    sync.Mutex // guards token
	token *Token

	auth   *AuthService
	player *PlayerService
}

const (
	// DefaultBaseURL is the default Spotify Web API endpoint.
	DefaultBaseURL = "https://api.spotify.com/v1"

	// DefaultAccountsURL is the default Spotify accounts service endpoint.
	DefaultAccountsURL = "https://accounts.spotify.com"

	// DefaultRedirectURI is the local callback used by the CLI auth flow.
	DefaultRedirectURI = "http://127.0.0.1:8917/callback"

	// refreshWindow is how close to expiry a token may get before the
	// client refreshes it ahead of an API call.
	refreshWindow = 5 * time.Minute
)

// NewClient creates a new Spotify API client.
//
// Returns an error if required configuration (ClientID) is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("spotify: ClientID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	accountsURL := cfg.AccountsURL
	if accountsURL == "" {
		accountsURL = DefaultAccountsURL
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	c := &Client{
		clientID:    cfg.ClientID,
		redirectURI: redirectURI,
		httpClient:  httpClient,
		baseURL:     baseURL,
		accountsURL: accountsURL,
		token:       cfg.Token,
		store:       cfg.TokenStore,
		logger:      cfg.Logger,
	}

	c.auth = &AuthService{client: c}
	c.player = &PlayerService{client: c}

	return c, nil
}

// Auth returns the authorization service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Player returns the playback control service.
func (c *Client) Player() *PlayerService {
	return c.player
}

// SetToken sets the token used for authenticated requests.
func (c *Client) SetToken(token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// GetToken returns the current token, or nil if unauthenticated.
func (c *Client) GetToken() *Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
