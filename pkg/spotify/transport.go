package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// apiErrorEnvelope is the JSON error shape returned by the Web API.
type apiErrorEnvelope struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// call makes an authorized HTTP request to the Spotify Web API with
// retry logic.
//
// It handles:
// - Token refresh ahead of expiry (and persistence of the new token)
// - Request construction with the Authorization header
// - Response parsing (JSON)
// - Error handling and retry logic
// - Context cancellation
//
// Soft player errors (no active device, premium required) are returned
// as *Error without retrying; the caller decides how to degrade.
func (c *Client) call(ctx context.Context, httpMethod, path string, body io.Reader) ([]byte, int, error) {
	accessToken, err := c.ensureFreshToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	var bodyBytes []byte
	if body != nil {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read request body: %w", err)
		}
		bodyBytes = b
	}

	var lastErr error
	backoff := 1 * time.Second
	maxRetries := 3

	for i := 0; i < maxRetries; i++ {
		c.logDebugf("spotify: %s %s (attempt %d/%d)", httpMethod, path, i+1, maxRetries)

		var reqBody io.Reader
		if bodyBytes != nil {
			reqBody = strings.NewReader(string(bodyBytes))
		}

		req, err := http.NewRequestWithContext(ctx, httpMethod, c.baseURL+path, reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if shouldRetryNetworkError(err) && i < maxRetries-1 {
				c.logDebugf("spotify: network error, retrying: %v", err)
				if !sleep(ctx, backoff) {
					return nil, 0, ctx.Err()
				}
				backoff = nextBackoff(backoff)
				continue
			}
			return nil, 0, fmt.Errorf("http request failed: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read response: %w", err)
		}

		// 2xx including 204 No Content is success.
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.logDebugf("spotify: %s %s succeeded (%d)", httpMethod, path, resp.StatusCode)
			return respBody, resp.StatusCode, nil
		}

		apiErr := parseAPIError(resp.StatusCode, respBody)

		// Retry rate limits and server errors.
		if apiErr.Temporary() && i < maxRetries-1 {
			wait := backoff
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if d, err := time.ParseDuration(retryAfter + "s"); err == nil {
					wait = d
				}
			}
			c.logDebugf("spotify: temporary error, retrying: %v", apiErr)
			lastErr = apiErr
			if !sleep(ctx, wait) {
				return nil, 0, ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, resp.StatusCode, ErrTokenExpired
		}

		return nil, resp.StatusCode, apiErr
	}

	return nil, 0, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseAPIError builds an *Error from a non-2xx Web API response.
func parseAPIError(status int, body []byte) *Error {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return &Error{
			Status:  envelope.Error.Status,
			Reason:  envelope.Error.Reason,
			Message: envelope.Error.Message,
		}
	}
	return &Error{Status: status, Message: http.StatusText(status)}
}

// ensureFreshToken returns the access token to authorize the next
// request with, refreshing (and persisting) first when the token is
// within the refresh window of its expiry.
//
// The client mutex is held across the check and the refresh, so
// concurrent callers single-flight: the first one refreshes, the rest
// block and then see the already-fresh token. Without this, two
// refreshes can race and the loser persists a stale rotated refresh
// token, invalidating the authorization.
func (c *Client) ensureFreshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil || c.token.AccessToken == "" {
		return "", ErrNoToken
	}
	if !c.token.NeedsRefresh() {
		return c.token.AccessToken, nil
	}

	c.logDebugf("spotify: token near expiry, refreshing")
	refreshed, err := c.auth.Refresh(ctx, c.token.RefreshToken)
	if err != nil {
		return "", err
	}
	c.token = refreshed

	if c.store != nil {
		if err := c.store.Persist(refreshed); err != nil {
			return "", fmt.Errorf("failed to persist refreshed token: %w", err)
		}
	}
	return refreshed.AccessToken, nil
}

// shouldRetryNetworkError checks if a network error is retryable.
func shouldRetryNetworkError(err error) bool {
	if err == nil {
		return false
	}

	if _, ok := err.(net.Error); ok {
		return true
	}

	if urlErr, ok := err.(*url.Error); ok {
		if _, ok := urlErr.Err.(net.Error); ok {
			return true
		}
	}

	return false
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(duration):
		return true
	}
}

// nextBackoff calculates the next backoff duration with exponential increase.
// Maximum backoff is capped at 30 seconds.
func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		return 30 * time.Second
	}
	return next
}
