package spotify

import (
	"fmt"
)

// Error represents a Spotify Web API error.
//
// The Error type provides structured error information including the
// HTTP status and the reason string the API attaches to player errors.
// It implements error, and provides additional methods for soft-failure
// and retry logic.
type Error struct {
	Status  int    // HTTP status code
	Reason  string // Player error reason (e.g. NO_ACTIVE_DEVICE), may be empty
	Message string // Error message from Spotify
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("spotify: error %d (%s): %s", e.Status, e.Reason, e.Message)
	}
	return fmt.Sprintf("spotify: error %d: %s", e.Status, e.Message)
}

// Is checks if the target error is a Spotify error with the same status
// and reason. This allows errors.Is() to work with *Error values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason != "" && e.Reason != t.Reason {
		return false
	}
	return e.Status == t.Status
}

// Soft reports whether the error is an expected player condition rather
// than a real failure: no active playback device, or the account lacks
// the subscription tier required for remote control. Callers degrade
// gracefully on soft errors instead of surfacing them.
func (e *Error) Soft() bool {
	switch e.Reason {
	case ReasonNoActiveDevice, ReasonPremiumRequired:
		return true
	}
	return false
}

// Temporary returns true if the error is temporary and the request
// should be retried.
func (e *Error) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}

// Player error reasons returned by the Web API.
const (
	ReasonNoActiveDevice  = "NO_ACTIVE_DEVICE"
	ReasonPremiumRequired = "PREMIUM_REQUIRED"
)

// Predefined errors for common cases.
var (
	// ErrNoToken is returned when an operation requires authorization
	// but no token has been set.
	ErrNoToken = fmt.Errorf("spotify: not authenticated")

	// ErrTokenExpired is returned when the refresh token has been
	// revoked or the refresh exchange is rejected; the user must
	// re-authenticate.
	ErrTokenExpired = fmt.Errorf("spotify: authorization expired, re-authentication required")
)

// IsSoft reports whether err is a soft Spotify player error.
func IsSoft(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Soft()
}
