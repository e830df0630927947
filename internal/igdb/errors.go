package igdb

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCredentialsMissing = errors.New("IGDB client credentials are not configured")
	ErrTokenRequest       = errors.New("twitch token request failed")
	ErrUnauthorized       = errors.New("IGDB API unauthorized")
	ErrRateLimited        = errors.New("IGDB API rate limited")
	ErrAPIError           = errors.New("IGDB API error")
)

// StatusError is returned for non-2xx catalog responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("IGDB API error: %s", e.Status)
	}
	return fmt.Sprintf("IGDB API error: %s: %s", e.Status, e.Body)
}

// Unwrap maps the status to a sentinel error.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return ErrAPIError
	}
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
