package sentinel

import (
	"fmt"
	"time"
)

// MissingBandError reports an image lacking a band a transform needs.
type MissingBandError struct {
	Band string
	Date time.Time
}

func (e *MissingBandError) Error() string {
	return fmt.Sprintf("band %s missing from image acquired %s", e.Band, e.Date.Format("2006-01-02"))
}

// AuthenticationError reports rejected or absent Copernicus credentials.
type AuthenticationError struct {
	ClientID string
	Err      error
}

func (e *AuthenticationError) Error() string {
	if e.ClientID == "" {
		return fmt.Sprintf("authentication failed: %v", e.Err)
	}
	return fmt.Sprintf("authentication failed for client %s: %v", e.ClientID, e.Err)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RemoteServiceError wraps a failed call to the Sentinel Hub APIs.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}
