package session

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingUsername is returned when no streamer username was given.
	ErrMissingUsername = errors.New("username is required")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session controller closed")
)

// ConfigurationError reports missing or invalid connection settings. No
// connection was attempted.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a failed or dropped feed connection. The
// controller does not reconnect on its own.
type ConnectionError struct {
	Username string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to @%s: %v", e.Username, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
