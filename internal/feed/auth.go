package feed

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
)

var (
	// ErrMissingRelayURL is returned when no relay endpoint is configured.
	ErrMissingRelayURL = errors.New("relay url is not set (ANNOUNCER_RELAY_URL)")

	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("api key is not set (ANNOUNCER_API_KEY)")
)

// Auth is the credential material a session needs to reach the feed relay.
type Auth struct {
	RelayURL  string `env:"ANNOUNCER_RELAY_URL"`
	APIKey    string `env:"ANNOUNCER_API_KEY"`
	SessionID string `env:"ANNOUNCER_SESSION_ID"`
}

// AuthFromEnv reads Auth from the environment. It does not validate.
func AuthFromEnv() (Auth, error) {
	a, err := env.ParseAs[Auth]()
	if err != nil {
		return Auth{}, fmt.Errorf("parse auth environment: %w", err)
	}
	return a, nil
}

// Merge returns a with empty fields filled from other.
func (a Auth) Merge(other Auth) Auth {
	if a.RelayURL == "" {
		a.RelayURL = other.RelayURL
	}
	if a.APIKey == "" {
		a.APIKey = other.APIKey
	}
	if a.SessionID == "" {
		a.SessionID = other.SessionID
	}
	return a
}

// Validate reports every missing or malformed field.
func (a Auth) Validate() error {
	var errs []error
	if a.RelayURL == "" {
		errs = append(errs, ErrMissingRelayURL)
	} else if u, err := url.Parse(a.RelayURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("relay url %q is not a valid url", a.RelayURL))
	}
	if a.APIKey == "" {
		errs = append(errs, ErrMissingAPIKey)
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (a Auth) Redacted() Auth {
	if a.APIKey != "" {
		a.APIKey = "****"
	}
	if a.SessionID != "" {
		a.SessionID = "****"
	}
	return a
}
