package tts

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("tts: API key required")
	ErrNoCommand           = errors.New("tts: synthesizer command required")
	ErrEmptyText           = errors.New("tts: nothing to say")
	ErrProviderUnavailable = errors.New("tts: no voice available")
)

// APIError is a non-200 answer from a hosted voice.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("tts [%s]: HTTP %d", e.Provider, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	return msg + ": " + e.Message
}

// Rejected reports whether the voice refused our credentials, in which
// case falling back to another voice is the only useful move.
func (e *APIError) Rejected() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ProviderError tags an error with the voice that produced it.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return "tts [" + e.Provider + "]: " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// WrapError tags err with provider. It returns nil for a nil err.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
