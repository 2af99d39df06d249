// Package providers holds the transports that send one prompt to one model.
package providers

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrMissingKey is returned when no credential is configured
	ErrMissingKey = errors.New("API key is not configured")
	// ErrEmptyResponse is returned when a call succeeds but carries no text
	ErrEmptyResponse = errors.New("empty response")
)

// Request is a single generation call against one version/model pair
type Request struct {
	Version string
	Model   string
	Prompt  string
}

// Params are the sampling settings shared by every call
type Params struct {
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
}

// Caller sends one prompt and returns the generated text
type Caller interface {
	// Name identifies the provider, e.g. "gemini"
	Name() string
	Call(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx answer from a provider
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: [%d] HTTP %d", e.Provider, e.StatusCode, e.StatusCode)
	}
	return fmt.Sprintf("%s: [%d] %s", e.Provider, e.StatusCode, e.Message)
}
