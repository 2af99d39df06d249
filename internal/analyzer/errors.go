package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ibeckermayer/xblueprint/internal/analyzer/providers"
	"github.com/ibeckermayer/xblueprint/internal/chain"
)

// ErrorClass buckets generation failures for retry decisions
type ErrorClass string

const (
	ClassNone      ErrorClass = "none"
	ClassTransient ErrorClass = "transient"
	ClassFatal     ErrorClass = "fatal"
)

var (
	// ErrPayloadInvalid is returned when generated text does not validate
	ErrPayloadInvalid = errors.New("generated payload failed validation")
	// ErrNotEnoughItems is returned when there is too little content to analyze
	ErrNotEnoughItems = errors.New("not enough content to analyze")
	// ErrChatTimeout is surfaced when a chat reply does not arrive in time
	ErrChatTimeout = errors.New("response timed out")
)

// AuthError is a credential-class failure. The matrix walk stops on it.
type AuthError struct {
	Combo string
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("API key error on %s: %v", e.Combo, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every version/model combination failed.
// Failures holds the most recent few, oldest first.
type ExhaustedError struct {
	Attempts int
	Failures []chain.Failure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}
	return fmt.Sprintf("all %d generation combinations failed: %s", e.Attempts, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}

// Classify reports whether err should stop every further generation attempt
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}

	var authErr *AuthError
	if errors.As(err, &authErr) || isCredentialError(err) {
		return ClassFatal
	}
	return ClassTransient
}

// isCredentialError matches invalid or missing key failures from any provider
func isCredentialError(err error) bool {
	if errors.Is(err, providers.ErrMissingKey) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	// An unavailable model moves the walk on whatever status it came with.
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not found") || strings.Contains(msg, "not supported") {
		return false
	}

	var se *providers.StatusError
	if errors.As(err, &se) {
		switch se.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		case http.StatusNotFound:
			return false
		}
	}
	return strings.Contains(msg, "api key") || strings.Contains(msg, "api_key")
}
