package app

import (
	"errors"
	"fmt"

	"github.com/ibeckermayer/xblueprint/internal/analyzer"
	"github.com/ibeckermayer/xblueprint/internal/chain"
)

// Validation codes reported to callers
const (
	CodeMissingUsername = "MISSING_USERNAME"
	CodeInvalidUsername = "INVALID_USERNAME"
	CodeInvalidRequest  = "INVALID_REQUEST"
)

// ValidationError rejects a request before admission
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// RateLimitedError means the client used up its window. It is not a fault.
type RateLimitedError struct {
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("Too many requests. Retry in %ds.", e.RetryAfter)
}

// AcquisitionExhausted is logged when no source produced enough posts.
// It is always recovered through the fallback dataset.
type AcquisitionExhausted struct {
	Handle   string
	Failures []chain.Failure
}

func (e *AcquisitionExhausted) Error() string {
	return fmt.Sprintf("no source returned enough posts for @%s (%d failed)", e.Handle, len(e.Failures))
}

type (
	// GenerationAuthError is a credential failure that stopped the model matrix
	GenerationAuthError = analyzer.AuthError
	// GenerationExhausted is returned when every model combination failed
	GenerationExhausted = analyzer.ExhaustedError
)

// ErrPayloadInvalid is reported when generated text did not validate
var ErrPayloadInvalid = analyzer.ErrPayloadInvalid

// GenerationUnavailableError is surfaced when generation failed and no
// fallback entry exists for the handle.
type GenerationUnavailableError struct {
	Handle string
	Err    error
}

func (e *GenerationUnavailableError) Error() string {
	if errors.Is(e.Err, analyzer.ErrChatTimeout) {
		return e.Err.Error()
	}
	return "Analysis failed. The AI service is unavailable, please try again later."
}

func (e *GenerationUnavailableError) Unwrap() error { return e.Err }

// InternalError hides anything unexpected behind a generic message
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return "An unexpected error occurred." }

func (e *InternalError) Unwrap() error { return e.Err }

// boundary maps anything outside the taxonomy to InternalError
func boundary(err error) error {
	if err == nil {
		return nil
	}

	var (
		validation  *ValidationError
		limited     *RateLimitedError
		unavailable *GenerationUnavailableError
		internal    *InternalError
	)
	switch {
	case errors.As(err, &validation),
		errors.As(err, &limited),
		errors.As(err, &unavailable),
		errors.As(err, &internal):
		return err
	}
	return &InternalError{Err: err}
}
