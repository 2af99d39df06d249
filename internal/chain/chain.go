// Package chain runs an ordered list of candidates until one succeeds.
//
// It backs every "try the next one" loop in the pipeline: source endpoints,
// the model/version matrix and JSON repair all share the same walk.
package chain

import (
	"context"
	"fmt"
	"strings"
)

// Verdict tells First what to do after a candidate fails
type Verdict int

const (
	// Continue moves on to the next candidate
	Continue Verdict = iota
	// Abort stops the walk and returns the candidate's error unchanged
	Abort
)

// Candidate is one attempt in the chain
type Candidate[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Failure records a candidate that did not succeed
type Failure struct {
	Name string
	Err  error
}

// ExhaustedError is returned when every candidate failed
type ExhaustedError struct {
	Failures []Failure
}

func (e *ExhaustedError) Error() string {
	if len(e.Failures) == 0 {
		return "chain: no candidates"
	}
	return fmt.Sprintf("chain: all %d candidates failed: %s", len(e.Failures), summarize(e.Failures))
}

// Last returns up to n of the most recent failures.
func (e *ExhaustedError) Last(n int) []Failure {
	if n <= 0 || len(e.Failures) == 0 {
		return nil
	}
	if n > len(e.Failures) {
		n = len(e.Failures)
	}
	return e.Failures[len(e.Failures)-n:]
}

// Unwrap exposes the last failure so errors.Is can see timeouts and the like.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Failures) == 0 {
		return nil
	}
	return e.Failures[len(e.Failures)-1].Err
}

// Options tunes a walk. The zero value continues on every failure.
type Options struct {
	// Classify decides whether a failure aborts the walk. Nil means Continue.
	Classify func(err error) Verdict
	// OnFailure is called after each failed candidate, before classification.
	OnFailure func(name string, err error)
}

// First runs candidates in order and returns the first successful result.
// Candidates never run concurrently. A context that is already done stops
// the walk before the next candidate starts.
func First[T any](ctx context.Context, candidates []Candidate[T], opts Options) (T, error) {
	var zero T
	exhausted := &ExhaustedError{}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			exhausted.Failures = append(exhausted.Failures, Failure{Name: c.Name, Err: err})
			return zero, exhausted
		}

		result, err := c.Run(ctx)
		if err == nil {
			return result, nil
		}

		if opts.OnFailure != nil {
			opts.OnFailure(c.Name, err)
		}
		if opts.Classify != nil && opts.Classify(err) == Abort {
			return zero, err
		}
		exhausted.Failures = append(exhausted.Failures, Failure{Name: c.Name, Err: err})
	}

	return zero, exhausted
}

func summarize(failures []Failure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Name, f.Err))
	}
	return strings.Join(parts, "; ")
}
