package analyzer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xblueprint/internal/analyzer/providers"
	"github.com/ibeckermayer/xblueprint/internal/chain"
	"github.com/ibeckermayer/xblueprint/internal/metrics"
	"github.com/ibeckermayer/xblueprint/internal/store"
)

const (
	// DefaultCallTimeout bounds one version/model call
	DefaultCallTimeout = 20 * time.Second
	// keptFailures is how many failures an exhausted walk reports
	keptFailures = 3
)

// Combo is one cell of the version×model matrix
type Combo struct {
	Version string
	Model   string
}

func (c Combo) String() string { return c.Version + "/" + c.Model }

// ExchangeRecorder receives every prompt/response pair
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, e store.Exchange) error
}

type requestIDKey struct{}

// WithRequestID tags ctx so recorded exchanges can be tied to one request
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ClientOptions configures a Client
type ClientOptions struct {
	Versions []string
	Models   []string
	Timeout  time.Duration
	Recorder ExchangeRecorder
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Client walks the version×model matrix, one call per combination
type Client struct {
	caller   providers.Caller
	matrix   []Combo
	timeout  time.Duration
	recorder ExchangeRecorder
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewClient creates a generation client over caller
func NewClient(caller providers.Caller, opts ClientOptions) *Client {
	c := &Client{
		caller:   caller,
		timeout:  opts.Timeout,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultCallTimeout
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	for _, v := range opts.Versions {
		for _, m := range opts.Models {
			c.matrix = append(c.matrix, Combo{Version: v, Model: m})
		}
	}
	return c
}

// Generate returns the text of the first combination that answers.
// A credential failure aborts the walk with *AuthError; exhausting the
// matrix returns *ExhaustedError. timeout <= 0 uses the client default.
func (c *Client) Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}

	candidates := make([]chain.Candidate[string], 0, len(c.matrix))
	for _, combo := range c.matrix {
		candidates = append(candidates, chain.Candidate[string]{
			Name: combo.String(),
			Run: func(ctx context.Context) (string, error) {
				return c.call(ctx, combo, prompt, timeout)
			},
		})
	}

	var lastFailed string
	text, err := chain.First(ctx, candidates, chain.Options{
		Classify: func(err error) chain.Verdict {
			if isCredentialError(err) {
				return chain.Abort
			}
			return chain.Continue
		},
		OnFailure: func(name string, err error) {
			lastFailed = name
			c.logger.Warn("[generation] combination failed", zap.String("combo", name), zap.Error(err))
		},
	})
	if err == nil {
		return text, nil
	}

	var exhausted *chain.ExhaustedError
	if errors.As(err, &exhausted) {
		return "", &ExhaustedError{
			Attempts: len(exhausted.Failures),
			Failures: exhausted.Last(keptFailures),
		}
	}

	// Anything else came straight from an aborting candidate
	c.logger.Error("[generation] credential error, not trying remaining combinations", zap.Error(err))
	return "", &AuthError{Combo: lastFailed, Err: err}
}

// call makes one bounded request and records the exchange
func (c *Client) call(ctx context.Context, combo Combo, prompt string, timeout time.Duration) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c.logger.Debug("[generation] trying", zap.String("combo", combo.String()))
	start := time.Now()
	text, err := c.caller.Call(callCtx, providers.Request{
		Version: combo.Version,
		Model:   combo.Model,
		Prompt:  prompt,
	})
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = string(Classify(err))
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
	}
	c.metrics.ObserveGeneration(combo.Version, combo.Model, result)
	c.record(ctx, combo, prompt, text, err, elapsed)

	if err != nil {
		return "", err
	}
	c.logger.Info("[generation] success", zap.String("combo", combo.String()), zap.Duration("elapsed", elapsed))
	return text, nil
}

func (c *Client) record(ctx context.Context, combo Combo, prompt, response string, callErr error, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}

	e := store.Exchange{
		RequestID: requestID(ctx),
		Provider:  c.caller.Name(),
		Version:   combo.Version,
		Model:     combo.Model,
		Prompt:    prompt,
		Response:  response,
		Duration:  elapsed,
	}
	if callErr != nil {
		e.Error = callErr.Error()
	}
	if err := c.recorder.RecordExchange(context.WithoutCancel(ctx), e); err != nil {
		c.logger.Warn("[generation] failed to record exchange", zap.Error(err))
	}
}
