package analyzer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xblueprint/internal/analyzer/providers"
	"github.com/ibeckermayer/xblueprint/internal/config"
	"github.com/ibeckermayer/xblueprint/internal/metrics"
	"github.com/ibeckermayer/xblueprint/internal/types"
)

const (
	DefaultAttempts   = 2
	DefaultRetryDelay = 2 * time.Second
	minItems          = 3
)

// Generator produces raw text for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// GenerationOutcome is the result of one blueprint generation
type GenerationOutcome struct {
	Success    bool
	Analysis   *types.StructuredAnalysis
	ErrorClass ErrorClass
	Err        error
}

// Options configures an Analyzer. Zero values use the defaults.
type Options struct {
	Attempts    int
	RetryDelay  time.Duration
	Timeout     time.Duration
	ChatTimeout time.Duration
	Logger      *zap.Logger
	// Sleep waits between attempts; replaced in tests
	Sleep func(ctx context.Context, d time.Duration) error
}

// Analyzer turns posts into a validated blueprint
type Analyzer struct {
	generator   Generator
	attempts    int
	delay       time.Duration
	timeout     time.Duration
	chatTimeout time.Duration
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates an analyzer over generator
func New(generator Generator, opts Options) *Analyzer {
	a := &Analyzer{
		generator:   generator,
		attempts:    opts.Attempts,
		delay:       opts.RetryDelay,
		timeout:     opts.Timeout,
		chatTimeout: opts.ChatTimeout,
		logger:      opts.Logger,
		sleep:       opts.Sleep,
	}
	if a.attempts <= 0 {
		a.attempts = DefaultAttempts
	}
	if a.delay <= 0 {
		a.delay = DefaultRetryDelay
	}
	if a.timeout <= 0 {
		a.timeout = DefaultCallTimeout
	}
	if a.chatTimeout <= 0 {
		a.chatTimeout = a.timeout
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.sleep == nil {
		a.sleep = sleepContext
	}
	return a
}

// FromConfig creates the configured provider, generation client and analyzer
func FromConfig(cfg config.GenerationConfig, recorder ExchangeRecorder, logger *zap.Logger, m *metrics.Metrics) (*Analyzer, error) {
	params := providers.Params{
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		MaxOutputTokens: cfg.MaxTokens,
	}

	var caller providers.Caller
	versions := cfg.APIVersions
	switch cfg.Provider {
	case config.ProviderGemini, "":
		caller = providers.NewGeminiCaller(cfg.APIKey, cfg.BaseURL, params, &http.Client{})
	case config.ProviderAnthropic:
		baseURL := cfg.BaseURL
		if baseURL == providers.DefaultGeminiBaseURL {
			baseURL = ""
		}
		caller = providers.NewAnthropicCaller(cfg.APIKey, baseURL, params)
		versions = []string{providers.AnthropicVersion}
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}

	if len(versions) == 0 || len(cfg.Models) == 0 {
		return nil, fmt.Errorf("generation needs at least one API version and one model")
	}

	client := NewClient(caller, ClientOptions{
		Versions: versions,
		Models:   cfg.Models,
		Timeout:  cfg.AttemptTimeout(),
		Recorder: recorder,
		Logger:   logger,
		Metrics:  m,
	})

	return New(client, Options{
		Attempts:    cfg.Attempts(),
		RetryDelay:  cfg.RetryDelay(),
		Timeout:     cfg.AttemptTimeout(),
		ChatTimeout: cfg.ChatTimeout(),
		Logger:      logger,
	}), nil
}

// Analyze generates and validates a blueprint for handle's posts. Each
// attempt walks the whole generation matrix; a credential failure ends
// the attempts early.
func (a *Analyzer) Analyze(ctx context.Context, handle string, items []types.ContentItem) GenerationOutcome {
	if len(items) < minItems {
		return GenerationOutcome{ErrorClass: ClassTransient, Err: ErrNotEnoughItems}
	}

	prompt := BuildPrompt(handle, items)
	var lastErr error

	for attempt := 1; attempt <= a.attempts; attempt++ {
		a.logger.Info("[analyzer] generation attempt",
			zap.String("handle", handle),
			zap.Int("attempt", attempt),
			zap.Int("of", a.attempts))

		text, err := a.generator.Generate(ctx, prompt, a.timeout)
		if err == nil {
			if analysis, ok := ParseAnalysis(text); ok {
				return GenerationOutcome{Success: true, Analysis: analysis, ErrorClass: ClassNone}
			}
			a.logger.Warn("[analyzer] failed to parse response",
				zap.String("handle", handle),
				zap.String("response", truncate(text, 500)))
			err = ErrPayloadInvalid
		} else {
			a.logger.Warn("[analyzer] generation failed", zap.String("handle", handle), zap.Error(err))
		}
		lastErr = err

		if Classify(err) == ClassFatal {
			return GenerationOutcome{ErrorClass: ClassFatal, Err: err}
		}
		if attempt < a.attempts {
			if err := a.sleep(ctx, a.delay); err != nil {
				return GenerationOutcome{ErrorClass: ClassTransient, Err: err}
			}
		}
	}

	return GenerationOutcome{ErrorClass: ClassTransient, Err: lastErr}
}

// Chat answers a question about a blueprint with a single generation walk.
// Each combination gets the chat timeout.
func (a *Analyzer) Chat(ctx context.Context, handle string, persona *types.StructuredAnalysis, messages []types.ChatMessage) (string, error) {
	prompt, err := BuildChatPrompt(handle, persona, messages)
	if err != nil {
		return "", err
	}

	reply, err := a.generator.Generate(ctx, prompt, a.chatTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrChatTimeout
		}
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
