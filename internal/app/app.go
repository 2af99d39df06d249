package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xblueprint/internal/analyzer"
	"github.com/ibeckermayer/xblueprint/internal/config"
	"github.com/ibeckermayer/xblueprint/internal/dataset"
	"github.com/ibeckermayer/xblueprint/internal/metrics"
	"github.com/ibeckermayer/xblueprint/internal/ratelimit"
	"github.com/ibeckermayer/xblueprint/internal/scheduler"
	"github.com/ibeckermayer/xblueprint/internal/scraper"
	"github.com/ibeckermayer/xblueprint/internal/store"
	"github.com/ibeckermayer/xblueprint/internal/types"
)

const (
	// Disclaimer is attached to every analysis response
	Disclaimer = "AI-generated analysis based on public content only."
	// SubstitutionPrefix marks a fallback persona standing in for an unknown handle
	SubstitutionPrefix = "Demo: "
	// DatasetSource is reported as the source when the fallback dataset was used
	DatasetSource = "dataset"

	minItems = 3
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// Fetcher acquires posts for a handle
type Fetcher interface {
	Fetch(ctx context.Context, handle string) scraper.Outcome
}

// Generator turns posts into a blueprint and answers persona questions
type Generator interface {
	Analyze(ctx context.Context, handle string, items []types.ContentItem) analyzer.GenerationOutcome
	Chat(ctx context.Context, handle string, persona *types.StructuredAnalysis, messages []types.ChatMessage) (string, error)
}

// Options carries the collaborators that live for the whole process
type Options struct {
	Limiter *ratelimit.Limiter
	Dataset *dataset.Dataset
	// Store is optional; requests are not logged without it
	Store   *store.Store
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// App holds the application state.
type App struct {
	mu sync.RWMutex

	// Immutable after creation.
	limiter *ratelimit.Limiter
	dataset *dataset.Dataset
	store   *store.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// Mutable fields - use getSnapshot() for concurrent access.
	config    *config.Config
	fetcher   Fetcher
	generator Generator

	// Set by RegisterJobs; guarded by mu.
	scheduler *scheduler.Scheduler
}

// snapshot holds fields that may be replaced by Reload.
type snapshot struct {
	config    *config.Config
	fetcher   Fetcher
	generator Generator
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:    a.config,
		fetcher:   a.fetcher,
		generator: a.generator,
	}
}

// New creates a new App instance.
func New(cfg *config.Config, fetcher Fetcher, generator Generator, opts Options) (*App, error) {
	if opts.Dataset == nil {
		ds, err := dataset.Default()
		if err != nil {
			return nil, err
		}
		opts.Dataset = ds
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &App{
		limiter:   opts.Limiter,
		dataset:   opts.Dataset,
		store:     opts.Store,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
		config:    cfg,
		fetcher:   fetcher,
		generator: generator,
	}, nil
}

// FromConfig builds the fetcher and analyzer described by cfg.
func FromConfig(cfg *config.Config, opts Options) (*App, error) {
	fetcher, generator, err := buildPipeline(cfg, opts.Store, opts.Logger, opts.Metrics)
	if err != nil {
		return nil, err
	}
	return New(cfg, fetcher, generator, opts)
}

func buildPipeline(cfg *config.Config, st *store.Store, logger *zap.Logger, m *metrics.Metrics) (*scraper.Fetcher, *analyzer.Analyzer, error) {
	fetcher, err := scraper.FromConfig(cfg.Scraping, logger, m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build source fetcher: %w", err)
	}

	var recorder analyzer.ExchangeRecorder
	if st != nil {
		recorder = st
	}
	an, err := analyzer.FromConfig(cfg.Generation, recorder, logger, m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build analyzer: %w", err)
	}
	return fetcher, an, nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// NormalizeHandle strips a leading @, trims and lower-cases raw, then
// checks it against the account-name rules.
func NormalizeHandle(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &ValidationError{Code: CodeMissingUsername, Message: "Username is required"}
	}
	handle := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@")))
	if !handlePattern.MatchString(handle) {
		return "", &ValidationError{Code: CodeInvalidUsername, Message: "Invalid username format."}
	}
	return handle, nil
}

// trace collects what the request log needs from a pipeline run
type trace struct {
	handle string
	source string
}

// Analyze runs admission, acquisition, generation and assembly for one
// handle. Once admitted the pipeline ignores cancellation of ctx.
func (a *App) Analyze(ctx context.Context, clientKey, rawHandle string) (resp *types.AnalyzeResponse, err error) {
	handle, err := NormalizeHandle(rawHandle)
	if err != nil {
		a.metrics.ObserveRequest("invalid", 0)
		return nil, err
	}

	if !a.limiter.Admit(clientKey) {
		retry := a.limiter.RetryAfter(clientKey)
		a.logger.Info("[app] rate limited", zap.String("client", clientKey), zap.Int("retry_after", retry))
		a.metrics.ObserveRequest("rate_limited", 0)
		return nil, &RateLimitedError{RetryAfter: retry}
	}

	requestID := uuid.NewString()
	ctx = analyzer.WithRequestID(context.WithoutCancel(ctx), requestID)
	start := a.now()
	tr := &trace{handle: handle}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("[app] panic during analysis",
				zap.String("request_id", requestID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			resp, err = nil, &InternalError{Err: fmt.Errorf("panic: %v", r)}
		}
		err = boundary(err)
		a.finish(ctx, requestID, tr, resp, err, start)
	}()

	a.logger.Info("[app] analyzing", zap.String("handle", handle), zap.String("request_id", requestID))
	return a.run(ctx, a.getSnapshot(), tr)
}

func (a *App) run(ctx context.Context, s snapshot, tr *trace) (*types.AnalyzeResponse, error) {
	handle := tr.handle

	outcome := s.fetcher.Fetch(ctx, handle)
	if !outcome.Success || len(outcome.Items) < minItems {
		a.logger.Warn("[app] live fetch failed, using fallback dataset",
			zap.Error(&AcquisitionExhausted{Handle: handle, Failures: outcome.Failures}))
		tr.source = DatasetSource
		return a.fallbackPersona(handle), nil
	}
	tr.source = outcome.Source

	gen := s.generator.Analyze(ctx, handle, outcome.Items)
	if gen.Success {
		return a.assemble(outcome.Profile, gen.Analysis, len(outcome.Items), false), nil
	}

	a.logger.Warn("[app] generation failed",
		zap.String("handle", handle),
		zap.String("class", string(gen.ErrorClass)),
		zap.Error(gen.Err))

	entry, ok := a.dataset.Lookup(handle)
	if !ok {
		return nil, &GenerationUnavailableError{Handle: handle, Err: gen.Err}
	}
	a.logger.Info("[app] using fallback analysis", zap.String("handle", handle))
	return a.assemble(outcome.Profile, &entry.Analysis, len(outcome.Items), true), nil
}

// fallbackPersona returns the dataset entry for handle, or a marked
// random entry when the handle is unknown.
func (a *App) fallbackPersona(handle string) *types.AnalyzeResponse {
	entry, ok := a.dataset.Lookup(handle)
	if !ok {
		entry = a.dataset.Random()
		entry.Profile.DisplayName = SubstitutionPrefix + entry.Profile.DisplayName
	}
	return a.assemble(entry.Profile, &entry.Analysis, len(entry.Items), true)
}

func (a *App) assemble(profile types.Profile, analysis *types.StructuredAnalysis, itemCount int, degraded bool) *types.AnalyzeResponse {
	if profile.AvatarURL == "" {
		profile.AvatarURL = scraper.DefaultAvatarURL(profile.Handle)
	}
	return &types.AnalyzeResponse{
		Profile:  profile,
		Analysis: *analysis,
		Meta: types.Meta{
			ItemCount:   itemCount,
			GeneratedAt: a.now().UTC().Format(time.RFC3339),
			Disclaimer:  Disclaimer,
			Degraded:    degraded,
		},
	}
}

// finish records metrics and the request log entry
func (a *App) finish(ctx context.Context, requestID string, tr *trace, resp *types.AnalyzeResponse, err error, start time.Time) {
	elapsed := a.now().Sub(start)

	req := store.Request{
		ID:       requestID,
		Handle:   tr.handle,
		Source:   tr.source,
		Duration: elapsed,
	}
	switch {
	case err != nil:
		req.Outcome = "error"
		var unavailable *GenerationUnavailableError
		if errors.As(err, &unavailable) {
			req.Outcome = "unavailable"
		}
	case resp.Meta.Degraded:
		req.Outcome = "degraded"
	default:
		req.Outcome = "live"
	}
	if resp != nil {
		req.ItemCount = resp.Meta.ItemCount
		req.Degraded = resp.Meta.Degraded
	}

	a.metrics.ObserveRequest(req.Outcome, elapsed)
	a.logger.Info("[app] request finished",
		zap.String("request_id", requestID),
		zap.String("handle", tr.handle),
		zap.String("outcome", req.Outcome),
		zap.String("source", tr.source),
		zap.Duration("elapsed", elapsed))

	if a.store == nil {
		return
	}
	if err := a.store.RecordRequest(ctx, req); err != nil {
		a.logger.Warn("[app] failed to record request", zap.Error(err))
	}
}

// Chat answers a question about a blueprint. It shares the rate-limit
// table with Analyze.
func (a *App) Chat(ctx context.Context, clientKey string, req types.ChatRequest) (string, error) {
	if strings.TrimSpace(req.Handle) == "" || req.Persona == nil || req.Messages == nil {
		return "", &ValidationError{Code: CodeInvalidRequest, Message: "Invalid request body"}
	}
	handle, err := NormalizeHandle(req.Handle)
	if err != nil {
		return "", err
	}

	if !a.limiter.Admit(clientKey) {
		return "", &RateLimitedError{RetryAfter: a.limiter.RetryAfter(clientKey)}
	}

	ctx = analyzer.WithRequestID(context.WithoutCancel(ctx), uuid.NewString())
	reply, err := a.getSnapshot().generator.Chat(ctx, handle, req.Persona, req.Messages)
	if err != nil {
		a.logger.Warn("[app] chat failed", zap.String("handle", handle), zap.Error(err))
		return "", &GenerationUnavailableError{Handle: handle, Err: err}
	}
	return reply, nil
}

// Reload swaps in a new configuration and the pipeline built from it.
// The rate-limit table and request log are kept; a changed window or cap
// applies to the existing table, and job schedules are re-registered.
func (a *App) Reload(cfg *config.Config) error {
	fetcher, generator, err := buildPipeline(cfg, a.store, a.logger, a.metrics)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.config = cfg
	a.fetcher = fetcher
	a.generator = generator
	sched := a.scheduler
	a.mu.Unlock()

	if a.limiter.Reconfigure(cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests) {
		a.logger.Info("[app] rate limit changed",
			zap.Duration("window", a.limiter.Window()),
			zap.Int("max_requests", a.limiter.MaxRequests()))
	}
	if sched != nil {
		if err := a.syncJobs(sched, cfg); err != nil {
			a.logger.Error("[app] could not reschedule jobs", zap.Error(err))
		}
	}

	a.logger.Info("[app] configuration reloaded", zap.Strings("sources", fetcher.Sources()))
	return nil
}

// ReloadConfig reloads the configuration from disk.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	return a.Reload(cfg)
}
