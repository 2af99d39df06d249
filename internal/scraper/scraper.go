// Package scraper acquires recent public posts for a handle.
//
// Sources are tried one at a time, in configured order. Each source is a
// Loader (how bytes are fetched) paired with an Extractor (how posts are read
// out of them), so markup parsing can change without touching the walk.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xblueprint/internal/chain"
	"github.com/ibeckermayer/xblueprint/internal/config"
	"github.com/ibeckermayer/xblueprint/internal/metrics"
	"github.com/ibeckermayer/xblueprint/internal/types"
)

// Origin says where an outcome's items came from
type Origin string

const (
	OriginLive        Origin = "live"
	OriginUnavailable Origin = "unavailable"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultMinItems = 3
	DefaultMaxItems = 10
	DefaultMinChars = 10
)

// Outcome is the result of one acquisition attempt.
// A successful outcome always has at least MinItems items.
type Outcome struct {
	Success bool
	Items   []types.ContentItem
	Profile types.Profile
	Origin  Origin
	// Source names the endpoint that produced the items
	Source string
	// Failures lists the endpoints that were tried and why they were skipped
	Failures []chain.Failure
}

// Source is one endpoint in the fallback list
type Source struct {
	Name      string
	URL       string
	Loader    Loader
	Extractor Extractor
}

// TooFewItemsError is returned when a source parsed but yielded too little
type TooFewItemsError struct {
	Got  int
	Want int
}

func (e *TooFewItemsError) Error() string {
	return fmt.Sprintf("only %d usable items, need %d", e.Got, e.Want)
}

// Options tunes a Fetcher. Zero values use the defaults.
type Options struct {
	Timeout  time.Duration
	MinItems int
	MaxItems int
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Fetcher walks the source list for a handle
type Fetcher struct {
	sources  []Source
	timeout  time.Duration
	minItems int
	maxItems int
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// New creates a fetcher over sources, in order
func New(sources []Source, opts Options) *Fetcher {
	f := &Fetcher{
		sources:  sources,
		timeout:  opts.Timeout,
		minItems: opts.MinItems,
		maxItems: opts.MaxItems,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.minItems <= 0 {
		f.minItems = DefaultMinItems
	}
	if f.maxItems < f.minItems {
		f.maxItems = max(DefaultMaxItems, f.minItems)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// FromConfig builds the configured source list
func FromConfig(cfg config.ScrapingConfig, logger *zap.Logger, m *metrics.Metrics) (*Fetcher, error) {
	minChars := cfg.MinChars
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	norm := NewNormalizer(minChars)
	httpLoader := NewHTTPLoader(&http.Client{}, cfg.UserAgent)

	var cookies *CookieFile
	if cfg.CookiesPath != "" {
		cookies = NewCookieFile(cfg.CookiesPath)
	}

	sources := make([]Source, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		if !strings.Contains(ep.URL, "{handle}") {
			return nil, fmt.Errorf("endpoint %q: url has no {handle} placeholder", ep.Name)
		}
		src := Source{Name: ep.Name, URL: ep.URL}
		switch ep.Kind {
		case config.SourceRSS, "":
			src.Loader, src.Extractor = httpLoader, NewRSSExtractor(norm)
		case config.SourceHTML:
			src.Loader, src.Extractor = httpLoader, NewNitterHTMLExtractor(norm)
		case config.SourceBrowser:
			src.Loader = NewBrowserLoader(cfg.Headless, "", cookies)
			src.Extractor = NewXTimelineExtractor(norm)
		default:
			return nil, fmt.Errorf("endpoint %q: unknown kind %q", ep.Name, ep.Kind)
		}
		sources = append(sources, src)
	}

	return New(sources, Options{
		Timeout:  cfg.Timeout(),
		MinItems: cfg.MinItems,
		MaxItems: cfg.MaxItems,
		Logger:   logger,
		Metrics:  m,
	}), nil
}

// Sources returns the endpoint names in walk order
func (f *Fetcher) Sources() []string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.Name
	}
	return names
}

// Fetch tries each source until one yields enough items. It never returns
// an error: exhausting the list is reported as an unavailable outcome.
func (f *Fetcher) Fetch(ctx context.Context, handle string) Outcome {
	candidates := make([]chain.Candidate[*Extraction], 0, len(f.sources))
	for _, src := range f.sources {
		candidates = append(candidates, chain.Candidate[*Extraction]{
			Name: src.Name,
			Run: func(ctx context.Context) (*Extraction, error) {
				return f.try(ctx, src, handle)
			},
		})
	}

	ext, err := chain.First(ctx, candidates, chain.Options{
		OnFailure: func(name string, err error) {
			f.logger.Info("[scraper] source skipped",
				zap.String("source", name),
				zap.String("handle", handle),
				zap.Error(err))
			f.metrics.ObserveSource(name, failureLabel(err))
		},
	})
	if err != nil {
		out := Outcome{
			Profile: SynthesizedProfile(handle),
			Origin:  OriginUnavailable,
		}
		var exhausted *chain.ExhaustedError
		if errors.As(err, &exhausted) {
			out.Failures = exhausted.Failures
		}
		f.logger.Warn("[scraper] all sources exhausted",
			zap.String("handle", handle),
			zap.Int("tried", len(out.Failures)))
		return out
	}

	winner := ext.source
	f.metrics.ObserveSource(winner, "ok")

	items := ext.Items
	if len(items) > f.maxItems {
		items = items[:f.maxItems]
	}
	f.logger.Info("[scraper] fetched posts",
		zap.String("source", winner),
		zap.String("handle", handle),
		zap.Int("items", len(items)))

	return Outcome{
		Success: true,
		Items:   items,
		Profile: ext.Profile,
		Origin:  OriginLive,
		Source:  winner,
	}
}

// try runs one source under its own timeout
func (f *Fetcher) try(ctx context.Context, src Source, handle string) (*Extraction, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	url := strings.ReplaceAll(src.URL, "{handle}", handle)
	body, err := src.Loader.Load(ctx, url)
	if err != nil {
		return nil, err
	}

	ext, err := src.Extractor.Extract(handle, body)
	if err != nil {
		return nil, err
	}
	if len(ext.Items) < f.minItems {
		return nil, &TooFewItemsError{Got: len(ext.Items), Want: f.minItems}
	}
	ext.source = src.Name
	return ext, nil
}

func failureLabel(err error) string {
	var status *StatusError
	var few *TooFewItemsError
	switch {
	case errors.As(err, &status):
		return "status"
	case errors.As(err, &few):
		return "too_few"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
