package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xblueprint/internal/analyzer"
	"github.com/ibeckermayer/xblueprint/internal/config"
	"github.com/ibeckermayer/xblueprint/internal/dataset"
	"github.com/ibeckermayer/xblueprint/internal/ratelimit"
	"github.com/ibeckermayer/xblueprint/internal/scheduler"
	"github.com/ibeckermayer/xblueprint/internal/scraper"
	"github.com/ibeckermayer/xblueprint/internal/store"
	"github.com/ibeckermayer/xblueprint/internal/types"
)

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

// fakeGenerator counts calls and returns a scripted outcome
type fakeGenerator struct {
	outcome analyzer.GenerationOutcome
	reply   string
	chatErr error
	calls   atomic.Int32
	chats   atomic.Int32
}

func (g *fakeGenerator) Analyze(_ context.Context, _ string, _ []types.ContentItem) analyzer.GenerationOutcome {
	g.calls.Add(1)
	return g.outcome
}

func (g *fakeGenerator) Chat(_ context.Context, _ string, _ *types.StructuredAnalysis, _ []types.ChatMessage) (string, error) {
	g.chats.Add(1)
	return g.reply, g.chatErr
}

type fetcherFunc func(ctx context.Context, handle string) scraper.Outcome

func (f fetcherFunc) Fetch(ctx context.Context, handle string) scraper.Outcome { return f(ctx, handle) }

func rssFeed(title string, n int) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>`)
	sb.WriteString("<title>" + title + "</title><description>Making things</description>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, "<item><title>t</title><description>Live post number %d about shipping</description></item>", i)
	}
	sb.WriteString("</channel></rss>")
	return sb.String()
}

// liveSources points every configured source at srv with the given paths
func liveSources(srv *httptest.Server, paths ...string) *scraper.Fetcher {
	var sources []scraper.Source
	for i, p := range paths {
		sources = append(sources, scraper.Source{
			Name:      fmt.Sprintf("mirror-%d", i+1),
			URL:       srv.URL + p,
			Loader:    scraper.NewHTTPLoader(srv.Client(), "test-agent"),
			Extractor: scraper.NewRSSExtractor(scraper.NewNormalizer(scraper.DefaultMinChars)),
		})
	}
	return scraper.New(sources, scraper.Options{Timeout: 2 * time.Second})
}

func failingUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/down/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/empty/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssFeed("Nobody", 1)))
	})
	mux.HandleFunc("/garbage/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>rate limited by mirror</html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T, fetcher Fetcher, gen Generator, opts Options) *App {
	t.Helper()
	if opts.Dataset == nil {
		ds, err := dataset.Default()
		require.NoError(t, err)
		opts.Dataset = ds.WithPicker(func(int) int { return 0 })
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	a, err := New(config.Default(), fetcher, gen, opts)
	require.NoError(t, err)
	return a
}

func TestAnalyzeKnownHandleDegradesWhenSourcesFail(t *testing.T) {
	srv := failingUpstream(t)
	gen := &fakeGenerator{}
	a := newTestApp(t, liveSources(srv, "/down/{handle}/rss", "/empty/{handle}/rss", "/garbage/{handle}"), gen, Options{})

	resp, err := a.Analyze(context.Background(), "10.0.0.1", "@Tibo_Maker")
	require.NoError(t, err)

	entry, ok := a.dataset.Lookup("tibo_maker")
	require.True(t, ok)
	assert.True(t, resp.Meta.Degraded)
	assert.Equal(t, "Tibo", resp.Profile.DisplayName)
	assert.Equal(t, entry.Profile.DisplayName, resp.Profile.DisplayName)
	assert.Equal(t, entry.Analysis, resp.Analysis)
	assert.Equal(t, len(entry.Items), resp.Meta.ItemCount)
	assert.Equal(t, Disclaimer, resp.Meta.Disclaimer)
	assert.Equal(t, "2025-03-14T09:26:53Z", resp.Meta.GeneratedAt)
	assert.Zero(t, gen.calls.Load(), "generation is skipped for fallback personas")
}

func TestAnalyzeUnknownHandleGetsMarkedSubstitute(t *testing.T) {
	srv := failingUpstream(t)
	gen := &fakeGenerator{}
	a := newTestApp(t, liveSources(srv, "/down/{handle}/rss"), gen, Options{})

	resp, err := a.Analyze(context.Background(), "10.0.0.1", "zzz_unknown_1")
	require.NoError(t, err)

	assert.True(t, resp.Meta.Degraded)
	assert.True(t, strings.HasPrefix(resp.Profile.DisplayName, SubstitutionPrefix), resp.Profile.DisplayName)
	assert.NotEmpty(t, resp.Profile.AvatarURL)
	assert.Zero(t, gen.calls.Load())
}

func TestAnalyzeLive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/levelsio/rss", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(rssFeed("Pieter Levels / @levelsio", 12)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	analysis := &types.StructuredAnalysis{Themes: []string{"nomads"}}
	gen := &fakeGenerator{outcome: analyzer.GenerationOutcome{Success: true, Analysis: analysis, ErrorClass: analyzer.ClassNone}}
	a := newTestApp(t, liveSources(srv, "/{handle}/rss"), gen, Options{})

	resp, err := a.Analyze(context.Background(), "10.0.0.1", "levelsio")
	require.NoError(t, err)

	assert.False(t, resp.Meta.Degraded)
	assert.Equal(t, 10, resp.Meta.ItemCount)
	assert.Equal(t, "Pieter Levels", resp.Profile.DisplayName)
	assert.Equal(t, "levelsio", resp.Profile.Handle)
	assert.Equal(t, scraper.DefaultAvatarURL("levelsio"), resp.Profile.AvatarURL)
	assert.Equal(t, *analysis, resp.Analysis)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func liveOutcome(handle string) fetcherFunc {
	return func(context.Context, string) scraper.Outcome {
		return scraper.Outcome{
			Success: true,
			Origin:  scraper.OriginLive,
			Source:  "mirror",
			Items: []types.ContentItem{
				{Text: "first live post here"}, {Text: "second live post here"}, {Text: "third live post here"}, {Text: "fourth live post here"},
			},
			Profile: types.Profile{Handle: handle, DisplayName: "Live Name", AvatarURL: "https://example.com/a.png", Bio: "live bio"},
		}
	}
}

func TestAnalyzeGenerationFailureUsesDatasetAnalysis(t *testing.T) {
	gen := &fakeGenerator{outcome: analyzer.GenerationOutcome{
		ErrorClass: analyzer.ClassFatal,
		Err:        &GenerationAuthError{Combo: "v1/gemini-2.0-flash", Err: errors.New("[401] bad key")},
	}}
	a := newTestApp(t, liveOutcome("tibo_maker"), gen, Options{})

	resp, err := a.Analyze(context.Background(), "10.0.0.1", "tibo_maker")
	require.NoError(t, err)

	entry, _ := a.dataset.Lookup("tibo_maker")
	assert.True(t, resp.Meta.Degraded)
	assert.Equal(t, entry.Analysis, resp.Analysis)
	assert.Equal(t, "Live Name", resp.Profile.DisplayName)
	assert.Equal(t, 4, resp.Meta.ItemCount)
}

func TestAnalyzeGenerationFailureWithoutEntryIsUnavailable(t *testing.T) {
	gen := &fakeGenerator{outcome: analyzer.GenerationOutcome{
		ErrorClass: analyzer.ClassTransient,
		Err:        &GenerationExhausted{Attempts: 8},
	}}
	a := newTestApp(t, liveOutcome("someone_new"), gen, Options{})

	resp, err := a.Analyze(context.Background(), "10.0.0.1", "someone_new")
	assert.Nil(t, resp)

	var unavailable *GenerationUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "someone_new", unavailable.Handle)
	var exhausted *GenerationExhausted
	assert.ErrorAs(t, err, &exhausted)
}

func TestAnalyzeRejectsBadHandleBeforeAdmission(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 1)
	a := newTestApp(t, liveOutcome("x"), &fakeGenerator{}, Options{Limiter: limiter})

	for _, raw := range []string{"###", "way_too_long_handle_here", "a b", ""} {
		_, err := a.Analyze(context.Background(), "10.0.0.1", raw)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, raw)
	}

	_, err := a.Analyze(context.Background(), "10.0.0.1", "   ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeMissingUsername, verr.Code)

	assert.Equal(t, 1, limiter.Status("10.0.0.1").Remaining, "rejected handles consume no quota")
}

func TestAnalyzeRateLimited(t *testing.T) {
	now := fixedNow
	limiter := ratelimit.New(time.Minute, 2, ratelimit.WithClock(func() time.Time { return now }))
	gen := &fakeGenerator{outcome: analyzer.GenerationOutcome{Success: true, Analysis: &types.StructuredAnalysis{}}}
	a := newTestApp(t, liveOutcome("levelsio"), gen, Options{Limiter: limiter})

	for i := 0; i < 2; i++ {
		_, err := a.Analyze(context.Background(), "10.0.0.1", "levelsio")
		require.NoError(t, err)
	}

	now = now.Add(15 * time.Second)
	_, err := a.Analyze(context.Background(), "10.0.0.1", "levelsio")
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, 45, limited.RetryAfter)
	assert.EqualValues(t, 2, gen.calls.Load())

	_, err = a.Analyze(context.Background(), "10.0.0.2", "levelsio")
	assert.NoError(t, err, "other clients have their own window")
}

func TestAnalyzeRecoversPanics(t *testing.T) {
	boom := fetcherFunc(func(context.Context, string) scraper.Outcome { panic("mirror exploded") })
	a := newTestApp(t, boom, &fakeGenerator{}, Options{})

	resp, err := a.Analyze(context.Background(), "10.0.0.1", "levelsio")
	assert.Nil(t, resp)
	var internal *InternalError
	require.ErrorAs(t, err, &internal)
	assert.Equal(t, "An unexpected error occurred.", err.Error())
}

func TestAnalyzeIgnoresCallerCancellation(t *testing.T) {
	var sawCancel atomic.Bool
	fetch := fetcherFunc(func(ctx context.Context, handle string) scraper.Outcome {
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		return liveOutcome(handle)(ctx, handle)
	})
	gen := &fakeGenerator{outcome: analyzer.GenerationOutcome{Success: true, Analysis: &types.StructuredAnalysis{}}}
	a := newTestApp(t, fetch, gen, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, "10.0.0.1", "levelsio")
	require.NoError(t, err)
	assert.False(t, sawCancel.Load())
}

func TestAnalyzeRecordsRequests(t *testing.T) {
	st, err := store.New(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	gen := &fakeGenerator{outcome: analyzer.GenerationOutcome{Success: true, Analysis: &types.StructuredAnalysis{}}}
	a := newTestApp(t, liveOutcome("levelsio"), gen, Options{Store: st, Now: time.Now})

	_, err = a.Analyze(context.Background(), "10.0.0.1", "levelsio")
	require.NoError(t, err)

	reqs, err := st.RecentRequests(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "levelsio", reqs[0].Handle)
	assert.Equal(t, "live", reqs[0].Outcome)
	assert.Equal(t, "mirror", reqs[0].Source)
	assert.Equal(t, 4, reqs[0].ItemCount)
	assert.NotEmpty(t, reqs[0].ID)
}

func TestChat(t *testing.T) {
	limiter := ratelimit.New(time.Minute, 2)
	gen := &fakeGenerator{reply: "The analysis suggests short hooks."}
	a := newTestApp(t, liveOutcome("x"), gen, Options{Limiter: limiter})

	req := types.ChatRequest{
		Handle:   "@levelsio",
		Persona:  &types.StructuredAnalysis{},
		Messages: []types.ChatMessage{{Role: "user", Content: "How do they hook readers?"}},
	}

	reply, err := a.Chat(context.Background(), "10.0.0.1", req)
	require.NoError(t, err)
	assert.Equal(t, "The analysis suggests short hooks.", reply)

	_, err = a.Chat(context.Background(), "10.0.0.1", types.ChatRequest{Handle: "levelsio"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, CodeInvalidRequest, verr.Code)

	// Chat and Analyze share one window
	_, err = a.Analyze(context.Background(), "10.0.0.1", "levelsio")
	require.NoError(t, err)
	_, err = a.Chat(context.Background(), "10.0.0.1", req)
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
}

func TestChatTimeoutIsSurfaced(t *testing.T) {
	gen := &fakeGenerator{chatErr: analyzer.ErrChatTimeout}
	a := newTestApp(t, liveOutcome("x"), gen, Options{})

	_, err := a.Chat(context.Background(), "10.0.0.1", types.ChatRequest{
		Handle:   "levelsio",
		Persona:  &types.StructuredAnalysis{},
		Messages: []types.ChatMessage{},
	})
	var unavailable *GenerationUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "response timed out", err.Error())
}

func TestRegisterJobsAndSweep(t *testing.T) {
	now := fixedNow
	limiter := ratelimit.New(time.Minute, 5, ratelimit.WithClock(func() time.Time { return now }))
	st, err := store.New(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	a := newTestApp(t, liveOutcome("x"), &fakeGenerator{}, Options{Limiter: limiter, Store: st})

	s, err := scheduler.New("", nil)
	require.NoError(t, err)
	require.NoError(t, a.RegisterJobs(s))

	var names []string
	for _, j := range s.ListJobs() {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{JobSweepRateLimits, JobPruneStore}, names)

	limiter.Admit("a")
	limiter.Admit("b")
	now = now.Add(2 * time.Minute)
	require.NoError(t, s.RunNow(JobSweepRateLimits, a.SweepRateLimits))
	assert.Zero(t, limiter.Len())

	require.NoError(t, s.RunNow(JobPruneStore, a.PruneStore))
}

func TestReload(t *testing.T) {
	a := newTestApp(t, liveOutcome("x"), &fakeGenerator{}, Options{})

	cfg := config.Default()
	cfg.Scraping.Endpoints = []config.SourceEndpoint{{Name: "only", URL: "https://mirror.example/{handle}/rss"}}
	require.NoError(t, a.Reload(cfg))
	assert.Same(t, cfg, a.Config())

	bad := config.Default()
	bad.Generation.Provider = "unknown"
	assert.Error(t, a.Reload(bad))
	assert.Same(t, cfg, a.Config(), "a failed reload keeps the previous pipeline")
}

func TestReloadReconfiguresLimiterAndJobs(t *testing.T) {
	now := fixedNow
	limiter := ratelimit.New(time.Minute, 5, ratelimit.WithClock(func() time.Time { return now }))
	a := newTestApp(t, liveOutcome("x"), &fakeGenerator{}, Options{Limiter: limiter})

	s, err := scheduler.New("", nil)
	require.NoError(t, err)
	require.NoError(t, a.RegisterJobs(s))
	require.Len(t, s.ListJobs(), 1, "no store, no prune job")

	for i := 0; i < 3; i++ {
		_, err := a.Analyze(context.Background(), "client", "levelsio")
		require.NoError(t, err)
	}

	cfg := config.Default()
	cfg.RateLimit.MaxRequests = 3
	cfg.RateLimit.WindowSeconds = 120
	cfg.RateLimit.SweepSchedule = ""
	require.NoError(t, a.Reload(cfg))

	assert.Equal(t, 3, limiter.MaxRequests())
	assert.Equal(t, 2*time.Minute, limiter.Window())
	assert.Empty(t, s.ListJobs(), "an empty schedule removes the job")

	_, err = a.Analyze(context.Background(), "client", "levelsio")
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited, "counts survive the reload and the new cap applies")
	assert.Equal(t, 60, limited.RetryAfter)

	cfg = config.Default()
	cfg.RateLimit.SweepSchedule = "@every 1m"
	require.NoError(t, a.Reload(cfg))
	require.Len(t, s.ListJobs(), 1)
	assert.Equal(t, JobSweepRateLimits, s.ListJobs()[0].Name)
}
