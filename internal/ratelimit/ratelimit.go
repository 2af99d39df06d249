// Package ratelimit provides a fixed-window, per-key request limiter.
//
// Records live in process memory only and are forgotten on restart.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the length of one counting window
	DefaultWindow = 60 * time.Second
	// DefaultMaxRequests is the number of admitted requests per key per window
	DefaultMaxRequests = 10
)

// Record is the counter for a single key
type Record struct {
	Count   int
	ResetAt time.Time
}

// Status describes the remaining quota for a key
type Status struct {
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or denies requests per key. All reads and writes of the
// record table happen under mu.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*Record
	window  time.Duration
	max     int
	now     func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter. Non-positive values fall back to the defaults.
func New(window time.Duration, maxRequests int, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	l := &Limiter{
		records: make(map[string]*Record),
		window:  window,
		max:     maxRequests,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit reports whether a request for key is allowed and counts it if so.
// Denial is a normal outcome, not an error.
func (l *Limiter) Admit(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.After(rec.ResetAt) {
		l.records[key] = &Record{Count: 1, ResetAt: now.Add(l.window)}
		return true
	}

	if rec.Count >= l.max {
		return false
	}
	rec.Count++
	return true
}

// Status returns the remaining quota for key without consuming any.
func (l *Limiter) Status(key string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok || now.After(rec.ResetAt) {
		return Status{Remaining: l.max, ResetAt: now.Add(l.window)}
	}
	return Status{Remaining: max(0, l.max-rec.Count), ResetAt: rec.ResetAt}
}

// RetryAfter returns the whole seconds until key's window resets, at least 1.
func (l *Limiter) RetryAfter(key string) int {
	st := l.Status(key)
	d := st.ResetAt.Sub(l.now())
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Sweep drops expired records and returns how many were removed.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for key, rec := range l.records {
		if now.After(rec.ResetAt) {
			delete(l.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.window
}

// MaxRequests returns the configured per-window cap.
func (l *Limiter) MaxRequests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max
}

// Reconfigure changes the window length and cap in place and reports
// whether either changed. Existing records keep their counts and reset
// times; the new window applies to windows opened afterwards and the new
// cap applies immediately. Non-positive values fall back to the defaults.
func (l *Limiter) Reconfigure(window time.Duration, maxRequests int) bool {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.window == window && l.max == maxRequests {
		return false
	}
	l.window, l.max = window, maxRequests
	return true
}
