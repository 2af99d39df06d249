package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/xblueprint/internal/browser"
)

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 4 << 20

// Loader retrieves the raw document behind a URL
type Loader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// HTTPLoader fetches documents with a plain GET
type HTTPLoader struct {
	client    *http.Client
	userAgent string
}

// NewHTTPLoader creates a loader. A nil client uses http.DefaultClient.
func NewHTTPLoader(client *http.Client, userAgent string) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{client: client, userAgent: userAgent}
}

// Load issues the request under ctx, which carries the per-endpoint timeout
func (l *HTTPLoader) Load(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.5")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// BrowserLoader renders a page in headless Chrome and returns its DOM
type BrowserLoader struct {
	headless  bool
	userAgent string
	cookies   *CookieFile
}

// NewBrowserLoader creates a loader. cookies may be nil.
func NewBrowserLoader(headless bool, userAgent string, cookies *CookieFile) *BrowserLoader {
	return &BrowserLoader{headless: headless, userAgent: userAgent, cookies: cookies}
}

// Load navigates to url, waits for posts to render and returns the outer HTML.
func (l *BrowserLoader) Load(ctx context.Context, url string) ([]byte, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browser.Options(l.headless, l.userAgent)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var actions []chromedp.Action
	if l.cookies != nil {
		cookies, err := l.cookies.XCookies()
		if err != nil {
			return nil, fmt.Errorf("failed to load cookies: %w", err)
		}
		actions = append(actions, injectCookies(cookies))
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitVisible(WaitForTweets, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return []byte(html), nil
}
