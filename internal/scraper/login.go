package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/xblueprint/internal/browser"
)

const (
	loginURL          = "https://x.com/login"
	loginPollInterval = 2 * time.Second
)

// CaptureSession opens a visible browser on the X login page, waits up to
// timeout for the user to sign in, and saves the session cookies to cf.
func CaptureSession(ctx context.Context, cf *CookieFile, timeout time.Duration) error {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, browser.Options(false, "")...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(loginURL)); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()
	cookies, err := waitForLogin(waitCtx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := cf.Save(cookies); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}
	return nil
}

// waitForLogin polls until the browser reaches the home timeline with an auth token
func waitForLogin(ctx context.Context) ([]*network.Cookie, error) {
	ticker := time.NewTicker(loginPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			var url string
			if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
				continue
			}
			if url != "https://x.com/home" && url != "https://twitter.com/home" {
				continue
			}

			cookies, err := browserCookies(ctx)
			if err != nil {
				continue
			}
			if hasAuthToken(cookies) {
				return cookies, nil
			}
		}
	}
}

func browserCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

func hasAuthToken(cookies []*network.Cookie) bool {
	for _, c := range cookies {
		if c.Name == "auth_token" && c.Value != "" {
			return true
		}
	}
	return false
}
