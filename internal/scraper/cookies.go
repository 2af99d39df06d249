package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// CookieFile holds an x.com session for the browser source.
// Sessions are captured with CaptureSession.
type CookieFile struct {
	path string
	now  func() time.Time
}

// StoredCookies is the on-disk cookie export
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieFile creates a reader for the export at path
func NewCookieFile(path string) *CookieFile {
	return &CookieFile{path: path, now: time.Now}
}

// Load reads and decodes the export
func (cf *CookieFile) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cf.path)
	if err != nil {
		return nil, err
	}

	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cookies: %w", err)
	}
	return &stored, nil
}

// Save writes cookies with the earliest session-cookie expiry
func (cf *CookieFile) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cf.path), 0700); err != nil {
		return err
	}

	var earliest time.Time
	for _, c := range cookies {
		if c.Name != "auth_token" && c.Name != "ct0" {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}

	data, err := json.MarshalIndent(StoredCookies{
		Cookies:    cookies,
		CapturedAt: cf.now(),
		ExpiresAt:  earliest,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cf.path, data, 0600)
}

// Clear removes the stored session. A missing file is not an error.
func (cf *CookieFile) Clear() error {
	if err := os.Remove(cf.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// XCookies returns the unexpired x.com cookies
func (cf *CookieFile) XCookies() ([]*network.Cookie, error) {
	stored, err := cf.Load()
	if err != nil {
		return nil, err
	}
	if !stored.ExpiresAt.IsZero() && cf.now().After(stored.ExpiresAt) {
		return nil, fmt.Errorf("cookies expired at %s", stored.ExpiresAt.Format(time.RFC3339))
	}

	var out []*network.Cookie
	for _, c := range stored.Cookies {
		if c.Domain == ".x.com" || c.Domain == "x.com" {
			out = append(out, c)
		}
	}
	return out, nil
}

// injectCookies sets cookies in the browser before navigation
func injectCookies(cookies []*network.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
