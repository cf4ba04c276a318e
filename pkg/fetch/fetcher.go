// Package fetch retrieves publisher pages, either with a plain HTTP GET or by
// rendering them in a headless browser when a publisher blocks plain clients.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/logger"
	"github.com/IshaanKalra2103/newsscraper/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxBodyBytes   = 5 << 20 // 5 MiB
	defaultTimeout = 30 * time.Second

	ModePlain   = "plain"
	ModeStealth = "stealth"
)

// DefaultUserAgent mimics a desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// FetchError reports a failed retrieval. Callers treat it as "no document".
type FetchError struct {
	URL    string
	Mode   string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s fetch %s: status %d", e.Mode, e.URL, e.Status)
	}
	return fmt.Sprintf("%s fetch %s: %v", e.Mode, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher performs one retrieval per call. It holds no cache.
type Fetcher struct {
	client    httpclient.Client
	browser   Browser
	userAgent string
	log       logger.Logger
}

// New builds a Fetcher. A nil browser means the stealth capability is unavailable.
func New(client httpclient.Client, browser Browser, userAgent string, log logger.Logger) *Fetcher {
	if client == nil {
		client = httpclient.NewRestyClient(defaultTimeout)
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    client,
		browser:   browser,
		userAgent: userAgent,
		log:       logger.Ensure(log),
	}
}

// StealthAvailable reports whether a headless browser can be used.
func (f *Fetcher) StealthAvailable() bool {
	return f.browser != nil
}

// Fetch retrieves url and parses it into a document.
//
// With useStealth and an available browser the page is rendered directly.
// Otherwise a plain GET is issued and, if it fails and a browser is available,
// a single rendered attempt follows. No other retries are made.
func (f *Fetcher) Fetch(ctx context.Context, url string, useStealth bool) (*goquery.Document, error) {
	if useStealth && f.browser != nil {
		return f.fetchStealth(ctx, url)
	}

	doc, err := f.fetchPlain(ctx, url)
	if err == nil {
		return doc, nil
	}
	if f.browser == nil || ctx.Err() != nil {
		return nil, err
	}

	f.log.InfoObj("plain fetch failed, falling back to browser", "fetch_fallback", map[string]any{
		"url":   url,
		"error": err.Error(),
	})
	return f.fetchStealth(ctx, url)
}

// FetchRaw returns the body of a plain GET. Used for XML listings such as sitemaps and feeds.
func (f *Fetcher) FetchRaw(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.Get(ctx, url, f.headers())
	if err != nil {
		return nil, &FetchError{URL: url, Mode: ModePlain, Err: err}
	}

	status := resp.StatusCode()
	if status < 200 || status >= 400 {
		return nil, &FetchError{URL: url, Mode: ModePlain, Status: status}
	}

	body := resp.Body()
	if len(body) > maxBodyBytes {
		f.log.InfoObj("response body truncated", "truncation", map[string]any{
			"url":      url,
			"original": len(body),
			"kept":     maxBodyBytes,
		})
		body = body[:maxBodyBytes]
	}
	return body, nil
}

// Close releases idle connections held by the HTTP client.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *Fetcher) fetchPlain(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := f.FetchRaw(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{URL: url, Mode: ModePlain, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}

func (f *Fetcher) fetchStealth(ctx context.Context, url string) (*goquery.Document, error) {
	f.log.DebugObj("rendering page in browser", "fetch_stealth", map[string]any{"url": url})

	html, err := f.browser.Render(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Mode: ModeStealth, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &FetchError{URL: url, Mode: ModeStealth, Err: fmt.Errorf("parse html: %w", err)}
	}
	return doc, nil
}

func (f *Fetcher) headers() map[string]string {
	return map[string]string{
		"User-Agent":      f.userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
}
