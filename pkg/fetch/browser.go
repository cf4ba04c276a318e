package fetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser renders a page in a real browser session and returns the final HTML.
type Browser interface {
	Render(ctx context.Context, url string) (string, error)
}

// BrowserOptions configures the headless Chrome capability.
type BrowserOptions struct {
	ExecPath    string
	UserAgent   string
	SettleDelay time.Duration
	Timeout     time.Duration
}

var chromeCandidates = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// DetectBrowser resolves the stealth capability once at startup.
// It returns nil when no Chrome binary can be found.
func DetectBrowser(opts BrowserOptions) Browser {
	if path := strings.TrimSpace(opts.ExecPath); path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil
		}
		return NewChromeBrowser(opts)
	}

	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			opts.ExecPath = path
			return NewChromeBrowser(opts)
		}
	}
	return nil
}

// ChromeBrowser starts a fresh headless Chrome for every Render call, so no
// cookies or headers leak between sources.
type ChromeBrowser struct {
	execPath  string
	userAgent string
	settle    time.Duration
	timeout   time.Duration
}

// NewChromeBrowser builds a chromedp-backed Browser.
func NewChromeBrowser(opts BrowserOptions) *ChromeBrowser {
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &ChromeBrowser{
		execPath:  opts.ExecPath,
		userAgent: opts.UserAgent,
		settle:    opts.SettleDelay,
		timeout:   opts.Timeout,
	}
}

// Render navigates to url, waits for the body plus the settle delay, and captures the document.
func (b *ChromeBrowser) Render(ctx context.Context, url string) (string, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)
	if b.userAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(b.userAgent))
	}
	if b.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, b.timeout)
	defer cancelRun()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}
