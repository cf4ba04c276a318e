package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/IshaanKalra2103/newsscraper/pkg/httpclient"
)

type fakeBrowser struct {
	html  string
	err   error
	calls int
}

func (b *fakeBrowser) Render(ctx context.Context, url string) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return b.html, nil
}

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchPlainSuccess(t *testing.T) {
	t.Parallel()

	server := newServer(t, http.StatusOK, "<html><head><title>Hello</title></head><body></body></html>")
	browser := &fakeBrowser{html: "<html><title>Rendered</title></html>"}
	f := New(httpclient.NewRestyClient(2*time.Second), browser, "", nil)

	doc, err := f.Fetch(context.Background(), server.URL, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if got := doc.Find("title").Text(); got != "Hello" {
		t.Fatalf("unexpected title %q", got)
	}
	if browser.calls != 0 {
		t.Fatalf("browser should not be used, got %d calls", browser.calls)
	}
}

func TestFetchPlainFailureWithoutBrowser(t *testing.T) {
	t.Parallel()

	server := newServer(t, http.StatusForbidden, "denied")
	f := New(httpclient.NewRestyClient(2*time.Second), nil, "", nil)

	_, err := f.Fetch(context.Background(), server.URL, false)
	if err == nil {
		t.Fatal("expected error for 403")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
	if fe.Status != http.StatusForbidden || fe.Mode != ModePlain {
		t.Fatalf("unexpected error fields %+v", fe)
	}
}

func TestFetchFallsBackToBrowserOnce(t *testing.T) {
	t.Parallel()

	server := newServer(t, http.StatusForbidden, "denied")
	browser := &fakeBrowser{html: "<html><head><title>Rendered</title></head></html>"}
	f := New(httpclient.NewRestyClient(2*time.Second), browser, "", nil)

	doc, err := f.Fetch(context.Background(), server.URL, false)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if got := doc.Find("title").Text(); got != "Rendered" {
		t.Fatalf("unexpected title %q", got)
	}
	if browser.calls != 1 {
		t.Fatalf("expected one render, got %d", browser.calls)
	}
}

func TestFetchStealthFailureDoesNotFallBackToPlain(t *testing.T) {
	t.Parallel()

	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	browser := &fakeBrowser{err: errors.New("chrome crashed")}
	f := New(httpclient.NewRestyClient(2*time.Second), browser, "", nil)

	_, err := f.Fetch(context.Background(), server.URL, true)
	if err == nil {
		t.Fatal("expected stealth error")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Mode != ModeStealth {
		t.Fatalf("expected stealth FetchError, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("plain fetch should not run, got %d hits", hits)
	}
}

func TestFetchStealthWithoutBrowserUsesPlain(t *testing.T) {
	t.Parallel()

	server := newServer(t, http.StatusOK, "<html><body><p>plain</p></body></html>")
	f := New(httpclient.NewRestyClient(2*time.Second), nil, "", nil)

	if f.StealthAvailable() {
		t.Fatal("stealth should be unavailable")
	}
	doc, err := f.Fetch(context.Background(), server.URL, true)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if got := doc.Find("p").Text(); got != "plain" {
		t.Fatalf("unexpected paragraph %q", got)
	}
}

func TestFetchRawTruncatesLargeBodies(t *testing.T) {
	t.Parallel()

	server := newServer(t, http.StatusOK, strings.Repeat("a", maxBodyBytes+10))
	f := New(httpclient.NewRestyClient(5*time.Second), nil, "", nil)

	body, err := f.FetchRaw(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchRaw returned error: %v", err)
	}
	if len(body) != maxBodyBytes {
		t.Fatalf("expected body capped at %d, got %d", maxBodyBytes, len(body))
	}
}
