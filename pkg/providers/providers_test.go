package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/pkg/fetch"
	"github.com/IshaanKalra2103/newsscraper/pkg/httpclient"

	"github.com/PuerkitoBio/goquery"
)

func articlePage(title, body string, extraHead string) string {
	return fmt.Sprintf(`<html><head><title>%s | Site</title>%s</head>
<body><article><h1>%s</h1>%s</article></body></html>`, title, extraHead, title, body)
}

func newTestFetcher() PageFetcher {
	return fetch.New(httpclient.NewRestyClient(2*time.Second), nil, "", nil)
}

func serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range pages {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(body))
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestNYTListingThenSitemap(t *testing.T) {
	t.Parallel()

	var base string
	pages := map[string]string{
		"/section/business": `<html><body>
			<a href="/2024/05/17/business/grid.html">Grid</a>
			<a href="/2024/05/17/business/grid.html#comments">Grid again</a>
			<a href="/about">About</a>
			<a href="/2024/05/18/business/markets.html">Markets</a>
		</body></html>`,
		"/2024/05/17/business/grid.html": articlePage("Grid strain", "<p>The power grid is under strain.</p><p>Utilities respond.</p>",
			`<meta property="og:title" content="Grid Strain Grows">
			 <meta name="author" content="By Jane Doe and John Roe">
			 <meta name="news_keywords" content="Energy, Grid">
			 <script type="application/ld+json">{"@type":"NewsArticle","datePublished":"2024-05-17T08:00:00Z"}</script>`),
		"/2024/05/18/business/markets.html": articlePage("Markets", "<p>Stocks rose.</p>", ""),
		"/sitemaps/new/news.xml.gz": `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9" xmlns:news="http://www.google.com/schemas/sitemap-news/0.9">
  <url><loc>{{BASE}}/live/markets-today</loc></url>
  <url><loc>{{BASE}}/2024/05/19/climate/heat.html</loc>
    <news:news><news:publication_date>2024-05-19T06:00:00Z</news:publication_date><news:title>Heat</news:title><news:keywords>climate, heat</news:keywords></news:news>
  </url>
  <url><loc>{{BASE}}/2024/05/20/climate/extra.html</loc></url>
</urlset>`,
		"/2024/05/19/climate/heat.html": `<html><body><main><p>Heat waves stress power plants.</p></main></body></html>`,
	}

	mux := http.NewServeMux()
	for path, body := range pages {
		path, body := path, body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != path {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(strings.ReplaceAll(body, "{{BASE}}", base)))
		})
	}
	server := httptest.NewServer(mux)
	defer server.Close()
	base = server.URL

	src := newNYTSource(server.URL, newTestFetcher(), crawler.NewHarvester(2, 0, nil), nil)
	defer src.Close()

	articles, err := src.ScrapeArticles(context.Background(), 3, nil)
	if err != nil {
		t.Fatalf("ScrapeArticles returned error: %v", err)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}

	wantURLs := []string{
		base + "/2024/05/17/business/grid.html",
		base + "/2024/05/18/business/markets.html",
		base + "/2024/05/19/climate/heat.html",
	}
	for i, art := range articles {
		if art.URL != wantURLs[i] {
			t.Fatalf("article %d url = %s, want %s", i, art.URL, wantURLs[i])
		}
		if art.Source != "New York Times" {
			t.Fatalf("unexpected source %q", art.Source)
		}
	}

	grid := articles[0]
	if grid.Title != "Grid Strain Grows" {
		t.Fatalf("unexpected title %q", grid.Title)
	}
	if grid.Content != "The power grid is under strain.\n\nUtilities respond." {
		t.Fatalf("unexpected content %q", grid.Content)
	}
	if grid.Author != "Jane Doe, John Roe" {
		t.Fatalf("unexpected author %q", grid.Author)
	}
	if !grid.PublishedAt.Equal(time.Date(2024, 5, 17, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", grid.PublishedAt)
	}
	if !reflect.DeepEqual(grid.Tags, []string{"Energy", "Grid"}) {
		t.Fatalf("unexpected tags %v", grid.Tags)
	}

	if got := articles[1].PublishedAt; !got.Equal(time.Date(2024, 5, 18, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date should come from the URL path, got %v", got)
	}

	heat := articles[2]
	if heat.Title != "Heat" {
		t.Fatalf("title should fall back to the sitemap hint, got %q", heat.Title)
	}
	if !reflect.DeepEqual(heat.Tags, []string{"climate", "heat"}) {
		t.Fatalf("tags should fall back to the sitemap hint, got %v", heat.Tags)
	}
}

func TestSitemapIndexSkipsFailingChild(t *testing.T) {
	t.Parallel()

	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemaps/new/news.xml.gz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `<?xml version="1.0"?><sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<sitemap><loc>%s/sitemaps/broken.xml</loc></sitemap>
<sitemap><loc>%s/sitemaps/today.xml</loc></sitemap>
</sitemapindex>`, base, base)
	})
	mux.HandleFunc("/sitemaps/today.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>%s/2024/06/01/science/fusion.html</loc></url>
</urlset>`, base)
	})
	mux.HandleFunc("/2024/06/01/science/fusion.html", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articlePage("Fusion", "<p>Fusion power milestone.</p>", "")))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	base = server.URL

	src := newNYTSource(server.URL, newTestFetcher(), nil, nil)
	defer src.Close()

	articles, err := src.ScrapeArticles(context.Background(), 5, nil)
	if err != nil {
		t.Fatalf("ScrapeArticles returned error: %v", err)
	}
	if len(articles) != 1 || articles[0].URL != base+"/2024/06/01/science/fusion.html" {
		t.Fatalf("expected the article from the healthy child sitemap, got %+v", articles)
	}
}

type fetchCall struct {
	url     string
	stealth bool
}

// recordingFetcher answers every page with links that each source accepts and
// records how it was asked for them.
type recordingFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	raw   []string
}

func (f *recordingFetcher) Fetch(ctx context.Context, url string, useStealth bool) (*goquery.Document, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{url: url, stealth: useStealth})
	f.mu.Unlock()
	return goquery.NewDocumentFromReader(strings.NewReader(articlePage("Page", "<p>Body.</p>",
		"")+`<a href="/technology/chips-2024/">c</a><a href="/2024/05/17/business/grid.html">g</a><a href="/blog/post/">b</a>`))
}

func (f *recordingFetcher) FetchRaw(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.raw = append(f.raw, url)
	f.mu.Unlock()
	return nil, errors.New("no xml")
}

func (f *recordingFetcher) Close() error { return nil }

func TestStealthIsRequestedOnlyByBlockingSources(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		build   func(PageFetcher) *extractor
		stealth bool
	}{
		"reuters": {func(f PageFetcher) *extractor { return newReutersSource("https://r.test", f, nil, nil) }, true},
		"nyt":     {func(f PageFetcher) *extractor { return newNYTSource("https://n.test", f, nil, nil) }, false},
		"openai":  {func(f PageFetcher) *extractor { return newOpenAISource("https://o.test", f, nil, nil) }, false},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := &recordingFetcher{}
			articles, err := tc.build(f).ScrapeArticles(context.Background(), 2, nil)
			if err != nil {
				t.Fatalf("ScrapeArticles returned error: %v", err)
			}
			if len(articles) == 0 {
				t.Fatal("expected articles from the listing")
			}

			var listing, article int
			for _, c := range f.calls {
				if c.stealth != tc.stealth {
					t.Fatalf("fetch of %s used stealth=%v, want %v", c.url, c.stealth, tc.stealth)
				}
				if strings.HasSuffix(c.url, ".test/technology/") || strings.Contains(c.url, "/section/") || strings.HasSuffix(c.url, ".test/blog") {
					listing++
				} else {
					article++
				}
			}
			if listing == 0 || article == 0 {
				t.Fatalf("expected listing and article fetches, got %+v", f.calls)
			}
			if tc.stealth && len(f.raw) != 0 {
				t.Fatalf("blocking source read plain XML listings: %v", f.raw)
			}
		})
	}
}

func TestOpenAIFallsBackToFeed(t *testing.T) {
	t.Parallel()

	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/blog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><a href="/blog">Blog</a><a href="/careers">Jobs</a></body></html>`))
	})
	mux.HandleFunc("/news/rss.xml", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>OpenAI</title>
<item><title>Hiring</title><link>%s/careers/engineer/</link></item>
<item><title>New model</title><link>%s/blog/new-model/</link><pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate></item>
</channel></rss>`, base, base)
	})
	mux.HandleFunc("/blog/new-model/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta name="description" content="A new model."></head>
<body><article><p>We trained a large language model.</p></article></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	base = server.URL

	src := newOpenAISource(server.URL, newTestFetcher(), nil, nil)
	defer src.Close()

	articles, err := src.ScrapeArticles(context.Background(), 5, nil)
	if err != nil {
		t.Fatalf("ScrapeArticles returned error: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}

	art := articles[0]
	if art.Title != "New model" {
		t.Fatalf("unexpected title %q", art.Title)
	}
	if art.Author != "OpenAI" {
		t.Fatalf("unexpected author %q", art.Author)
	}
	if art.Summary != "A new model." {
		t.Fatalf("unexpected summary %q", art.Summary)
	}
	if !reflect.DeepEqual(art.Tags, []string{"ai", "openai"}) {
		t.Fatalf("unexpected tags %v", art.Tags)
	}
	if !art.PublishedAt.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", art.PublishedAt)
	}
}

func TestGoogleResearchUsesFirstLinkPerArticleAndCaps(t *testing.T) {
	t.Parallel()

	server := serve(t, map[string]string{
		"/": `<html><body>
			<article><a href="/post-one/">One</a><a href="/tag/ml">ML</a></article>
			<article><a href="/post-two/">Two</a></article>
			<article><a href="/post-three/">Three</a></article>
		</body></html>`,
		"/post-one/":   articlePage("One", "<p>Neural network research.</p>", `<meta property="article:published_time" content="2023-06-01T00:00:00Z">`),
		"/post-two/":   articlePage("Two", "<p>More research.</p>", `<time class="published" datetime="2023-07-01"></time>`),
		"/post-three/": articlePage("Three", "<p>Even more.</p>", ""),
	})

	src := newGoogleResearchSource(server.URL, newTestFetcher(), nil, nil)
	defer src.Close()

	articles, err := src.ScrapeArticles(context.Background(), 2, nil)
	if err != nil {
		t.Fatalf("ScrapeArticles returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}
	if articles[0].URL != server.URL+"/post-one/" || articles[1].URL != server.URL+"/post-two/" {
		t.Fatalf("unexpected urls %s, %s", articles[0].URL, articles[1].URL)
	}
	if articles[0].Author != "Google Research" {
		t.Fatalf("unexpected author %q", articles[0].Author)
	}
	if !articles[1].PublishedAt.Equal(time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", articles[1].PublishedAt)
	}
}

func TestKeywordsFilterDropsUnrelatedArticles(t *testing.T) {
	t.Parallel()

	server := serve(t, map[string]string{
		"/": `<html><body>
			<article><a href="/solar/">Solar</a></article>
			<article><a href="/cats/">Cats</a></article>
		</body></html>`,
		"/solar/": articlePage("Solar farms", "<p>Solar output doubled.</p>", ""),
		"/cats/":  articlePage("Cats", "<p>Cats sleep a lot.</p>", ""),
	})

	src := newGoogleResearchSource(server.URL, newTestFetcher(), nil, nil)
	defer src.Close()

	articles, err := src.ScrapeArticles(context.Background(), 10, []string{"solar"})
	if err != nil {
		t.Fatalf("ScrapeArticles returned error: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Solar farms" {
		t.Fatalf("expected only the solar article, got %+v", articles)
	}
}

func TestFailedListingAndArticlePagesAreSkipped(t *testing.T) {
	t.Parallel()

	server := serve(t, map[string]string{
		"/technology/": `<html><body><a href="/technology/chips-2024/">Chips</a><a href="/technology/missing/">Gone</a></body></html>`,
		"/technology/chips-2024/": articlePage("Chips", "<p>GPU demand.</p>", ""),
	})

	src := newReutersSource(server.URL, newTestFetcher(), nil, nil)
	defer src.Close()

	articles, err := src.ScrapeArticles(context.Background(), 10, nil)
	if err != nil {
		t.Fatalf("ScrapeArticles returned error: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "Chips" {
		t.Fatalf("expected the single reachable article, got %+v", articles)
	}
}

func TestScrapeArticlesReturnsErrorWhenCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := newOpenAISource("http://127.0.0.1:1", newTestFetcher(), nil, nil)
	defer src.Close()

	_, err := src.ScrapeArticles(ctx, 5, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry(Options{})

	cases := map[string]string{
		"nyt":             SourceIDNYT,
		"New York Times":  SourceIDNYT,
		" REUTERS ":       SourceIDReuters,
		"openai_blog":     SourceIDOpenAI,
		"Google Research": SourceIDGoogleResearch,
		"google":          SourceIDGoogleResearch,
	}
	for input, want := range cases {
		src, err := reg.Resolve(input)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", input, err)
		}
		if src.ID() != want {
			t.Fatalf("Resolve(%q) = %s, want %s", input, src.ID(), want)
		}
		_ = src.Close()
	}

	a, _ := reg.Resolve("nyt")
	b, _ := reg.Resolve("nyt")
	if a == b {
		t.Fatal("Resolve should build a fresh extractor each time")
	}
}

func TestRegistryUnknownSource(t *testing.T) {
	t.Parallel()

	reg := DefaultRegistry(Options{})
	_, err := reg.Resolve("bbc")

	var unknown *UnknownSourceError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSourceError, got %v", err)
	}
	want := "Unsupported source: bbc. Available sources: google, google_research, new_york_times, nyt, openai, openai_blog, reuters"
	if err.Error() != want {
		t.Fatalf("error = %q\nwant    %q", err.Error(), want)
	}

	if got := reg.Sources(); !reflect.DeepEqual(got, unknown.Available) {
		t.Fatalf("Sources() = %v, want %v", got, unknown.Available)
	}
}
