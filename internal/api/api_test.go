package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/api"
	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/ingest"
	"github.com/IshaanKalra2103/newsscraper/internal/store"

	"github.com/gin-gonic/gin"
)

type fakeIngester struct {
	got    ingest.Request
	report ingest.Report
}

func (f *fakeIngester) Ingest(ctx context.Context, req ingest.Request) ingest.Report {
	f.got = req
	return f.report
}

func (f *fakeIngester) Sources() []string {
	return []string{"google", "nyt", "reuters"}
}

func setupTestRouter(t *testing.T) (*gin.Engine, *fakeIngester, store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st, err := store.OpenBolt(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatalf("OpenBolt returned error: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ing := &fakeIngester{}
	return api.NewRouter(api.Deps{Ingester: ing, Store: st}, nil), ing, st
}

func seed(t *testing.T, st store.Store) []domain.StoredArticle {
	t.Helper()
	inserted, err := st.InsertBatch(context.Background(), []domain.Article{
		{Title: "Grid", URL: "https://r/1", Source: "Reuters", PublishedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			Categories: []string{"energy"}, Keywords: []string{"grid"}, RelevanceScore: 4},
		{Title: "GPU", URL: "https://n/1", Source: "New York Times", PublishedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Categories: []string{"ai"}, Keywords: []string{"gpu"}, RelevanceScore: 2},
		{Title: "Undated", URL: "https://o/1", Source: "OpenAI Blog", Categories: []string{"ai"}, RelevanceScore: 6},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return inserted
}

func do(router http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := do(router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["status"] != "healthy" {
		t.Fatalf("unexpected body %v", body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected caller request id, got %q", got)
	}
}

func TestSourcesEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	body := decode[struct {
		Sources []string `json:"sources"`
		Count   int      `json:"count"`
	}](t, do(router, http.MethodGet, "/api/v1/sources", nil))

	if body.Count != 3 || body.Sources[1] != "nyt" {
		t.Fatalf("unexpected sources %+v", body)
	}
}

func TestScrapeEndpoint(t *testing.T) {
	router, ing, _ := setupTestRouter(t)
	ing.report = ingest.Report{
		Status:          ingest.StatusSuccess,
		ArticlesScraped: 3,
		ArticlesStored:  2,
		Sources:         []string{"nyt"},
		Message:         "Scraped 3 articles, stored 2 new articles",
	}

	w := do(router, http.MethodPost, "/api/v1/scrape",
		[]byte(`{"sources":[" nyt ",""],"max_articles":5,"keywords_filter":["grid"],"date_from":"2024-01-15"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	report := decode[ingest.Report](t, w)
	if report.ArticlesStored != 2 || report.Status != "success" {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(ing.got.Sources) != 1 || ing.got.Sources[0] != "nyt" || ing.got.MaxArticlesPerSource != 5 {
		t.Fatalf("unexpected ingest request %+v", ing.got)
	}
	if !ing.got.DateFrom.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) || !ing.got.DateTo.IsZero() {
		t.Fatalf("unexpected dates %v %v", ing.got.DateFrom, ing.got.DateTo)
	}
}

func TestScrapeValidation(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	for name, body := range map[string]string{
		"empty sources": `{"sources":[]}`,
		"bad json":      `{"sources":`,
		"bad date":      `{"sources":["nyt"],"date_to":"not a date"}`,
	} {
		w := do(router, http.MethodPost, "/api/v1/scrape", []byte(body))
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", name, w.Code)
		}
		errBody := decode[map[string]any](t, w)
		if errBody["error"] != true || errBody["status_code"].(float64) != 422 {
			t.Fatalf("%s: unexpected error body %v", name, errBody)
		}
	}
}

func TestListArticles(t *testing.T) {
	router, _, st := setupTestRouter(t)
	seed(t, st)

	type item struct {
		URL           string     `json:"url"`
		PublishedDate *time.Time `json:"published_date"`
		TimePeriod    string     `json:"time_period"`
	}

	all := decode[[]item](t, do(router, http.MethodGet, "/api/v1/articles", nil))
	if len(all) != 3 || all[0].URL != "https://n/1" || all[2].PublishedDate != nil {
		t.Fatalf("unexpected list %+v", all)
	}
	if all[0].TimePeriod != "2023-2024" {
		t.Fatalf("unexpected period %q", all[0].TimePeriod)
	}

	page := decode[[]item](t, do(router, http.MethodGet, "/api/v1/articles?skip=1&limit=1", nil))
	if len(page) != 1 || page[0].URL != "https://r/1" {
		t.Fatalf("unexpected page %+v", page)
	}

	ai := decode[[]item](t, do(router, http.MethodGet, "/api/v1/articles?category=AI&min_relevance=3", nil))
	if len(ai) != 1 || ai[0].URL != "https://o/1" {
		t.Fatalf("unexpected filtered list %+v", ai)
	}

	dated := decode[[]item](t, do(router, http.MethodGet, "/api/v1/articles?date_from=2024-02-15", nil))
	if len(dated) != 1 || dated[0].URL != "https://n/1" {
		t.Fatalf("unexpected date filtered list %+v", dated)
	}

	for _, q := range []string{"limit=0", "limit=101", "skip=-1", "min_relevance=x", "date_to=nope"} {
		if w := do(router, http.MethodGet, "/api/v1/articles?"+q, nil); w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", q, w.Code)
		}
	}
}

func TestGetAndDeleteArticle(t *testing.T) {
	router, _, st := setupTestRouter(t)
	inserted := seed(t, st)
	path := "/api/v1/articles/" + jsonNumber(inserted[0].ID)

	w := do(router, http.MethodGet, path, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := decode[map[string]any](t, w)["url"]; got != "https://r/1" {
		t.Fatalf("unexpected article %v", got)
	}

	if w := do(router, http.MethodDelete, path, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", w.Code)
	}
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := do(router, method, path, nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s after delete: expected 404, got %d", method, w.Code)
		}
		if msg := decode[map[string]any](t, w)["message"]; msg != "Article not found" {
			t.Fatalf("unexpected message %v", msg)
		}
	}

	if w := do(router, http.MethodGet, "/api/v1/articles/abc", nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for bad id, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router, _, st := setupTestRouter(t)
	seed(t, st)

	body := decode[struct {
		Total      int            `json:"total_articles"`
		BySource   map[string]int `json:"by_source"`
		ByCategory map[string]int `json:"by_category"`
		DateRange  struct {
			Earliest *time.Time `json:"earliest"`
			Latest   *time.Time `json:"latest"`
		} `json:"date_range"`
	}](t, do(router, http.MethodGet, "/api/v1/stats", nil))

	if body.Total != 3 || body.BySource["Reuters"] != 1 {
		t.Fatalf("unexpected stats %+v", body)
	}
	if body.ByCategory["ai"] != 2 || body.ByCategory["energy"] != 1 || body.ByCategory["financial"] != 0 {
		t.Fatalf("unexpected category counts %v", body.ByCategory)
	}
	if body.DateRange.Earliest == nil || body.DateRange.Earliest.Month() != time.February || body.DateRange.Latest.Month() != time.March {
		t.Fatalf("unexpected date range %+v", body.DateRange)
	}
}

func TestStatsOnEmptyStore(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	body := decode[map[string]any](t, do(router, http.MethodGet, "/api/v1/stats", nil))
	dr := body["date_range"].(map[string]any)
	if dr["earliest"] != nil || dr["latest"] != nil {
		t.Fatalf("empty store should have null dates, got %v", dr)
	}
}

func TestCORSAndNotFound(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	w := do(router, http.MethodOptions, "/api/v1/articles", nil)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected preflight response %d %v", w.Code, w.Header())
	}

	w = do(router, http.MethodGet, "/nope", nil)
	if w.Code != http.StatusNotFound || decode[map[string]any](t, w)["error"] != true {
		t.Fatalf("unexpected not found response %d %s", w.Code, w.Body.String())
	}
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
