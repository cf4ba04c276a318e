package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/ingest"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
	"github.com/IshaanKalra2103/newsscraper/internal/store"
	"github.com/IshaanKalra2103/newsscraper/pkg/classifier"
	"github.com/IshaanKalra2103/newsscraper/pkg/fetch"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type handler struct {
	deps Deps
	log  logger.Logger
}

type scrapeRequest struct {
	Sources        []string `json:"sources"`
	MaxArticles    int      `json:"max_articles"`
	KeywordsFilter []string `json:"keywords_filter"`
	DateFrom       string   `json:"date_from"`
	DateTo         string   `json:"date_to"`
}

type articleResponse struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Source         string     `json:"source"`
	Content        string     `json:"content"`
	Summary        string     `json:"summary"`
	Author         string     `json:"author"`
	PublishedDate  *time.Time `json:"published_date"`
	ImageURL       string     `json:"image_url"`
	Tags           []string   `json:"tags"`
	Keywords       []string   `json:"keywords"`
	Categories     []string   `json:"categories"`
	RelevanceScore int        `json:"relevance_score"`
	TimePeriod     string     `json:"time_period"`
	ScrapedAt      time.Time  `json:"scraped_at"`
}

func toResponse(a domain.StoredArticle) articleResponse {
	out := articleResponse{
		ID:             a.ID,
		Title:          a.Title,
		URL:            a.URL,
		Source:         a.Source,
		Content:        a.Content,
		Summary:        a.Summary,
		Author:         a.Author,
		ImageURL:       a.ImageURL,
		Tags:           a.Tags,
		Keywords:       a.Keywords,
		Categories:     a.Categories,
		RelevanceScore: a.RelevanceScore,
		TimePeriod:     a.TimePeriod,
		ScrapedAt:      a.ScrapedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if a.HasDate() {
		t := a.PublishedAt
		out.PublishedDate = &t
	}
	return out
}

func (h *handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "News Scraper API",
		"version": apiVersion,
		"status":  "running",
		"api":     "/api/v1",
		"endpoints": gin.H{
			"health":   "/health",
			"sources":  "/api/v1/sources",
			"scrape":   "/api/v1/scrape",
			"articles": "/api/v1/articles",
			"stats":    "/api/v1/stats",
		},
	})
}

func (h *handler) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := h.deps.Store.Count(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["database"] = err.Error()
	}
	c.JSON(status, body)
}

func (h *handler) sources(c *gin.Context) {
	list := h.deps.Ingester.Sources()
	c.JSON(http.StatusOK, gin.H{"sources": list, "count": len(list)})
}

func (h *handler) scrape(c *gin.Context) {
	var body scrapeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "Validation error: invalid request body")
		return
	}

	sources := make([]string, 0, len(body.Sources))
	for _, s := range body.Sources {
		if s = strings.TrimSpace(s); s != "" {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		abortWithError(c, http.StatusUnprocessableEntity, "Validation error: sources must not be empty")
		return
	}

	req := ingest.Request{
		Sources:              sources,
		MaxArticlesPerSource: body.MaxArticles,
		KeywordsFilter:       body.KeywordsFilter,
	}
	var err error
	if req.DateFrom, err = optionalDate(body.DateFrom); err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "Validation error: date_from "+err.Error())
		return
	}
	if req.DateTo, err = optionalDate(body.DateTo); err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "Validation error: date_to "+err.Error())
		return
	}

	ctx := c.Request.Context()
	if h.deps.ScrapeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.deps.ScrapeTimeout)
		defer cancel()
	}

	c.JSON(http.StatusOK, h.deps.Ingester.Ingest(ctx, req))
}

func (h *handler) listArticles(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "Validation error: "+err.Error())
		return
	}

	articles, err := h.deps.Store.List(c.Request.Context(), f)
	if err != nil {
		h.internalError(c, "list articles failed", err)
		return
	}

	out := make([]articleResponse, len(articles))
	for i, a := range articles {
		out[i] = toResponse(a)
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) getArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	a, err := h.deps.Store.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "Article not found")
		return
	}
	if err != nil {
		h.internalError(c, "get article failed", err)
		return
	}
	c.JSON(http.StatusOK, toResponse(a))
}

func (h *handler) deleteArticle(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}

	err := h.deps.Store.Delete(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "Article not found")
		return
	}
	if err != nil {
		h.internalError(c, "delete article failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Article %d deleted successfully", id)})
}

func (h *handler) stats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := h.deps.Store.Count(ctx)
	if err != nil {
		h.internalError(c, "count articles failed", err)
		return
	}
	bySource, err := h.deps.Store.CountBySource(ctx)
	if err != nil {
		h.internalError(c, "count by source failed", err)
		return
	}
	counted, err := h.deps.Store.CountByCategory(ctx)
	if err != nil {
		h.internalError(c, "count by category failed", err)
		return
	}
	dr, err := h.deps.Store.DateRange(ctx)
	if err != nil {
		h.internalError(c, "date range failed", err)
		return
	}

	byCategory := map[string]int{
		classifier.CategoryEnergy:    counted[classifier.CategoryEnergy],
		classifier.CategoryFinancial: counted[classifier.CategoryFinancial],
		classifier.CategoryAI:        counted[classifier.CategoryAI],
	}

	c.JSON(http.StatusOK, gin.H{
		"total_articles": total,
		"by_source":      bySource,
		"by_category":    byCategory,
		"date_range": gin.H{
			"earliest": optionalTime(dr.Earliest),
			"latest":   optionalTime(dr.Latest),
		},
	})
}

func (h *handler) internalError(c *gin.Context, msg string, err error) {
	h.log.ErrorObj(msg, "http_store_error", map[string]any{
		"path":       c.Request.URL.Path,
		"request_id": c.GetString(requestIDKey),
		"error":      err.Error(),
	})
	abortWithError(c, http.StatusInternalServerError, "Internal server error")
}

func articleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusUnprocessableEntity, "Validation error: id must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseFilter(c *gin.Context) (store.Filter, error) {
	f := store.Filter{
		Source:   strings.TrimSpace(c.Query("source")),
		Category: strings.ToLower(strings.TrimSpace(c.Query("category"))),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Limit:    defaultPageSize,
	}

	if raw := c.Query("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errors.New("skip must be a non-negative integer")
		}
		f.Offset = n
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageSize {
			return f, fmt.Errorf("limit must be between 1 and %d", maxPageSize)
		}
		f.Limit = n
	}
	if raw := c.Query("min_relevance"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, errors.New("min_relevance must be an integer")
		}
		f.MinRelevance = &n
	}

	var err error
	if f.DateFrom, err = optionalDate(c.Query("date_from")); err != nil {
		return f, fmt.Errorf("date_from %w", err)
	}
	if f.DateTo, err = optionalDate(c.Query("date_to")); err != nil {
		return f, fmt.Errorf("date_to %w", err)
	}
	return f, nil
}

func optionalDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	t, ok := fetch.ParseDate(raw)
	if !ok {
		return time.Time{}, fmt.Errorf("is not a valid date: %q", raw)
	}
	return t, nil
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
