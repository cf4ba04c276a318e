// Package providers holds the per-publisher article extractors and the registry
// that resolves a source identifier to a fresh extractor.
package providers

import (
	"context"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

// Source produces article drafts from one publisher.
type Source interface {
	ID() string
	Name() string
	// ScrapeArticles returns at most maxArticles drafts. When keywordsFilter is
	// non-empty only articles mentioning one of the keywords are kept.
	ScrapeArticles(ctx context.Context, maxArticles int, keywordsFilter []string) ([]domain.Article, error)
	Close() error
}

// PageFetcher is the fetch capability an extractor needs. *fetch.Fetcher satisfies it.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, useStealth bool) (*goquery.Document, error)
	FetchRaw(ctx context.Context, url string) ([]byte, error)
	Close() error
}

const (
	SourceIDNYT            = "nyt"
	SourceIDReuters        = "reuters"
	SourceIDOpenAI         = "openai"
	SourceIDGoogleResearch = "google_research"
)
