package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
	"github.com/IshaanKalra2103/newsscraper/pkg/classifier"
	"github.com/IshaanKalra2103/newsscraper/pkg/fetch"

	"github.com/PuerkitoBio/goquery"
)

// profile describes where a publisher lists its articles and how its pages are read.
// All paths are relative to baseURL.
type profile struct {
	id      string
	name    string
	baseURL string

	listingPaths []string
	stealth      bool
	// include filters raw listing hrefs. nil accepts every link.
	include func(href string) bool
	// links picks candidate hrefs from a listing page. nil means every a[href].
	links func(doc *goquery.Document) []string
	// excludePaths are never treated as articles, e.g. the listing page itself.
	excludePaths []string

	// sitemapPaths fill the remaining quota after the listing pages.
	sitemapPaths []string
	// feedPaths are only read when the listing pages yield no candidates.
	feedPaths []string

	defaultAuthor string
	fixedTags     []string
}

func (p profile) abs(path string) string {
	return strings.TrimRight(p.baseURL, "/") + path
}

// extractor implements Source for any profile.
type extractor struct {
	profile   profile
	fetcher   PageFetcher
	harvester *crawler.Harvester
	log       logger.Logger
}

func newExtractor(p profile, fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) *extractor {
	log = logger.Ensure(log)
	if fetcher == nil {
		fetcher = fetch.New(nil, nil, "", log)
	}
	if harvester == nil {
		harvester = crawler.NewHarvester(0, 0, log)
	}
	return &extractor{profile: p, fetcher: fetcher, harvester: harvester, log: log}
}

func (e *extractor) ID() string   { return e.profile.id }
func (e *extractor) Name() string { return e.profile.name }

// ScrapeArticles discovers candidate links, harvests them and applies the keyword filter.
func (e *extractor) ScrapeArticles(ctx context.Context, maxArticles int, keywordsFilter []string) ([]domain.Article, error) {
	if maxArticles <= 0 {
		return []domain.Article{}, nil
	}

	targets := e.discover(ctx, maxArticles)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s discover: %w", e.profile.id, err)
	}

	e.log.InfoObj("article candidates discovered", "discover_done", map[string]any{
		"source":     e.profile.id,
		"candidates": len(targets),
	})

	harvested := e.harvester.Harvest(ctx, e.profile.name, targets, e.visit)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s harvest: %w", e.profile.id, err)
	}

	articles := make([]domain.Article, 0, len(harvested))
	for _, art := range harvested {
		if !classifier.FilterByKeywords(art.Content, art.Title, keywordsFilter) {
			continue
		}
		articles = append(articles, art)
		if len(articles) == maxArticles {
			break
		}
	}
	return articles, nil
}

// Close releases the extractor's fetch resources.
func (e *extractor) Close() error {
	return e.fetcher.Close()
}

func (e *extractor) visit(ctx context.Context, t crawler.Target) (domain.Article, error) {
	doc, err := e.fetcher.Fetch(ctx, t.URL, e.profile.stealth)
	if err != nil {
		return domain.Article{}, err
	}
	return e.parseArticle(doc, t), nil
}
