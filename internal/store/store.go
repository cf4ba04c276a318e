// Package store persists classified articles and answers list and stats queries.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
)

const (
	DriverBolt     = "bolt"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when no article has the requested id or URL.
var ErrNotFound = errors.New("article not found")

// Store is the persistence contract. Insert and InsertBatch never overwrite an
// existing article with the same URL.
type Store interface {
	FindByURL(ctx context.Context, url string) (domain.StoredArticle, error)
	// Insert stores a if its URL is new. The bool reports whether a row was written;
	// when false the existing article is returned.
	Insert(ctx context.Context, a domain.Article) (domain.StoredArticle, bool, error)
	// InsertBatch stores every article whose URL is new in a single commit and
	// returns only the inserted ones, in input order.
	InsertBatch(ctx context.Context, articles []domain.Article) ([]domain.StoredArticle, error)
	Get(ctx context.Context, id int64) (domain.StoredArticle, error)
	List(ctx context.Context, f Filter) ([]domain.StoredArticle, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
	CountByCategory(ctx context.Context) (map[string]int, error)
	CountBySource(ctx context.Context) (map[string]int, error)
	DistinctSources(ctx context.Context) ([]string, error)
	DateRange(ctx context.Context) (DateRange, error)
	Close() error
}

// Filter narrows List results. Zero values disable a criterion.
type Filter struct {
	// Source matches as a case-insensitive substring of the source name.
	Source string
	// Category must be one of the article's categories.
	Category string
	// Keyword matches as a case-insensitive substring of any stored keyword.
	Keyword      string
	MinRelevance *int
	// DateFrom and DateTo are inclusive. Articles without a date never match a date bound.
	DateFrom time.Time
	DateTo   time.Time
	Offset   int
	Limit    int
}

// DateRange holds the earliest and latest known publication dates. Both are zero
// when no stored article has a date.
type DateRange struct {
	Earliest time.Time
	Latest   time.Time
}

// Config selects and configures a backend.
type Config struct {
	Driver       string
	Path         string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	Migrate      bool
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, log logger.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverBolt, "":
		return OpenBolt(cfg.Path, log)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Match reports whether a satisfies every criterion of f.
func (f Filter) Match(a domain.StoredArticle) bool {
	if f.Source != "" && !strings.Contains(strings.ToLower(a.Source), strings.ToLower(f.Source)) {
		return false
	}
	if f.Category != "" && !containsFold(a.Categories, f.Category) {
		return false
	}
	if f.Keyword != "" {
		needle := strings.ToLower(f.Keyword)
		found := false
		for _, kw := range a.Keywords {
			if strings.Contains(strings.ToLower(kw), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinRelevance != nil && a.RelevanceScore < *f.MinRelevance {
		return false
	}
	if !f.DateFrom.IsZero() && (!a.HasDate() || a.PublishedAt.Before(f.DateFrom)) {
		return false
	}
	if !f.DateTo.IsZero() && (!a.HasDate() || a.PublishedAt.After(f.DateTo)) {
		return false
	}
	return true
}

// sortNewestFirst orders by publication date descending with undated articles
// last, then by id descending.
func sortNewestFirst(articles []domain.StoredArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		switch {
		case a.HasDate() && !b.HasDate():
			return true
		case !a.HasDate() && b.HasDate():
			return false
		case a.HasDate() && b.HasDate() && !a.PublishedAt.Equal(b.PublishedAt):
			return a.PublishedAt.After(b.PublishedAt)
		default:
			return a.ID > b.ID
		}
	})
}

func paginate(articles []domain.StoredArticle, offset, limit int) []domain.StoredArticle {
	if offset > 0 {
		if offset >= len(articles) {
			return []domain.StoredArticle{}
		}
		articles = articles[offset:]
	}
	if limit > 0 && limit < len(articles) {
		articles = articles[:limit]
	}
	return articles
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// newStored stamps a draft with its id, scrape time and period.
func newStored(id int64, a domain.Article, now time.Time) domain.StoredArticle {
	if a.Keywords == nil {
		a.Keywords = []string{}
	}
	if a.Categories == nil {
		a.Categories = []string{}
	}
	if a.HasDate() {
		a.PublishedAt = a.PublishedAt.UTC()
	}
	return domain.StoredArticle{
		ID:         id,
		Article:    a,
		ScrapedAt:  now.UTC(),
		TimePeriod: domain.TimePeriod(a.PublishedAt),
	}
}
