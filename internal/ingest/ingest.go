// Package ingest runs one scrape batch: resolve each requested source, extract,
// classify, filter by date, store new articles and notify sinks.
package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
	"github.com/IshaanKalra2103/newsscraper/internal/store"
	"github.com/IshaanKalra2103/newsscraper/pkg/classifier"
	"github.com/IshaanKalra2103/newsscraper/pkg/providers"
)

const (
	StatusSuccess = "success"
	StatusPartial = "partial"

	DefaultArticlesPerSource = 20
	DefaultMaxArticles       = 50

	// storeTimeout bounds the insert of a source's drafts. The insert does not
	// inherit the scrape deadline so drafts scraped before it are still kept.
	storeTimeout = 30 * time.Second
)

// Resolver turns a source identifier into a fresh extractor.
// *providers.Registry satisfies it.
type Resolver interface {
	Resolve(identifier string) (providers.Source, error)
	Sources() []string
}

// Notifier receives the articles inserted for one source.
// *publishers.Dispatcher satisfies it.
type Notifier interface {
	Notify(ctx context.Context, articles []domain.StoredArticle)
}

// Config bounds a batch.
type Config struct {
	DefaultArticlesPerSource int
	MaxArticlesPerScrape     int
	// SourceConcurrency above 1 runs that many sources at once.
	SourceConcurrency int
	// SourceTimeout bounds one source run. Zero disables it.
	SourceTimeout time.Duration
}

// Request describes one batch. Zero dates disable the date bounds.
type Request struct {
	Sources              []string
	MaxArticlesPerSource int
	KeywordsFilter       []string
	DateFrom             time.Time
	DateTo               time.Time
}

// Report summarizes a batch.
type Report struct {
	Status          string   `json:"status"`
	ArticlesScraped int      `json:"articles_scraped"`
	ArticlesStored  int      `json:"articles_stored"`
	Sources         []string `json:"sources"`
	Message         string   `json:"message"`
	Errors          []string `json:"errors,omitempty"`
}

type sourceResult struct {
	scraped int
	stored  int
	err     string
}

// Ingestor is safe for concurrent batches; each batch resolves its own extractors.
type Ingestor struct {
	resolver   Resolver
	classifier *classifier.Classifier
	store      store.Store
	notifier   Notifier
	cfg        Config
	log        logger.Logger
}

// New builds an Ingestor. A nil classifier uses the default vocabulary and a nil
// notifier disables fan-out.
func New(resolver Resolver, cls *classifier.Classifier, st store.Store, notifier Notifier, cfg Config, log logger.Logger) *Ingestor {
	if cls == nil {
		cls = classifier.Default()
	}
	if cfg.DefaultArticlesPerSource <= 0 {
		cfg.DefaultArticlesPerSource = DefaultArticlesPerSource
	}
	if cfg.MaxArticlesPerScrape <= 0 {
		cfg.MaxArticlesPerScrape = DefaultMaxArticles
	}
	if cfg.SourceConcurrency <= 0 {
		cfg.SourceConcurrency = 1
	}

	return &Ingestor{
		resolver:   resolver,
		classifier: cls,
		store:      st,
		notifier:   notifier,
		cfg:        cfg,
		log:        logger.Ensure(log),
	}
}

// Sources lists the identifiers the resolver accepts.
func (in *Ingestor) Sources() []string {
	return in.resolver.Sources()
}

// Ingest runs the batch. Per-source failures are recorded in the report and
// never abort the remaining sources.
func (in *Ingestor) Ingest(ctx context.Context, req Request) Report {
	start := time.Now()
	limit := in.articleLimit(req.MaxArticlesPerSource)
	results := make([]sourceResult, len(req.Sources))

	workers := in.cfg.SourceConcurrency
	if workers > len(req.Sources) {
		workers = len(req.Sources)
	}

	if workers <= 1 {
		for i, name := range req.Sources {
			results[i] = in.runSource(ctx, name, limit, req)
		}
	} else {
		jobCh := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for idx := range jobCh {
					results[idx] = in.runSource(ctx, req.Sources[idx], limit, req)
				}
			}()
		}
		for i := range req.Sources {
			jobCh <- i
		}
		close(jobCh)
		wg.Wait()
	}

	report := Report{Sources: append([]string{}, req.Sources...)}
	for _, r := range results {
		report.ArticlesScraped += r.scraped
		report.ArticlesStored += r.stored
		if r.err != "" {
			report.Errors = append(report.Errors, r.err)
		}
	}

	report.Status = StatusPartial
	if report.ArticlesStored > 0 {
		report.Status = StatusSuccess
	}
	report.Message = fmt.Sprintf("Scraped %d articles, stored %d new articles", report.ArticlesScraped, report.ArticlesStored)
	if len(report.Errors) > 0 {
		report.Message += ". Errors: " + strings.Join(report.Errors, "; ")
	}

	in.log.InfoObj("ingestion finished", "ingest_done", map[string]any{
		"sources":     len(req.Sources),
		"scraped":     report.ArticlesScraped,
		"stored":      report.ArticlesStored,
		"errors":      len(report.Errors),
		"status":      report.Status,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return report
}

func (in *Ingestor) articleLimit(requested int) int {
	n := requested
	if n <= 0 {
		n = in.cfg.DefaultArticlesPerSource
	}
	if n > in.cfg.MaxArticlesPerScrape {
		n = in.cfg.MaxArticlesPerScrape
	}
	return n
}

func (in *Ingestor) runSource(ctx context.Context, name string, limit int, req Request) (res sourceResult) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Sprintf("%s: Unexpected error - %v", name, r)
			in.log.ErrorObj("source run panicked", "source_panic", map[string]any{
				"source": name,
				"panic":  fmt.Sprint(r),
			})
		}
	}()

	src, err := in.resolver.Resolve(name)
	if err != nil {
		res.err = fmt.Sprintf("%s: %s", name, err.Error())
		in.log.WarnObj("source not resolved", "source_unknown", map[string]any{
			"source": name,
			"error":  err.Error(),
		})
		return res
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			in.log.WarnObj("close source failed", "source_close_error", map[string]any{
				"source": name,
				"error":  cerr.Error(),
			})
		}
	}()

	runCtx := ctx
	if in.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, in.cfg.SourceTimeout)
		defer cancel()
	}

	drafts, err := src.ScrapeArticles(runCtx, limit, req.KeywordsFilter)
	if err != nil {
		return in.unexpected(res, name, err)
	}
	res.scraped = len(drafts)

	kept := make([]domain.Article, 0, len(drafts))
	for _, a := range drafts {
		cls := in.classifier.Classify(a.Content, a.Title)
		a.Keywords = cls.Keywords
		a.Categories = cls.Categories
		a.RelevanceScore = cls.Score

		if !withinDates(a, req.DateFrom, req.DateTo) {
			continue
		}
		kept = append(kept, a)
	}

	storeCtx, cancelStore := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancelStore()
	inserted, err := in.store.InsertBatch(storeCtx, kept)
	if err != nil {
		return in.unexpected(res, name, err)
	}
	res.stored = len(inserted)

	if in.notifier != nil && len(inserted) > 0 {
		in.notifier.Notify(ctx, inserted)
	}

	in.log.InfoObj("source ingested", "source_done", map[string]any{
		"source":   name,
		"scraped":  res.scraped,
		"filtered": res.scraped - len(kept),
		"stored":   res.stored,
	})
	return res
}

func (in *Ingestor) unexpected(res sourceResult, name string, err error) sourceResult {
	res.err = fmt.Sprintf("%s: Unexpected error - %s", name, err.Error())
	in.log.WarnObj("source run failed", "source_error", map[string]any{
		"source": name,
		"error":  err.Error(),
	})
	return res
}

// withinDates keeps articles without a date regardless of the bounds.
func withinDates(a domain.Article, from, to time.Time) bool {
	if !a.HasDate() {
		return true
	}
	if !from.IsZero() && a.PublishedAt.Before(from) {
		return false
	}
	if !to.IsZero() && a.PublishedAt.After(to) {
		return false
	}
	return true
}
