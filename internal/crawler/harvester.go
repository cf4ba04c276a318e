package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
)

const defaultWorkers = 4

// Target is one article page to visit. Hint carries metadata already known from
// the listing (sitemap or feed entry) and may be empty.
type Target struct {
	URL  string
	Hint domain.Article
}

// VisitFunc fetches and parses a single article page.
type VisitFunc func(ctx context.Context, t Target) (domain.Article, error)

// Harvester visits article pages with a bounded worker pool.
type Harvester struct {
	workers int
	delay   time.Duration
	log     logger.Logger
}

// NewHarvester creates a Harvester. delay spaces out request starts across all workers.
func NewHarvester(workers int, delay time.Duration, log logger.Logger) *Harvester {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if delay < 0 {
		delay = 0
	}
	return &Harvester{workers: workers, delay: delay, log: logger.Ensure(log)}
}

// Harvest visits every target and returns the parsed articles in target order.
// Targets that fail are logged and dropped. On cancellation the articles
// completed so far are returned.
func (h *Harvester) Harvest(ctx context.Context, source string, targets []Target, visit VisitFunc) []domain.Article {
	if len(targets) == 0 {
		return nil
	}

	out := make([]*domain.Article, len(targets))
	workerCount := min(len(targets), h.workers)

	var limiter <-chan time.Time
	if h.delay > 0 {
		ticker := time.NewTicker(h.delay)
		defer ticker.Stop()
		limiter = ticker.C
	}

	jobCh := make(chan int)
	var wg sync.WaitGroup

	for workerID := range workerCount {
		wg.Add(1)
		go h.worker(ctx, source, targets, visit, limiter, jobCh, out, &wg, workerID)
	}

dispatch:
	for idx := range targets {
		select {
		case <-ctx.Done():
			break dispatch
		case jobCh <- idx:
		}
	}
	close(jobCh)

	wg.Wait()

	articles := make([]domain.Article, 0, len(targets))
	for _, art := range out {
		if art != nil {
			articles = append(articles, *art)
		}
	}
	return articles
}

func (h *Harvester) worker(
	ctx context.Context,
	source string,
	targets []Target,
	visit VisitFunc,
	limiter <-chan time.Time,
	jobCh <-chan int,
	out []*domain.Article,
	wg *sync.WaitGroup,
	workerID int,
) {
	defer wg.Done()

	for idx := range jobCh {
		if ctx.Err() != nil {
			return
		}

		if limiter != nil {
			select {
			case <-ctx.Done():
				return
			case <-limiter:
			}
		}

		target := targets[idx]
		h.log.DebugObj("scraping article", "scrape_start", map[string]any{
			"worker_id": workerID,
			"source":    source,
			"url":       target.URL,
		})

		art, err := safeVisit(ctx, visit, target)
		if err != nil {
			h.log.WarnObj("article scrape failed", "article_error", map[string]any{
				"worker_id": workerID,
				"source":    source,
				"url":       target.URL,
				"error":     err.Error(),
			})
			continue
		}
		out[idx] = &art
	}
}

// safeVisit turns a panic inside visit into an error for that target only.
func safeVisit(ctx context.Context, visit VisitFunc, t Target) (art domain.Article, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic visiting %s: %v", t.URL, r)
		}
	}()
	return visit(ctx, t)
}
