package providers

import (
	"context"
	"strings"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"

	"github.com/PuerkitoBio/goquery"
)

// discovery collects unique candidates up to a limit.
type discovery struct {
	limit   int
	seen    map[string]struct{}
	targets []crawler.Target
}

func newDiscovery(limit int) *discovery {
	return &discovery{limit: limit, seen: make(map[string]struct{})}
}

func (d *discovery) full() bool { return len(d.targets) >= d.limit }

func (d *discovery) add(t crawler.Target) bool {
	if d.full() || t.URL == "" {
		return false
	}
	if _, ok := d.seen[t.URL]; ok {
		return false
	}
	d.seen[t.URL] = struct{}{}
	d.targets = append(d.targets, t)
	return true
}

// discover walks the listing pages in order, then the sitemaps, then the feeds.
// The limit applies across all of them.
func (e *extractor) discover(ctx context.Context, limit int) []crawler.Target {
	d := newDiscovery(limit)

	for _, path := range e.profile.listingPaths {
		if d.full() || ctx.Err() != nil {
			break
		}
		page := e.profile.abs(path)

		doc, err := e.fetcher.Fetch(ctx, page, e.profile.stealth)
		if err != nil {
			e.log.WarnObj("listing page fetch failed", "listing_error", map[string]any{
				"source": e.profile.id,
				"url":    page,
				"error":  err.Error(),
			})
			continue
		}

		for _, href := range e.listingLinks(doc) {
			if d.full() {
				break
			}
			if !e.included(href) {
				continue
			}
			abs := resolveURL(href, page)
			if !isHTTP(abs) || e.excluded(abs) {
				continue
			}
			d.add(crawler.Target{URL: abs})
		}
	}

	// XML listings go through the plain client, so sources that need the
	// browser never read them.
	if e.profile.stealth {
		return d.targets
	}

	for _, path := range e.profile.sitemapPaths {
		if d.full() || ctx.Err() != nil {
			break
		}
		targets, err := e.sitemapTargets(ctx, e.profile.abs(path), nil)
		if err != nil {
			e.log.WarnObj("sitemap fetch failed", "sitemap_error", map[string]any{
				"source": e.profile.id,
				"url":    e.profile.abs(path),
				"error":  err.Error(),
			})
			continue
		}
		for _, t := range targets {
			if d.full() {
				break
			}
			if e.included(t.URL) && !e.excluded(t.URL) {
				d.add(t)
			}
		}
	}

	if len(d.targets) > 0 {
		return d.targets
	}

	for _, path := range e.profile.feedPaths {
		if d.full() || ctx.Err() != nil {
			break
		}
		targets, err := e.feedTargets(ctx, e.profile.abs(path))
		if err != nil {
			e.log.WarnObj("feed fetch failed", "feed_error", map[string]any{
				"source": e.profile.id,
				"url":    e.profile.abs(path),
				"error":  err.Error(),
			})
			continue
		}
		for _, t := range targets {
			if d.full() {
				break
			}
			if e.included(t.URL) && !e.excluded(t.URL) {
				d.add(t)
			}
		}
	}

	return d.targets
}

func (e *extractor) listingLinks(doc *goquery.Document) []string {
	if e.profile.links != nil {
		return e.profile.links(doc)
	}
	return allLinks(doc)
}

func (e *extractor) included(href string) bool {
	return e.profile.include == nil || e.profile.include(href)
}

func (e *extractor) excluded(u string) bool {
	u = strings.TrimRight(u, "/")
	for _, path := range e.profile.excludePaths {
		if u == strings.TrimRight(e.profile.abs(path), "/") {
			return true
		}
	}
	return false
}

func allLinks(doc *goquery.Document) []string {
	var hrefs []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				hrefs = append(hrefs, href)
			}
		}
	})
	return hrefs
}

func isHTTP(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
