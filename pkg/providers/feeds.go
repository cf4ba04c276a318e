package providers

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/domain"

	"github.com/mmcdole/gofeed"
)

// feedTargets reads an RSS or Atom feed and returns one target per item link.
func (e *extractor) feedTargets(ctx context.Context, url string) ([]crawler.Target, error) {
	raw, err := e.fetcher.FetchRaw(ctx, url)
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, err)
	}

	targets := make([]crawler.Target, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		link = resolveURL(link, url)
		if !isHTTP(link) {
			continue
		}

		targets = append(targets, crawler.Target{URL: link, Hint: feedHint(item)})
	}
	return targets, nil
}

func feedHint(item *gofeed.Item) domain.Article {
	hint := domain.Article{
		Title:   strings.TrimSpace(item.Title),
		Summary: strings.TrimSpace(item.Description),
		Tags:    item.Categories,
	}

	switch {
	case item.PublishedParsed != nil:
		hint.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		hint.PublishedAt = item.UpdatedParsed.UTC()
	}

	if item.Image != nil {
		hint.ImageURL = strings.TrimSpace(item.Image.URL)
	}

	var authors []string
	for _, p := range item.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			authors = append(authors, strings.TrimSpace(p.Name))
		}
	}
	hint.Author = strings.Join(authors, ", ")

	return hint
}
