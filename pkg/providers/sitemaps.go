package providers

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/pkg/fetch"
)

// sitemapDoc decodes both <urlset> and <sitemapindex> documents. Only the
// matching slice is populated.
type sitemapDoc struct {
	URLs []struct {
		Loc  string `xml:"loc"`
		News struct {
			Title           string `xml:"title"`
			PublicationDate string `xml:"publication_date"`
			Keywords        string `xml:"keywords"`
		} `xml:"news"`
		Images []struct {
			Loc string `xml:"loc"`
		} `xml:"image"`
	} `xml:"url"`
	Nested []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// sitemapTargets resolves a sitemap into article targets. Index files are
// followed depth first and each URL is fetched at most once. A failing child
// sitemap is skipped; only a failure of url itself is returned.
func (e *extractor) sitemapTargets(ctx context.Context, url string, visited map[string]struct{}) ([]crawler.Target, error) {
	if visited == nil {
		visited = make(map[string]struct{})
	}
	if _, seen := visited[url]; seen {
		return nil, nil
	}
	visited[url] = struct{}{}

	doc, err := e.loadSitemap(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(doc.URLs) > 0 {
		return doc.targets(), nil
	}

	var out []crawler.Target
	for _, child := range doc.Nested {
		loc := strings.TrimSpace(child.Loc)
		if loc == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		found, err := e.sitemapTargets(ctx, loc, visited)
		if err != nil {
			e.log.WarnObj("child sitemap failed", "sitemap_child_error", map[string]any{
				"source": e.profile.id,
				"url":    loc,
				"error":  err.Error(),
			})
			continue
		}
		out = append(out, found...)
	}
	return out, nil
}

func (e *extractor) loadSitemap(ctx context.Context, url string) (sitemapDoc, error) {
	var doc sitemapDoc

	raw, err := e.fetcher.FetchRaw(ctx, url)
	if err != nil {
		return doc, err
	}
	if raw, err = maybeGunzip(raw); err != nil {
		return doc, fmt.Errorf("sitemap %s: gunzip: %w", url, err)
	}
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("sitemap %s: %w", url, err)
	}
	return doc, nil
}

// targets carries the sitemap's title, date, image and keywords as hints so
// the page only has to fill in what is missing.
func (d sitemapDoc) targets() []crawler.Target {
	out := make([]crawler.Target, 0, len(d.URLs))
	for _, u := range d.URLs {
		loc := strings.TrimSpace(u.Loc)
		if !isHTTP(loc) {
			continue
		}

		hint := domain.Article{
			Title: strings.TrimSpace(u.News.Title),
			Tags:  parseKeywords(u.News.Keywords),
		}
		for _, img := range u.Images {
			if hint.ImageURL = strings.TrimSpace(img.Loc); hint.ImageURL != "" {
				break
			}
		}
		if t, ok := fetch.ParseDate(u.News.PublicationDate); ok {
			hint.PublishedAt = t
		}
		out = append(out, crawler.Target{URL: loc, Hint: hint})
	}
	return out
}

// parseKeywords splits a comma separated keyword list, dropping blanks.
func parseKeywords(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// maybeGunzip inflates .xml.gz sitemaps served without a Content-Encoding header.
func maybeGunzip(raw []byte) ([]byte, error) {
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
