package providers

import (
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/pkg/fetch"

	"github.com/PuerkitoBio/goquery"
)

const untitled = "Untitled"

var urlDatePattern = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)

// parseArticle builds a draft from an article page. Listing hints fill the gaps
// the page leaves.
func (e *extractor) parseArticle(doc *goquery.Document, t crawler.Target) domain.Article {
	hint := t.Hint
	art := domain.Article{
		URL:    t.URL,
		Source: e.profile.name,
	}

	art.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		fetch.ExtractText(doc.Find("h1").First()),
		fetch.ExtractText(doc.Find("title").First()),
		hint.Title,
		untitled,
	)
	art.Content = extractContent(doc)
	art.Summary = firstNonEmpty(
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[property="og:description"]`),
		hint.Summary,
	)
	art.Author = firstNonEmpty(
		strings.Join(extractAuthors(doc), ", "),
		hint.Author,
		e.profile.defaultAuthor,
	)
	art.PublishedAt = extractPublished(doc, t.URL, hint.PublishedAt)
	art.ImageURL = resolveURL(firstNonEmpty(
		metaContent(doc, `meta[property="og:image"]`),
		metaContent(doc, `meta[name="twitter:image"]`),
		metaContent(doc, `meta[property="twitter:image"]`),
		hint.ImageURL,
	), t.URL)
	art.Tags = e.extractTags(doc, hint.Tags)

	return art
}

// extractContent joins the paragraphs of the first article, main or body container
// that has any, separated by blank lines.
func extractContent(doc *goquery.Document) string {
	for _, sel := range []string{"article", "main", "body"} {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}

		var paras []string
		container.Find("p").Each(func(_ int, p *goquery.Selection) {
			if text := fetch.ExtractText(p); text != "" {
				paras = append(paras, text)
			}
		})
		if len(paras) > 0 {
			return strings.Join(paras, "\n\n")
		}
	}
	return ""
}

// extractPublished walks the date sources in priority order and falls back to the listing hint.
func extractPublished(doc *goquery.Document, pageURL string, hint time.Time) time.Time {
	candidates := []func() string{
		func() string { return jsonLDValue(doc, "datePublished") },
		func() string { return attrOrText(doc.Find(`[itemprop="datePublished"]`).First(), "content", "datetime") },
		func() string { return dateFromURL(pageURL) },
		func() string { return metaContent(doc, `meta[property="article:published_time"]`) },
		func() string { return metaContent(doc, `meta[name="publish_date"]`) },
		func() string { return attrOrText(doc.Find("time.published").First(), "datetime") },
	}

	for _, candidate := range candidates {
		if t, ok := fetch.ParseDate(candidate()); ok {
			return t
		}
	}
	return hint
}

func dateFromURL(u string) string {
	m := urlDatePattern.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	return m[1] + "-" + m[2] + "-" + m[3]
}

// jsonLDValue returns the first string value stored under key in any JSON-LD block.
func jsonLDValue(doc *goquery.Document, key string) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		found = findJSONString(data, key)
		return found == ""
	})
	return found
}

func findJSONString(node any, key string) string {
	switch v := node.(type) {
	case map[string]any:
		if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := findJSONString(v[k], key); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range v {
			if s := findJSONString(child, key); s != "" {
				return s
			}
		}
	}
	return ""
}

func extractAuthors(doc *goquery.Document) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(raw string) {
		for _, name := range splitAuthors(raw) {
			key := strings.ToLower(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			names = append(names, name)
		}
	}

	doc.Find(`meta[name="author"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	doc.Find(`meta[property="article:author"]`).Each(func(_ int, s *goquery.Selection) {
		if v := s.AttrOr("content", ""); !isHTTP(strings.TrimSpace(v)) {
			add(v)
		}
	})
	doc.Find(`[rel="author"]`).Each(func(_ int, s *goquery.Selection) {
		add(fetch.ExtractText(s))
	})
	if len(names) == 0 {
		add(fetch.ExtractText(doc.Find(`[class*="byline"]`).First()))
	}
	return names
}

func splitAuthors(raw string) []string {
	raw = fetch.CollapseSpace(raw)
	if len(raw) >= 3 && strings.EqualFold(raw[:3], "by ") {
		raw = raw[3:]
	}
	raw = strings.ReplaceAll(raw, " and ", ",")

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func (e *extractor) extractTags(doc *goquery.Document, hint []string) []string {
	if len(e.profile.fixedTags) > 0 {
		return append([]string(nil), e.profile.fixedTags...)
	}

	var tags []string
	seen := make(map[string]struct{})
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		tags = append(tags, tag)
	}

	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		add(s.AttrOr("content", ""))
	})
	for _, sel := range []string{`meta[name="news_keywords"]`, `meta[name="keywords"]`} {
		for _, kw := range parseKeywords(metaContent(doc, sel)) {
			add(kw)
		}
	}
	if len(tags) == 0 {
		for _, kw := range hint {
			add(kw)
		}
	}
	return tags
}

// metaContent returns the trimmed content attribute of the first node matching sel.
func metaContent(doc *goquery.Document, sel string) string {
	if node := doc.Find(sel).First(); node.Length() > 0 {
		if val, ok := node.Attr("content"); ok {
			return strings.TrimSpace(val)
		}
	}
	return ""
}

func attrOrText(s *goquery.Selection, attrs ...string) string {
	if s.Length() == 0 {
		return ""
	}
	for _, a := range attrs {
		if v, ok := s.Attr(a); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return fetch.ExtractText(s)
}

// firstNonEmpty returns the first non-empty string from the given values.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// resolveURL resolves a possibly relative URL against a base URL and drops the fragment.
func resolveURL(raw, base string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.Fragment = ""
	if parsed.IsAbs() {
		return parsed.String()
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return raw
	}

	return baseURL.ResolveReference(parsed).String()
}
