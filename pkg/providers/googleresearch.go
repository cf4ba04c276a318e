package providers

import (
	"strings"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

const googleResearchBaseURL = "https://blog.research.google"

// NewGoogleResearchSource builds the Google Research blog extractor.
func NewGoogleResearchSource(fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) Source {
	return newGoogleResearchSource(googleResearchBaseURL, fetcher, harvester, log)
}

func newGoogleResearchSource(baseURL string, fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) *extractor {
	return newExtractor(profile{
		id:            SourceIDGoogleResearch,
		name:          "Google Research Blog",
		baseURL:       baseURL,
		listingPaths:  []string{"/"},
		links:         firstLinkPerArticle,
		feedPaths:     []string{"/feeds/posts/default"},
		defaultAuthor: "Google Research",
		fixedTags:     []string{"ai", "research", "google"},
	}, fetcher, harvester, log)
}

// firstLinkPerArticle takes the first link inside each <article> element.
func firstLinkPerArticle(doc *goquery.Document) []string {
	var hrefs []string
	doc.Find("article").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Find("a[href]").First().Attr("href"); ok {
			if href = strings.TrimSpace(href); href != "" {
				hrefs = append(hrefs, href)
			}
		}
	})
	return hrefs
}
