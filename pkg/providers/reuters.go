package providers

import (
	"strings"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
)

const reutersBaseURL = "https://www.reuters.com"

// NewReutersSource builds the Reuters extractor. Reuters blocks plain clients,
// so every page is requested through the browser when one is available and
// the plain-only sitemap listing is not used.
func NewReutersSource(fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) Source {
	return newReutersSource(reutersBaseURL, fetcher, harvester, log)
}

func newReutersSource(baseURL string, fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) *extractor {
	return newExtractor(profile{
		id:      SourceIDReuters,
		name:    "Reuters",
		baseURL: baseURL,
		listingPaths: []string{
			"/technology/",
			"/business/",
			"/business/energy/",
			"/sustainability/",
		},
		stealth: true,
		include: isReutersArticle,
	}, fetcher, harvester, log)
}

func isReutersArticle(href string) bool {
	return strings.Contains(href, "/article/") ||
		strings.Contains(href, "/world/") ||
		strings.Contains(href, "/technology/")
}
