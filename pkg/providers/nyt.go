package providers

import (
	"regexp"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
)

const nytBaseURL = "https://www.nytimes.com"

// NYT article paths carry the publication date, e.g. /2024/05/17/business/...
var nytArticlePath = regexp.MustCompile(`/\d{4}/\d{2}/\d{2}/`)

// NewNYTSource builds the New York Times extractor.
func NewNYTSource(fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) Source {
	return newNYTSource(nytBaseURL, fetcher, harvester, log)
}

func newNYTSource(baseURL string, fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) *extractor {
	return newExtractor(profile{
		id:      SourceIDNYT,
		name:    "New York Times",
		baseURL: baseURL,
		listingPaths: []string{
			"/section/business",
			"/section/technology",
			"/section/climate",
			"/section/science",
		},
		include:      nytArticlePath.MatchString,
		sitemapPaths: []string{"/sitemaps/new/news.xml.gz"},
	}, fetcher, harvester, log)
}
