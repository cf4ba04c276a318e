package providers

import (
	"strings"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
)

const openAIBaseURL = "https://openai.com"

// NewOpenAISource builds the OpenAI blog extractor.
func NewOpenAISource(fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) Source {
	return newOpenAISource(openAIBaseURL, fetcher, harvester, log)
}

func newOpenAISource(baseURL string, fetcher PageFetcher, harvester *crawler.Harvester, log logger.Logger) *extractor {
	return newExtractor(profile{
		id:            SourceIDOpenAI,
		name:          "OpenAI Blog",
		baseURL:       baseURL,
		listingPaths:  []string{"/blog"},
		include:       isOpenAIPost,
		excludePaths:  []string{"/blog"},
		feedPaths:     []string{"/news/rss.xml"},
		defaultAuthor: "OpenAI",
		fixedTags:     []string{"ai", "openai"},
	}, fetcher, harvester, log)
}

func isOpenAIPost(href string) bool {
	return strings.Contains(href, "/blog/") || strings.Contains(href, "/research/")
}
