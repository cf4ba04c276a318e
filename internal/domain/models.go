package domain

import "time"

// Article is a news item as produced by a source extractor, before persistence.
// A zero PublishedAt means the publication date is unknown.
type Article struct {
	Title       string
	URL         string
	Source      string
	Content     string
	Summary     string
	Author      string
	PublishedAt time.Time
	ImageURL    string
	Tags        []string

	// Set by the classifier.
	Keywords       []string
	Categories     []string
	RelevanceScore int
}

// HasDate reports whether the publication date is known.
func (a Article) HasDate() bool {
	return !a.PublishedAt.IsZero()
}

// StoredArticle is an Article after it has been persisted.
type StoredArticle struct {
	ID int64
	Article
	ScrapedAt  time.Time
	TimePeriod string
}

// TimePeriod buckets a publication date into the coarse analysis periods.
// Years 2019-2022 are labelled "2018-2022"; the label is kept for compatibility
// with existing stored rows.
func TimePeriod(published time.Time) string {
	if published.IsZero() {
		return ""
	}
	switch y := published.Year(); {
	case y >= 2002 && y <= 2018:
		return "2002-2018"
	case y >= 2019 && y <= 2022:
		return "2018-2022"
	case y >= 2023 && y <= 2024:
		return "2023-2024"
	default:
		return ""
	}
}
