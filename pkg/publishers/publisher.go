package publishers

import (
	"context"
	"strings"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"

	"github.com/google/uuid"
)

// EventTypeArticleStored is emitted once per newly stored article.
const EventTypeArticleStored = "article.stored"

// Logger is the logging contract publishers write to.
type Logger = logger.Logger

func ensureLogger(log Logger) Logger {
	return logger.Ensure(log)
}

// Publisher delivers events to one sink.
type Publisher interface {
	ID() string
	Type() string
	Publish(ctx context.Context, evt Event) error
}

// Event is the payload sent to every sink.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Article    ArticlePayload `json:"article"`
}

// ArticlePayload mirrors a stored article.
type ArticlePayload struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Source         string     `json:"source"`
	Content        string     `json:"content,omitempty"`
	Summary        string     `json:"summary,omitempty"`
	Author         string     `json:"author,omitempty"`
	PublishedDate  *time.Time `json:"published_date,omitempty"`
	ImageURL       string     `json:"image_url,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Keywords       []string   `json:"keywords"`
	Categories     []string   `json:"categories"`
	RelevanceScore int        `json:"relevance_score"`
	TimePeriod     string     `json:"time_period,omitempty"`
	ScrapedAt      time.Time  `json:"scraped_at"`
}

// NewEvent wraps a stored article in an article.stored event.
func NewEvent(a domain.StoredArticle, now time.Time) Event {
	payload := ArticlePayload{
		ID:             a.ID,
		Title:          a.Title,
		URL:            a.URL,
		Source:         a.Source,
		Content:        a.Content,
		Summary:        a.Summary,
		Author:         a.Author,
		ImageURL:       a.ImageURL,
		Tags:           a.Tags,
		Keywords:       nonNil(a.Keywords),
		Categories:     nonNil(a.Categories),
		RelevanceScore: a.RelevanceScore,
		TimePeriod:     a.TimePeriod,
		ScrapedAt:      a.ScrapedAt.UTC(),
	}
	if a.HasDate() {
		published := a.PublishedAt.UTC()
		payload.PublishedDate = &published
	}

	return Event{
		ID:         uuid.NewString(),
		Type:       EventTypeArticleStored,
		OccurredAt: now.UTC(),
		Article:    payload,
	}
}

// Attributes are the routing attributes attached to queue messages.
// Empty values are omitted.
func (e Event) Attributes() map[string]string {
	attrs := map[string]string{
		"event_type": e.Type,
		"source":     e.Article.Source,
		"categories": strings.Join(e.Article.Categories, ","),
	}
	for k, v := range attrs {
		if v == "" {
			delete(attrs, k)
		}
	}
	return attrs
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
