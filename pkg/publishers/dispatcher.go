package publishers

import (
	"context"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/domain"
)

// Route pairs a publisher with the config that decides which articles it receives.
type Route struct {
	Config    PublisherConfig
	Publisher Publisher
}

// Dispatcher fans stored articles out to every matching publisher.
// Delivery failures are logged and never returned to the caller.
type Dispatcher struct {
	routes []Route
	log    Logger
	now    func() time.Time
}

// NewDispatcher builds a dispatcher over pre-built routes.
func NewDispatcher(log Logger, routes ...Route) *Dispatcher {
	kept := make([]Route, 0, len(routes))
	for _, r := range routes {
		if r.Publisher != nil {
			kept = append(kept, r)
		}
	}
	return &Dispatcher{routes: kept, log: ensureLogger(log), now: time.Now}
}

// LoadDispatcher reads the publishers file and builds every enabled publisher.
func LoadDispatcher(ctx context.Context, path string, reg Registry, log Logger) (*Dispatcher, error) {
	cfgReg, err := LoadRegistry(path)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		reg = DefaultRegistry()
	}

	routes, err := BuildRoutes(ctx, reg, cfgReg.Enabled(), log)
	if err != nil {
		return nil, err
	}
	return NewDispatcher(log, routes...), nil
}

// Len returns the number of active publishers.
func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.routes)
}

// Notify sends one article.stored event per article to each matching publisher.
func (d *Dispatcher) Notify(ctx context.Context, articles []domain.StoredArticle) {
	if d == nil || len(d.routes) == 0 {
		return
	}

	for _, art := range articles {
		if ctx.Err() != nil {
			return
		}
		evt := NewEvent(art, d.now())

		for _, r := range d.routes {
			if !r.Config.Matches(art) {
				continue
			}
			if err := r.Publisher.Publish(ctx, evt); err != nil {
				d.log.WarnObj("publish failed", "publish_error", map[string]any{
					"publisher_id": r.Publisher.ID(),
					"article_id":   art.ID,
					"url":          art.URL,
					"error":        err.Error(),
				})
				continue
			}
			d.log.DebugObj("article event published", "publish_ok", map[string]any{
				"publisher_id": r.Publisher.ID(),
				"article_id":   art.ID,
				"event_id":     evt.ID,
			})
		}
	}
}

// Close releases publishers that hold client resources.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	return closeRoutes(d.routes)
}
