package publishers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Builder turns one sink config into a live Publisher.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry resolves sink types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	Build(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)
}

type builderSet struct {
	mu sync.RWMutex
	by map[string]Builder
}

func NewRegistry(builders map[string]Builder) Registry {
	set := &builderSet{by: make(map[string]Builder, len(builders))}
	for typ, b := range builders {
		set.Register(typ, b)
	}
	return set
}

// DefaultRegistry knows the webhook and cloud queue sinks.
func DefaultRegistry() Registry {
	return NewRegistry(map[string]Builder{
		TypeHTTP:  newHTTPPublisher,
		TypeQueue: newQueuePublisher,
	})
}

func normalizeType(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}

// Register ignores blank types and nil builders.
func (s *builderSet) Register(typ string, builder Builder) {
	key := normalizeType(typ)
	if key == "" || builder == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.by[key] = builder
}

func (s *builderSet) Build(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	key := normalizeType(cfg.Type)
	if key == "" {
		return nil, fmt.Errorf("publisher %q has no type", cfg.ID)
	}

	s.mu.RLock()
	build, ok := s.by[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("publisher %q: no builder for type %q", cfg.ID, cfg.Type)
	}
	return build(ctx, cfg, log)
}

// BuildRoutes builds a route per config in order. When one build fails the
// publishers already built are closed before the error is returned.
func BuildRoutes(ctx context.Context, reg Registry, cfgs []PublisherConfig, log Logger) ([]Route, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log = ensureLogger(log)

	routes := make([]Route, 0, len(cfgs))
	for _, cfg := range cfgs {
		pub, err := reg.Build(ctx, cfg, log)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("build publisher %q: %w", cfg.ID, err), closeRoutes(routes))
		}
		log.InfoObj("publisher ready", "publisher_built", map[string]any{
			"publisher_id": pub.ID(),
			"type":         pub.Type(),
			"categories":   cfg.Categories,
		})
		routes = append(routes, Route{Config: cfg, Publisher: pub})
	}
	return routes, nil
}

func closeRoutes(routes []Route) error {
	var errs []error
	for _, r := range routes {
		c, ok := r.Publisher.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher %s: %w", r.Publisher.ID(), err))
		}
	}
	return errors.Join(errs...)
}
