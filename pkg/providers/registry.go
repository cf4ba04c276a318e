package providers

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/crawler"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
	"github.com/IshaanKalra2103/newsscraper/pkg/fetch"
)

// Factory builds a fresh extractor. Extractors are never shared between runs.
type Factory func() Source

// Registration binds one or more identifiers to a factory.
type Registration struct {
	Aliases []string
	Factory Factory
}

// UnknownSourceError is returned by Resolve for identifiers with no registration.
type UnknownSourceError struct {
	Source    string
	Available []string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("Unsupported source: %s. Available sources: %s", e.Source, strings.Join(e.Available, ", "))
}

// Registry maps normalized identifiers to extractor factories. It is built once
// and never mutated, so it needs no locking.
type Registry struct {
	factories map[string]Factory
	names     []string
}

// NewRegistry builds a registry. Later registrations win on alias collisions.
func NewRegistry(regs ...Registration) *Registry {
	reg := &Registry{factories: make(map[string]Factory)}

	for _, r := range regs {
		if r.Factory == nil {
			continue
		}
		for _, alias := range r.Aliases {
			key := normalizeID(alias)
			if key == "" {
				continue
			}
			reg.factories[key] = r.Factory
		}
	}

	reg.names = make([]string, 0, len(reg.factories))
	for name := range reg.factories {
		reg.names = append(reg.names, name)
	}
	sort.Strings(reg.names)

	return reg
}

// Resolve returns a new extractor for the identifier. Matching ignores case and
// treats spaces as underscores.
func (r *Registry) Resolve(identifier string) (Source, error) {
	if f, ok := r.factories[normalizeID(identifier)]; ok {
		return f(), nil
	}
	return nil, &UnknownSourceError{Source: identifier, Available: r.Sources()}
}

// Sources lists every registered identifier, aliases included, sorted.
func (r *Registry) Sources() []string {
	return append([]string(nil), r.names...)
}

func normalizeID(id string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(id)), " ", "_")
}

// Options configures the extractors built by DefaultRegistry.
type Options struct {
	// NewFetcher returns a fetcher owned by one extractor run. nil uses a plain fetcher.
	NewFetcher     func() PageFetcher
	ArticleWorkers int
	RequestDelay   time.Duration
	Logger         logger.Logger
}

func (o Options) fetcher(log logger.Logger) PageFetcher {
	if o.NewFetcher != nil {
		if f := o.NewFetcher(); f != nil {
			return f
		}
	}
	return fetch.New(nil, nil, "", log)
}

// DefaultRegistry wires up the supported publishers.
func DefaultRegistry(opts Options) *Registry {
	log := logger.Ensure(opts.Logger)

	build := func(ctor func(PageFetcher, *crawler.Harvester, logger.Logger) Source) Factory {
		return func() Source {
			harvester := crawler.NewHarvester(opts.ArticleWorkers, opts.RequestDelay, log)
			return ctor(opts.fetcher(log), harvester, log)
		}
	}

	return NewRegistry(
		Registration{Aliases: []string{"nyt", "new_york_times"}, Factory: build(NewNYTSource)},
		Registration{Aliases: []string{"reuters"}, Factory: build(NewReutersSource)},
		Registration{Aliases: []string{"openai", "openai_blog"}, Factory: build(NewOpenAISource)},
		Registration{Aliases: []string{"google", "google_research"}, Factory: build(NewGoogleResearchSource)},
	)
}
