package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/IshaanKalra2103/newsscraper/internal/api"
	"github.com/IshaanKalra2103/newsscraper/internal/config"
	"github.com/IshaanKalra2103/newsscraper/internal/ingest"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
	"github.com/IshaanKalra2103/newsscraper/internal/store"
	"github.com/IshaanKalra2103/newsscraper/pkg/classifier"
	"github.com/IshaanKalra2103/newsscraper/pkg/fetch"
	"github.com/IshaanKalra2103/newsscraper/pkg/httpclient"
	"github.com/IshaanKalra2103/newsscraper/pkg/providers"
	"github.com/IshaanKalra2103/newsscraper/pkg/publishers"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

var defaultSources = []string{
	providers.SourceIDNYT,
	providers.SourceIDReuters,
	providers.SourceIDOpenAI,
	providers.SourceIDGoogleResearch,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "newsscraper:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("newsscraper", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML or JSON config file")
	once := flags.Bool("once", false, "run one ingestion batch, print the report and exit")
	sources := flags.StringSlice("sources", nil, "sources for --once (default: all)")
	maxArticles := flags.Int("max-articles", 0, "articles per source for --once (default from config)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, console)")
	flags.String("addr", "", "HTTP listen address")
	flags.String("store-driver", "", "article store driver (bolt, postgres)")
	flags.String("store-path", "", "bolt store file")
	flags.String("store-dsn", "", "postgres connection string")
	flags.String("publishers", "", "publishers file for stored-article events")
	flags.Int("source-concurrency", 0, "sources scraped at once")
	flags.Bool("no-stealth", false, "never fall back to a headless browser")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var browser fetch.Browser
	if cfg.Stealth.Enabled {
		browser = fetch.DetectBrowser(cfg.BrowserOptions())
	}
	log.InfoObj("stealth capability resolved", "stealth_detect", map[string]any{
		"enabled":   cfg.Stealth.Enabled,
		"available": browser != nil,
	})

	registry := providers.DefaultRegistry(providers.Options{
		NewFetcher: func() providers.PageFetcher {
			return fetch.New(httpclient.NewRestyClient(cfg.RequestTimeout()), browser, cfg.Scrape.UserAgent, log)
		},
		ArticleWorkers: cfg.Scrape.ArticleWorkers,
		RequestDelay:   cfg.Scrape.RequestDelay,
		Logger:         log,
	})

	st, err := store.Open(ctx, cfg.StoreConfig(), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.WarnObj("close store failed", "store_close_error", map[string]any{"error": err.Error()})
		}
	}()

	var notifier ingest.Notifier
	if cfg.PublishersFile != "" {
		dispatcher, err := publishers.LoadDispatcher(ctx, cfg.PublishersFile, nil, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := dispatcher.Close(); err != nil {
				log.WarnObj("close publishers failed", "publisher_close_error", map[string]any{"error": err.Error()})
			}
		}()
		log.InfoObj("publishers loaded", "publishers_loaded", map[string]any{
			"path":  cfg.PublishersFile,
			"count": dispatcher.Len(),
		})
		notifier = dispatcher
	}

	ingestor := ingest.New(registry, classifier.New(cfg.Vocabulary()), st, notifier, cfg.IngestConfig(), log)

	if *once {
		req := ingest.Request{Sources: *sources, MaxArticlesPerSource: *maxArticles}
		if len(req.Sources) == 0 {
			req.Sources = defaultSources
		}
		report := ingestor.Ingest(ctx, req)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	return serve(ctx, cfg, ingestor, st, log)
}

func serve(ctx context.Context, cfg *config.Config, ingestor *ingest.Ingestor, st store.Store, log logger.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		Ingester:      ingestor,
		Store:         st,
		ScrapeTimeout: cfg.ScrapeTimeout(),
	}, log)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoObj("server listening", "http_listen", map[string]any{"addr": cfg.HTTP.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.InfoObj("shutting down server", "http_shutdown", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.InfoObj("server exited", "http_stopped", nil)
	return nil
}
