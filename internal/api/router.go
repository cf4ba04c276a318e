// Package api exposes scraping and stored-article queries over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/IshaanKalra2103/newsscraper/internal/ingest"
	"github.com/IshaanKalra2103/newsscraper/internal/logger"
	"github.com/IshaanKalra2103/newsscraper/internal/store"

	"github.com/gin-gonic/gin"
)

const (
	serviceName = "newsscraper"
	apiVersion  = "0.1.0"
)

// Ingester runs scrape batches. *ingest.Ingestor satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) ingest.Report
	Sources() []string
}

// Deps are the collaborators the handlers need.
type Deps struct {
	Ingester Ingester
	Store    store.Store
	// ScrapeTimeout bounds one POST /scrape batch. Zero leaves it to the client.
	ScrapeTimeout time.Duration
}

// NewRouter builds the gin engine with every route and middleware installed.
func NewRouter(deps Deps, log logger.Logger) *gin.Engine {
	log = logger.Ensure(log)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	h := &handler{deps: deps, log: log}

	router.GET("/", h.root)
	router.GET("/health", h.health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/sources", h.sources)
		v1.POST("/scrape", h.scrape)
		v1.GET("/stats", h.stats)

		articles := v1.Group("/articles")
		{
			articles.GET("", h.listArticles)
			articles.GET("/:id", h.getArticle)
			articles.DELETE("/:id", h.deleteArticle)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, "Not Found")
	})

	return router
}

// abortWithError writes the uniform error body.
func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":       true,
		"status_code": status,
		"message":     message,
		"path":        c.Request.URL.Path,
	})
}
