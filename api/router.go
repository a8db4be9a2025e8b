package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mercavia/sheinscrape/api/handler"
	"github.com/mercavia/sheinscrape/api/middleware"
	"github.com/mercavia/sheinscrape/cache"
	"github.com/mercavia/sheinscrape/config"
	"github.com/mercavia/sheinscrape/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(sc *scraper.Scraper, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(sc, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Scrape
	protected.POST("/scrape", handler.Scrape(sc, cc, cfg.Server.AllowedDomains))

	return r
}
