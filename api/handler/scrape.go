package handler

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mercavia/sheinscrape/cache"
	"github.com/mercavia/sheinscrape/models"
	"github.com/mercavia/sheinscrape/scraper"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Validate the target host against the storefront allowlist.
//  3. Cache lookup (skipped when Fresh is set).
//  4. Scraper.DoScrape → product + timing.
//  5. Cache store, respond 200.
func Scrape(sc *scraper.Scraper, cc *cache.Cache, allowedDomains []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Storefront allowlist ────────────────────────────────
		if err := validateTarget(req.URL, allowedDomains); err != nil {
			c.JSON(http.StatusBadRequest, models.ScrapeResponse{
				Success: false,
				Error:   models.AsScrapeError(err).ToDetail(),
			})
			return
		}

		// ── 3. Cache lookup ────────────────────────────────────────
		cacheKey := cache.Key(req.URL, req.Region)
		if cc != nil && !req.Fresh {
			if cached, hit := cc.Get(cacheKey); hit {
				out := *cached
				out.CacheStatus = "hit"
				out.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, &out)
				return
			}
		}

		// ── 4. Scrape ───────────────────────────────────────────────
		resp, err := sc.DoScrape(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}
		resp.Timing.TotalMs = time.Since(totalStart).Milliseconds()

		// ── 5. Cache store ──────────────────────────────────────────
		// Status is set before Set: once the pointer is published,
		// concurrent hits read it and the response must not change.
		if cc != nil {
			resp.CacheStatus = "miss"
			cc.Set(cacheKey, resp)
		}

		c.JSON(http.StatusOK, resp)
	}
}

// validateTarget checks the URL's host against the allowlist. A host matches
// when it equals an allowed domain or is a subdomain of one.
func validateTarget(rawURL string, allowedDomains []string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "unparseable URL", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput, "URL has no host", nil)
	}

	for _, domain := range allowedDomains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return models.NewScrapeError(models.ErrCodeInvalidInput,
		"URL host is not an allowed storefront domain: "+host, nil)
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	scrapeErr := models.AsScrapeError(err)

	c.JSON(mapErrorToStatus(scrapeErr), models.ScrapeResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeBlocked, models.ErrCodeTransport:
		return http.StatusBadGateway // 502
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
