package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mercavia/sheinscrape/models"
	"github.com/mercavia/sheinscrape/scraper"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports session utilisation and degrades status when > 80% of the session
// budget is in use.
func Health(sc *scraper.Scraper, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if stats.MaxSessions > 0 && stats.ActiveSessions > int(float64(stats.MaxSessions)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   status,
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Sessions: stats,
			Version:  "0.1.0",
		})
	}
}
