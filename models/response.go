package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the scrape completed without errors.
	Success bool `json:"success"`

	// Product is the extracted product record. Nil when Success is false.
	Product *Product `json:"product,omitempty"`

	// FetchMethod records how the page was fetched: "http" (TLS
	// fingerprint fast path) or "browser".
	FetchMethod string `json:"fetch_method,omitempty"`

	// Attempts is the number of navigation attempts consumed.
	Attempts int `json:"attempts,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching disabled).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent acquiring sessions, navigating and
	// waiting for the page to settle, across all attempts.
	NavigationMs int64 `json:"navigation_ms"`

	// ExtractionMs is the time spent in the extraction engine.
	ExtractionMs int64 `json:"extraction_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string       `json:"status"` // "healthy" or "degraded"
	Uptime   string       `json:"uptime"`
	Sessions SessionStats `json:"sessions"`
	Version  string       `json:"version"`
}

// SessionStats reports how many browser sessions are live.
type SessionStats struct {
	MaxSessions    int `json:"max_sessions"`
	ActiveSessions int `json:"active_sessions"`
}
