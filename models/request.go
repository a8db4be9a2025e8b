package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the product page to scrape. Required. Must reference the
	// storefront domain; the handler validates the host against the
	// configured allowlist before the request reaches the scraper.
	URL string `json:"url" binding:"required,url"`

	// Region is an optional storefront region hint ("cl", "mx", ...).
	// When empty, the region is inferred from the URL path.
	Region string `json:"region,omitempty"`

	// Timeout is the maximum duration in seconds for the entire
	// scrape operation (all navigation attempts + extraction).
	// Default: 100. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Fresh bypasses the response cache for this request.
	Fresh bool `json:"fresh,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 100
	}
}
