package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/mercavia/sheinscrape/extract"
	"github.com/mercavia/sheinscrape/models"
	"github.com/mercavia/sheinscrape/navigator"
)

// DoScrape runs the full pipeline for one pre-validated request.
//
// Lifecycle:
//
//  1. Deadline guard      – hard bound on the entire operation
//  2. Fast path           – utls HTTP fetch; skip the browser when the
//     server-rendered markup already carries the product state
//  3. Navigate            – retry state machine (sessions, backoff, rotation)
//  4a. Success            – extract from the captured markup
//  4b. Terminal failure   – diagnostics capture, then the typed error
//  5. Release             – exactly one release per acquired session,
//     on every path, deferred before anything can return
func (s *Scraper) DoScrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResponse, error) {
	// ── 1. Deadline guard ─────────────────────────────────────────────
	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 || timeout > s.navCfg.MaxDeadline {
		timeout = s.navCfg.MaxDeadline
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	totalStart := time.Now()

	// ── 2. Fast path ──────────────────────────────────────────────────
	if s.fastPath != nil {
		id := s.identities.Select(0)
		markup, finalURL, err := s.fastPath.fetch(ctx, req.URL, id)
		if err == nil && fastPathUsable(markup, finalURL) {
			extractStart := time.Now()
			product := extract.ExtractWithRegion(markup, finalURL, req.Region)
			slog.Info("fast path served the request", "url", req.URL)
			return &models.ScrapeResponse{
				Success:     true,
				Product:     &product,
				FetchMethod: "http",
				Timing: models.TimingInfo{
					TotalMs:      time.Since(totalStart).Milliseconds(),
					ExtractionMs: time.Since(extractStart).Milliseconds(),
				},
			}, nil
		}
		if err != nil {
			slog.Debug("fast path failed, falling back to browser", "url", req.URL, "error", err)
		} else {
			slog.Debug("fast path markup not usable, falling back to browser", "url", req.URL)
		}
	}

	// ── 3. Navigate ───────────────────────────────────────────────────
	navStart := time.Now()
	page, outcome, attempts, err := s.controller.Navigate(ctx, req.URL)
	navigationMs := time.Since(navStart).Milliseconds()

	if page != nil {
		defer page.Release()
	}
	if err != nil {
		return nil, err
	}

	// ── 4b. Terminal failure: diagnostics, then the typed error ───────
	if outcome.Kind != navigator.KindSuccess {
		s.recorder.Capture(page, time.Now())
		return nil, outcome.Err()
	}

	// Post-Success the page must be readable; an empty capture means the
	// session died between navigation and extraction. Internal defect.
	if outcome.Markup == "" {
		slog.Error("extraction invoked on a non-navigable page",
			"url", req.URL, "finalURL", outcome.FinalURL)
		return nil, models.NewScrapeError(models.ErrCodeExtraction,
			"page was not readable after successful navigation", nil)
	}

	// ── 4a. Extract ───────────────────────────────────────────────────
	extractStart := time.Now()
	product := extract.ExtractWithRegion(outcome.Markup, outcome.FinalURL, req.Region)
	extractionMs := time.Since(extractStart).Milliseconds()

	return &models.ScrapeResponse{
		Success:     true,
		Product:     &product,
		FetchMethod: "browser",
		Attempts:    attempts,
		Timing: models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			NavigationMs: navigationMs,
			ExtractionMs: extractionMs,
		},
	}, nil
}
