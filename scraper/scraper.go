// Package scraper owns the browser lifecycle and orchestrates one scrape:
// identity selection, session acquisition, navigation with retries,
// extraction, and diagnostics on terminal failure.
package scraper

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"

	"github.com/mercavia/sheinscrape/config"
	"github.com/mercavia/sheinscrape/diagnostics"
	"github.com/mercavia/sheinscrape/identity"
	"github.com/mercavia/sheinscrape/models"
	"github.com/mercavia/sheinscrape/navigator"
	"github.com/mercavia/sheinscrape/session"
)

// Scraper manages the process-wide browser and the per-request pipeline.
// It is safe for concurrent use: every request gets its own isolated
// browser context, only the browser process is shared.
type Scraper struct {
	browser    *rod.Browser
	sessions   *session.Manager
	identities *identity.Provider
	controller *navigator.Controller
	recorder   *diagnostics.Recorder
	fastPath   *fastPathFetcher
	navCfg     config.NavigationConfig
}

// NewScraper launches the headless browser and wires the pipeline.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	identities, err := identity.NewProvider(cfg.Identity)
	if err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(cfg.Browser.Headless).
		NoSandbox(cfg.Browser.NoSandbox)

	if cfg.Browser.BrowserBin != "" {
		l = l.Bin(cfg.Browser.BrowserBin)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	sessions := session.NewManager(browser, cfg.Navigation, cfg.Browser.MaxSessions)

	var fastPath *fastPathFetcher
	if cfg.FastPath.Enabled {
		fastPath = newFastPathFetcher(cfg.FastPath.Timeout)
	}

	return &Scraper{
		browser:    browser,
		sessions:   sessions,
		identities: identities,
		controller: navigator.NewController(sessionDialer{sessions}, identities, cfg.Navigation),
		recorder:   diagnostics.NewRecorder(cfg.Diagnostics.Dir),
		fastPath:   fastPath,
		navCfg:     cfg.Navigation,
	}, nil
}

// Stats returns live session counts for health reporting.
func (s *Scraper) Stats() models.SessionStats {
	return s.sessions.Stats()
}

// Close kills the browser process. Call on graceful shutdown to prevent
// zombie Chrome processes.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: closing browser")
	s.browser.MustClose()
	slog.Info("scraper shutdown complete")
}

// sessionDialer adapts session.Manager to the navigator.Dialer interface.
type sessionDialer struct {
	m *session.Manager
}

func (d sessionDialer) Acquire(id identity.Identity) (navigator.Page, error) {
	s, err := d.m.Acquire(id)
	if err != nil {
		return nil, err
	}
	return s, nil
}
