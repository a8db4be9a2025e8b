// Package session manages per-request browser sessions. Each session is an
// isolated incognito browser context bound to exactly one network identity:
// own cookie jar, own proxy egress, own device fingerprint. Sessions are
// never shared across requests.
package session

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/mercavia/sheinscrape/config"
	"github.com/mercavia/sheinscrape/identity"
	"github.com/mercavia/sheinscrape/models"
)

// webdriverPatch reports "not automated" to page scripts. stealth.JS covers
// far more surface, but this override is the one evasion the pipeline
// depends on, so it is applied explicitly as well.
const webdriverPatch = `() => {
	Object.defineProperty(navigator, "webdriver", { get: () => false });
}`

// Manager acquires and releases browser sessions on a shared browser
// process. Safe for concurrent use; each Acquire yields an independent
// browser context.
type Manager struct {
	browser *rod.Browser
	nav     config.NavigationConfig
	max     int
	active  atomic.Int32
}

// NewManager wraps an already-connected browser.
func NewManager(browser *rod.Browser, nav config.NavigationConfig, maxSessions int) *Manager {
	return &Manager{browser: browser, nav: nav, max: maxSessions}
}

// Stats reports live session counts for health reporting.
func (m *Manager) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    m.max,
		ActiveSessions: int(m.active.Load()),
	}
}

// Session is one live browser context bound to a network identity.
type Session struct {
	manager  *Manager
	page     *rod.Page
	ctxID    proto.BrowserBrowserContextID
	stopNet  context.CancelFunc
	identity identity.Identity
	settle   time.Duration

	releaseOnce sync.Once
}

// Identity returns the network identity this session presents.
func (s *Session) Identity() identity.Identity { return s.identity }

// Acquire creates a session configured with the given identity.
//
// Order matters: the stealth patch and the network control (blocklist +
// proxy auth responder) must be installed before the first navigation, or
// they do not apply to it.
func (m *Manager) Acquire(id identity.Identity) (*Session, error) {
	if n := m.active.Add(1); int(n) > m.max {
		m.active.Add(-1)
		return nil, models.NewScrapeError(models.ErrCodeRateLimited,
			"session budget exhausted, try again later", nil)
	}

	ctxRes, err := proto.TargetCreateBrowserContext{
		DisposeOnDetach: true,
		ProxyServer:     id.ProxyServer,
	}.Call(m.browser)
	if err != nil {
		m.active.Add(-1)
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash,
			"failed to create browser context", err)
	}

	page, err := m.browser.Page(proto.TargetCreateTarget{
		URL:              "about:blank",
		BrowserContextID: ctxRes.BrowserContextID,
	})
	if err != nil {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: ctxRes.BrowserContextID}.Call(m.browser)
		m.active.Add(-1)
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash,
			"failed to create page", err)
	}

	// Anti-detection patches, before any navigation.
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}
	if _, err := page.EvalOnNewDocument(webdriverPatch); err != nil {
		slog.Warn("webdriver patch failed", "error", err)
	}

	// Device fingerprint: mobile UA, locale, viewport, touch.
	if err := (proto.NetworkSetUserAgentOverride{
		UserAgent:      id.UserAgent,
		AcceptLanguage: id.Locale,
	}).Call(page); err != nil {
		slog.Warn("user agent override failed", "error", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             id.Viewport.Width,
		Height:            id.Viewport.Height,
		DeviceScaleFactor: id.Viewport.Scale,
		Mobile:            id.Viewport.Mobile,
	}).Call(page); err != nil {
		slog.Warn("viewport override failed", "error", err)
	}
	if id.Viewport.Mobile {
		touchPoints := 5
		_ = proto.EmulationSetTouchEmulationEnabled{
			Enabled:        true,
			MaxTouchPoints: &touchPoints,
		}.Call(page)
	}

	// Subrequest blocklist + proxy auth, scoped to this page. Filtering is
	// best-effort: a scrape without it still works, it just pays for the
	// ad traffic.
	stopNet := mountNetworkControl(page, id)

	return &Session{
		manager:  m,
		page:     page,
		ctxID:    ctxRes.BrowserContextID,
		stopNet:  stopNet,
		identity: id,
		settle:   m.nav.SettleDelay,
	}, nil
}

// Navigate drives the session to the target URL, waits for the document to
// parse and client-side rendering to settle, and returns the resolved URL
// plus the rendered markup. The wait condition is DOM stability, not
// network idle: the storefront keeps background polling alive indefinitely.
func (s *Session) Navigate(ctx context.Context, target string) (finalURL, markup string, err error) {
	p := s.page.Context(ctx)

	// Referer as if arriving from a search; set per navigation so retries
	// on the same session keep it.
	if u, parseErr := url.Parse(target); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(p)
	}

	if err := p.Navigate(target); err != nil {
		return "", "", err
	}

	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr)
	}

	// Settle delay: the product state is hydrated asynchronously after the
	// document parses.
	select {
	case <-ctx.Done():
		return "", "", ctx.Err()
	case <-time.After(s.settle):
	}

	markup, err = p.HTML()
	if err != nil {
		return "", "", err
	}

	finalURL = evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = target
	}
	return finalURL, markup, nil
}

// HTML returns the current rendered markup, for diagnostics capture.
func (s *Session) HTML() (string, error) {
	return s.page.HTML()
}

// Screenshot captures the current viewport as PNG, for diagnostics capture.
func (s *Session) Screenshot() ([]byte, error) {
	return s.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Release tears the session down: stops the network control loop, closes
// the page and disposes the browser context. Idempotent; every control-flow
// exit calls it and double calls are harmless.
func (s *Session) Release() {
	s.releaseOnce.Do(func() {
		if s.stopNet != nil {
			s.stopNet()
		}
		if err := s.page.Close(); err != nil {
			slog.Debug("page close failed", "error", err)
		}
		if err := (proto.TargetDisposeBrowserContext{
			BrowserContextID: s.ctxID,
		}).Call(s.manager.browser); err != nil {
			slog.Debug("browser context dispose failed", "error", err)
		}
		s.manager.active.Add(-1)
	})
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
