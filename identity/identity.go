// Package identity supplies the network egress identity presented for one
// scrape request: proxy endpoint and credentials, user agent, locale and
// device viewport.
package identity

import (
	"fmt"
	"net/url"

	"github.com/mercavia/sheinscrape/config"
	"github.com/mercavia/sheinscrape/models"
)

// defaultUserAgents is the built-in mobile rotation. The storefront's
// primary traffic class is mobile, so every default identity presents a
// phone fingerprint.
var defaultUserAgents = []string{
	"Mozilla/5.0 (iPhone; CPU iPhone OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile Safari/604.1",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

// Viewport is the emulated device screen.
type Viewport struct {
	Width  int
	Height int
	Scale  float64
	Mobile bool
}

// Identity is one egress configuration: where traffic leaves from and what
// device it pretends to be. Selected once per navigation attempt.
type Identity struct {
	// ProxyServer is "scheme://host:port" with credentials stripped;
	// empty means direct egress. CDP takes credentials separately, via
	// the auth handler.
	ProxyServer   string
	ProxyUsername string
	ProxyPassword string

	UserAgent string
	Locale    string
	Viewport  Viewport
}

// Proxied reports whether this identity routes through a proxy.
func (id Identity) Proxied() bool { return id.ProxyServer != "" }

// Provider hands out identities from a fixed, ordered pool.
type Provider struct {
	pool []Identity
}

// NewProvider builds the identity pool from config.
//
// Each configured proxy becomes one identity, paired round-robin with a
// user agent. With no proxies and AllowDirect set, a single direct identity
// is used; otherwise the provider cannot be built (CONFIG_ERROR, fatal).
func NewProvider(cfg config.IdentityConfig) (*Provider, error) {
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	viewport := Viewport{Width: 390, Height: 844, Scale: 3, Mobile: true}

	if len(cfg.Proxies) == 0 {
		if !cfg.AllowDirect {
			return nil, models.NewScrapeError(models.ErrCodeConfig,
				"no proxies configured and direct egress is disabled", nil)
		}
		return &Provider{pool: []Identity{{
			UserAgent: agents[0],
			Locale:    cfg.Locale,
			Viewport:  viewport,
		}}}, nil
	}

	pool := make([]Identity, 0, len(cfg.Proxies))
	for i, raw := range cfg.Proxies {
		server, user, pass, err := splitProxyURL(raw)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeConfig,
				fmt.Sprintf("invalid proxy entry %q", raw), err)
		}
		pool = append(pool, Identity{
			ProxyServer:   server,
			ProxyUsername: user,
			ProxyPassword: pass,
			UserAgent:     agents[i%len(agents)],
			Locale:        cfg.Locale,
			Viewport:      viewport,
		})
	}
	return &Provider{pool: pool}, nil
}

// Select returns the identity for the given attempt. Attempt 0 is
// deterministic; later attempts walk the pool so a blocked egress is not
// reused for the retry.
func (p *Provider) Select(attempt int) Identity {
	if attempt < 0 {
		attempt = 0
	}
	return p.pool[attempt%len(p.pool)]
}

// CanRotate reports whether a retry can present a different identity.
// Blocked outcomes are retried only when this is true.
func (p *Provider) CanRotate() bool { return len(p.pool) > 1 }

// Size returns the pool size.
func (p *Provider) Size() int { return len(p.pool) }

// splitProxyURL separates credentials from a proxy URL, returning the bare
// server URL and the username/password.
func splitProxyURL(raw string) (server, user, pass string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", "", fmt.Errorf("proxy URL must be scheme://host:port")
	}
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
		u.User = nil
	}
	return u.String(), user, pass, nil
}
