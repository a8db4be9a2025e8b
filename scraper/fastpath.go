package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls2 "github.com/refraction-networking/utls"

	"github.com/mercavia/sheinscrape/extract"
	"github.com/mercavia/sheinscrape/identity"
	"github.com/mercavia/sheinscrape/navigator"
)

// fastPathFetcher retrieves the page over plain HTTP with a Chrome TLS
// fingerprint. The storefront server-renders the embedded product state for
// first paint, so when the fetched markup already carries it, the whole
// browser pipeline can be skipped.
type fastPathFetcher struct {
	timeout time.Duration
}

func newFastPathFetcher(timeout time.Duration) *fastPathFetcher {
	return &fastPathFetcher{timeout: timeout}
}

// fetch retrieves the URL through the identity's proxy and returns the body
// plus the post-redirect URL.
func (f *fastPathFetcher) fetch(ctx context.Context, targetURL string, id identity.Identity) (markup, finalURL string, err error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr)
		},
	}
	if id.Proxied() {
		proxyURL, perr := url.Parse(id.ProxyServer)
		if perr != nil {
			return "", "", fmt.Errorf("fastpath: proxy URL: %w", perr)
		}
		if id.ProxyUsername != "" {
			proxyURL.User = url.UserPassword(id.ProxyUsername, id.ProxyPassword)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("fastpath: build request: %w", err)
	}
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", id.Locale)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fastpath: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("fastpath: HTTP %d for %s", resp.StatusCode, targetURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024)) // 10 MB cap
	if err != nil {
		return "", "", fmt.Errorf("fastpath: read body: %w", err)
	}

	finalURL = targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return string(body), finalURL, nil
}

// usable decides whether the fetched markup can serve the request without a
// browser: the embedded state must be present and nothing may look like a
// challenge page.
func fastPathUsable(markup, finalURL string) bool {
	if !strings.Contains(markup, extract.StateMarker) {
		return false
	}
	return !navigator.IsBlockPage(finalURL, markup)
}

// dialTLSChrome establishes a TLS connection using a Chrome fingerprint.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{
		ServerName: host,
	}, tls2.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
