package session

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/mercavia/sheinscrape/identity"
)

// blockedDomains is a set of analytics, ad and image-CDN domains whose
// subrequests are aborted to cut bandwidth and tracking noise. The product
// data itself never comes from these hosts.
var blockedDomains = map[string]struct{}{
	"doubleclick.net":         {},
	"googlesyndication.com":   {},
	"googleadservices.com":    {},
	"google-analytics.com":    {},
	"googletagmanager.com":    {},
	"googletagservices.com":   {},
	"facebook.net":            {},
	"connect.facebook.net":    {},
	"facebook.com":            {},
	"fbcdn.net":               {},
	"criteo.com":              {},
	"criteo.net":              {},
	"hotjar.com":              {},
	"mixpanel.com":            {},
	"segment.io":              {},
	"segment.com":             {},
	"scorecardresearch.com":   {},
	"analytics.twitter.com":   {},
	"ads-twitter.com":         {},
	"tiktok.com":              {},
	"analytics.tiktok.com":    {},
	"branch.io":               {},
	"appsflyer.com":           {},
	"clarity.ms":              {},
	"bing.com":                {},
	"img.ltwebstatic.com":     {},
	"imgdeal.ltwebstatic.com": {},
	"sheinsz.ltwebstatic.com": {},
}

// blockedExtensions are static-asset suffixes aborted regardless of host.
var blockedExtensions = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".svg", ".ico",
	".woff", ".woff2", ".ttf", ".mp4", ".webm",
}

// isBlockedHost checks if a hostname (or any parent domain) is blocklisted.
func isBlockedHost(host string) bool {
	host = strings.ToLower(host)
	if _, ok := blockedDomains[host]; ok {
		return true
	}
	// Walk parent domains (e.g. "pagead2.googlesyndication.com" →
	// "googlesyndication.com").
	for {
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
		if _, ok := blockedDomains[host]; ok {
			return true
		}
	}
	return false
}

// isBlockedPath checks the URL path against static-asset extensions.
func isBlockedPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range blockedExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// shouldAbort decides whether a subrequest is dropped. Document requests
// always pass: aborting the primary navigation would turn every scrape into
// a transport error.
func shouldAbort(resourceType proto.NetworkResourceType, rawURL string) bool {
	if resourceType == proto.NetworkResourceTypeDocument {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return isBlockedHost(u.Hostname()) || isBlockedPath(u.Path)
}

// needsAuthResponder reports whether the identity's proxy challenges for
// credentials.
func needsAuthResponder(id identity.Identity) bool {
	return id.Proxied() && id.ProxyUsername != ""
}

// authChallengeResponse builds the CDP answer for a proxy auth challenge.
func authChallengeResponse(id identity.Identity) *proto.FetchAuthChallengeResponse {
	if !needsAuthResponder(id) {
		return &proto.FetchAuthChallengeResponse{
			Response: proto.FetchAuthChallengeResponseResponseDefault,
		}
	}
	return &proto.FetchAuthChallengeResponse{
		Response: proto.FetchAuthChallengeResponseResponseProvideCredentials,
		Username: id.ProxyUsername,
		Password: id.ProxyPassword,
	}
}

// mountNetworkControl installs the request filter and, when the identity
// carries proxy credentials, the auth responder — both on the page's own
// Fetch domain. Sessions run with different proxies concurrently, so the
// responder must not be browser-wide: it would answer another session's
// challenge with the wrong credentials.
//
// The returned cancel tears the event loop down; Release calls it so no
// goroutine outlives its session.
func mountNetworkControl(page *rod.Page, id identity.Identity) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	p := page.Context(ctx)

	if err := (proto.FetchEnable{
		HandleAuthRequests: needsAuthResponder(id),
	}).Call(p); err != nil {
		slog.Warn("request filter mount failed, proceeding unfiltered", "error", err)
		cancel()
		return func() {}
	}

	// No patterns = every request pauses at the Request stage and waits for
	// a verdict below.
	go p.EachEvent(
		func(e *proto.FetchRequestPaused) {
			if shouldAbort(e.ResourceType, e.Request.URL) {
				_ = proto.FetchFailRequest{
					RequestID:   e.RequestID,
					ErrorReason: proto.NetworkErrorReasonBlockedByClient,
				}.Call(p)
				return
			}
			_ = proto.FetchContinueRequest{RequestID: e.RequestID}.Call(p)
		},
		func(e *proto.FetchAuthRequired) {
			_ = proto.FetchContinueWithAuth{
				RequestID:             e.RequestID,
				AuthChallengeResponse: authChallengeResponse(id),
			}.Call(p)
		},
	)()

	return cancel
}
