package session

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"

	"github.com/mercavia/sheinscrape/identity"
)

func TestShouldAbort_NeverAbortsDocuments(t *testing.T) {
	// Even a blocklisted host passes when it is the primary navigation.
	urls := []string{
		"https://www.google-analytics.com/",
		"https://img.ltwebstatic.com/images3_pi/whatever",
		"https://m.shein.com/cl/product-p-123.html",
	}
	for _, u := range urls {
		if shouldAbort(proto.NetworkResourceTypeDocument, u) {
			t.Errorf("document request to %s must not be aborted", u)
		}
	}
}

func TestShouldAbort_BlockedHosts(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"exact match", "https://hotjar.com/collect", true},
		{"subdomain of blocked", "https://pagead2.googlesyndication.com/ads", true},
		{"deep subdomain", "https://a.b.criteo.net/x", true},
		{"image cdn", "https://img.ltwebstatic.com/images3_pi/x", true},
		{"storefront itself", "https://m.shein.com/api/goods", false},
		{"unrelated host", "https://example.org/script.js", false},
		{"suffix but not subdomain", "https://nothotjar.com/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shouldAbort(proto.NetworkResourceTypeXHR, tt.url)
			if got != tt.want {
				t.Errorf("shouldAbort(%s) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestShouldAbort_StaticImageExtensions(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/banner.jpg", true},
		{"https://cdn.example.com/banner.WEBP", true},
		{"https://cdn.example.com/font.woff2", true},
		{"https://m.shein.com/api/goods.json", false},
		{"https://m.shein.com/cl/product.html", false},
	}
	for _, tt := range tests {
		if got := shouldAbort(proto.NetworkResourceTypeOther, tt.url); got != tt.want {
			t.Errorf("shouldAbort(%s) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestAuthResponder_PerIdentity(t *testing.T) {
	direct := identity.Identity{}
	anonProxy := identity.Identity{ProxyServer: "http://a.example:1080"}
	credProxy := identity.Identity{
		ProxyServer:   "http://a.example:1080",
		ProxyUsername: "scrape-a",
		ProxyPassword: "secret-a",
	}

	if needsAuthResponder(direct) {
		t.Error("direct egress must not register an auth responder")
	}
	if needsAuthResponder(anonProxy) {
		t.Error("credential-less proxy must not register an auth responder")
	}
	if !needsAuthResponder(credProxy) {
		t.Error("credentialed proxy must register an auth responder")
	}

	// Each session answers with its own credentials, never another
	// identity's and never a default dismissal.
	resp := authChallengeResponse(credProxy)
	if resp.Response != proto.FetchAuthChallengeResponseResponseProvideCredentials {
		t.Fatalf("challenge response = %v, want ProvideCredentials", resp.Response)
	}
	if resp.Username != "scrape-a" || resp.Password != "secret-a" {
		t.Errorf("challenge answered with %q/%q, want the identity's own credentials",
			resp.Username, resp.Password)
	}

	if resp := authChallengeResponse(direct); resp.Response != proto.FetchAuthChallengeResponseResponseDefault {
		t.Errorf("credential-less challenge response = %v, want Default", resp.Response)
	}
}
