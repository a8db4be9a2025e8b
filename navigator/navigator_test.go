package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mercavia/sheinscrape/config"
	"github.com/mercavia/sheinscrape/extract"
	"github.com/mercavia/sheinscrape/identity"
)

// navStep scripts one Navigate call on a fake page.
type navStep struct {
	finalURL string
	markup   string
	err      error
}

type fakePage struct {
	steps    []navStep
	navCalls int
	releases int
}

func (p *fakePage) Navigate(ctx context.Context, url string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	i := p.navCalls
	p.navCalls++
	if i >= len(p.steps) {
		return "", "", errors.New("unscripted navigation")
	}
	s := p.steps[i]
	return s.finalURL, s.markup, s.err
}

func (p *fakePage) HTML() (string, error)       { return "", nil }
func (p *fakePage) Screenshot() ([]byte, error) { return nil, nil }
func (p *fakePage) Release()                    { p.releases++ }

type fakeDialer struct {
	pages    []*fakePage
	acquired []identity.Identity
	err      error
}

func (d *fakeDialer) Acquire(id identity.Identity) (Page, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.acquired = append(d.acquired, id)
	if len(d.acquired) > len(d.pages) {
		return nil, errors.New("unscripted acquire")
	}
	return d.pages[len(d.acquired)-1], nil
}

func testNavConfig() config.NavigationConfig {
	return config.NavigationConfig{
		AttemptTimeout: 200 * time.Millisecond,
		Retries:        2,
		Backoff:        time.Millisecond,
	}
}

func singleIdentity(t *testing.T) *identity.Provider {
	t.Helper()
	p, err := identity.NewProvider(config.IdentityConfig{AllowDirect: true, Locale: "es-CL"})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	return p
}

func multiIdentity(t *testing.T) *identity.Provider {
	t.Helper()
	p, err := identity.NewProvider(config.IdentityConfig{
		Proxies: []string{"http://a.example:1080", "http://b.example:1080"},
		Locale:  "es-CL",
	})
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	return p
}

func TestNavigate_RetryTermination(t *testing.T) {
	// Three consecutive transport errors with Retries=2 must terminate
	// after exactly 3 attempts, never more.
	page := &fakePage{steps: []navStep{
		{err: errors.New("proxy refused")},
		{err: errors.New("proxy refused")},
		{err: errors.New("proxy refused")},
	}}
	dialer := &fakeDialer{pages: []*fakePage{page}}
	c := NewController(dialer, singleIdentity(t), testNavConfig())

	sess, outcome, attempts, err := c.Navigate(context.Background(), "https://m.shein.com/cl/x-p-1.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if page.navCalls != 3 {
		t.Errorf("navigation calls = %d, want 3", page.navCalls)
	}
	if outcome.Kind != KindTransportError {
		t.Errorf("outcome = %s, want transport_error", outcome.Kind)
	}

	// The controller hands the session back unreleased; the caller owns
	// the single Release.
	if page.releases != 0 {
		t.Errorf("controller released the returned session %d times", page.releases)
	}
	sess.Release()
	if page.releases != 1 {
		t.Errorf("release count = %d, want exactly 1", page.releases)
	}
}

func TestNavigate_BlockShortCircuit(t *testing.T) {
	// Blocked with no rotation available terminates without consuming the
	// remaining attempts.
	page := &fakePage{steps: []navStep{
		{finalURL: "https://m.shein.com/risk/challenge", markup: "<html>captcha</html>"},
	}}
	dialer := &fakeDialer{pages: []*fakePage{page}}
	c := NewController(dialer, singleIdentity(t), testNavConfig())

	sess, outcome, attempts, err := c.Navigate(context.Background(), "https://m.shein.com/cl/x-p-1.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != KindBlocked {
		t.Fatalf("outcome = %s, want blocked", outcome.Kind)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (short-circuit)", attempts)
	}
	if sess == nil {
		t.Fatal("blocked outcome must keep the session for diagnostics")
	}
	sess.Release()
	if page.releases != 1 {
		t.Errorf("release count = %d, want 1", page.releases)
	}
}

func TestNavigate_BlockRotatesIdentity(t *testing.T) {
	blocked := &fakePage{steps: []navStep{
		{finalURL: "https://m.shein.com/risk/challenge", markup: "<html>captcha</html>"},
	}}
	ok := &fakePage{steps: []navStep{
		{finalURL: "https://m.shein.com/cl/x-p-1.html", markup: "<html><h1>Tank Top</h1></html>"},
	}}
	dialer := &fakeDialer{pages: []*fakePage{blocked, ok}}
	c := NewController(dialer, multiIdentity(t), testNavConfig())

	sess, outcome, attempts, err := c.Navigate(context.Background(), "https://m.shein.com/cl/x-p-1.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != KindSuccess {
		t.Fatalf("outcome = %s, want success", outcome.Kind)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}

	// Blocked never retries the same identity.
	if len(dialer.acquired) != 2 {
		t.Fatalf("acquires = %d, want 2", len(dialer.acquired))
	}
	if dialer.acquired[0].ProxyServer == dialer.acquired[1].ProxyServer {
		t.Error("blocked retry reused the same egress identity")
	}

	// The rotated-away session was released exactly once by the
	// controller; the surviving one belongs to the caller.
	if blocked.releases != 1 {
		t.Errorf("blocked session releases = %d, want 1", blocked.releases)
	}
	if ok.releases != 0 {
		t.Errorf("surviving session released prematurely %d times", ok.releases)
	}
	sess.Release()
	if ok.releases != 1 {
		t.Errorf("surviving session releases = %d, want 1", ok.releases)
	}
}

func TestNavigate_TimeoutThenSuccessExtractsProduct(t *testing.T) {
	const markup = `<html><head><script>
		window.__INITIAL_STATE__ = {"goodsDetail":{"detail":{
			"goods_name":"Tank Top",
			"salePrice":{"amount":"5990"},
			"goods_img":"https://img.cdn/x.jpg"}}};
	</script></head><body><h1>Tank Top</h1></body></html>`

	page := &fakePage{steps: []navStep{
		{err: context.DeadlineExceeded},
		{finalURL: "https://m.shein.com/cl/tank-top-p-5.html", markup: markup},
	}}
	dialer := &fakeDialer{pages: []*fakePage{page}}
	c := NewController(dialer, singleIdentity(t), testNavConfig())

	sess, outcome, attempts, err := c.Navigate(context.Background(), "https://m.shein.com/cl/tank-top-p-5.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sess.Release()

	if attempts != 2 {
		t.Errorf("attempts = %d, want exactly 2", attempts)
	}
	if outcome.Kind != KindSuccess {
		t.Fatalf("outcome = %s, want success", outcome.Kind)
	}

	product := extract.Extract(outcome.Markup, outcome.FinalURL)
	if product.Name == nil || *product.Name != "Tank Top" {
		t.Errorf("name = %v, want Tank Top", product.Name)
	}
	if product.Price.Raw == nil || *product.Price.Raw != "5990" {
		t.Errorf("price raw = %v, want 5990", product.Price.Raw)
	}
	if product.Price.Value == nil || *product.Price.Value != 5990 {
		t.Errorf("price value = %v, want 5990", product.Price.Value)
	}
	if product.Price.Currency != "CLP" {
		t.Errorf("currency = %s, want CLP", product.Price.Currency)
	}
	if product.Image == nil || *product.Image != "https://img.cdn/x.jpg" {
		t.Errorf("image = %v, want https://img.cdn/x.jpg", product.Image)
	}
	if product.FinalURL != "https://m.shein.com/cl/tank-top-p-5.html" {
		t.Errorf("final url = %s", product.FinalURL)
	}
}

func TestNavigate_AcquireFailureIsFatal(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("browser gone")}
	c := NewController(dialer, singleIdentity(t), testNavConfig())

	sess, _, _, err := c.Navigate(context.Background(), "https://m.shein.com/cl/x-p-1.html")
	if err == nil {
		t.Fatal("expected error when session acquisition fails")
	}
	if sess != nil {
		t.Error("no session should be returned on acquire failure")
	}
}

// cancellingPage cancels the request context as its navigation returns,
// like a caller disconnect landing mid-attempt.
type cancellingPage struct {
	*fakePage
	cancel context.CancelFunc
}

func (p *cancellingPage) Navigate(ctx context.Context, url string) (string, string, error) {
	defer p.cancel()
	return p.fakePage.Navigate(ctx, url)
}

type singlePageDialer struct {
	page     Page
	acquires int
}

func (d *singlePageDialer) Acquire(identity.Identity) (Page, error) {
	d.acquires++
	return d.page, nil
}

func TestNavigate_AttemptCountOnEarlyCancel(t *testing.T) {
	// The deadline fires after the first attempt; the reported count must
	// be the attempts actually run, not the configured maximum.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &fakePage{steps: []navStep{
		{err: errors.New("socket closed")},
	}}
	dialer := &singlePageDialer{page: &cancellingPage{fakePage: inner, cancel: cancel}}
	c := NewController(dialer, singleIdentity(t), testNavConfig())

	sess, outcome, attempts, err := c.Navigate(ctx, "https://m.shein.com/cl/x-p-1.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (only one attempt ran)", attempts)
	}
	if inner.navCalls != 1 {
		t.Errorf("navigation calls = %d, want 1", inner.navCalls)
	}
	if outcome.Kind != KindTransportError {
		t.Errorf("outcome = %s, want transport_error", outcome.Kind)
	}
	if sess == nil {
		t.Fatal("session must survive for release on early cancel")
	}
	sess.Release()
	if inner.releases != 1 {
		t.Errorf("release count = %d, want 1", inner.releases)
	}
}

func TestNavigate_DeadlineDuringBackoff(t *testing.T) {
	page := &fakePage{steps: []navStep{
		{err: errors.New("proxy refused")},
	}}
	dialer := &fakeDialer{pages: []*fakePage{page}}
	cfg := testNavConfig()
	cfg.Backoff = 5 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewController(dialer, singleIdentity(t), cfg)
	sess, outcome, _, err := c.Navigate(ctx, "https://m.shein.com/cl/x-p-1.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind != KindTimedOut {
		t.Errorf("outcome = %s, want timed_out when deadline fires mid-backoff", outcome.Kind)
	}
	if sess == nil {
		t.Fatal("session must survive for release on deadline")
	}
	sess.Release()
	if page.releases != 1 {
		t.Errorf("release count = %d, want 1", page.releases)
	}
}
