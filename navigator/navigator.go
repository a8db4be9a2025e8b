// Package navigator drives a session to the target address and governs the
// retry state machine: effectful navigation, pure outcome classification,
// backoff, and identity rotation on blocks.
package navigator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mercavia/sheinscrape/config"
	"github.com/mercavia/sheinscrape/identity"
	"github.com/mercavia/sheinscrape/models"
)

// Page is the slice of a browser session the controller needs. The
// concrete implementation lives in the session package; tests substitute
// fakes so retry policy runs without a browser.
type Page interface {
	// Navigate drives the page to the URL and returns the resolved
	// address plus the rendered markup after the settle delay.
	Navigate(ctx context.Context, url string) (finalURL, markup string, err error)
	// HTML returns the current rendered markup.
	HTML() (string, error)
	// Screenshot captures the current viewport as PNG.
	Screenshot() ([]byte, error)
	// Release tears the session down. Idempotent.
	Release()
}

// Dialer acquires a session for a network identity.
type Dialer interface {
	Acquire(id identity.Identity) (Page, error)
}

// Controller runs bounded navigation attempts against one target.
type Controller struct {
	dialer     Dialer
	identities *identity.Provider
	cfg        config.NavigationConfig
}

// NewController builds a Controller.
func NewController(dialer Dialer, identities *identity.Provider, cfg config.NavigationConfig) *Controller {
	return &Controller{dialer: dialer, identities: identities, cfg: cfg}
}

// Navigate attempts to reach the target URL, retrying per policy:
//
//   - TimedOut and TransportError retry on the same session, after a fixed
//     backoff, up to the attempt cap (1 initial + Retries).
//   - Blocked never retries the same identity: with rotation available the
//     session is torn down and the next attempt presents the next identity
//     in the pool; without rotation it is terminal immediately.
//   - Success terminates the loop.
//
// The returned Page is the last live session — the caller extracts from a
// Success outcome, captures diagnostics from any other, and must call
// Release exactly once. Page can be nil: on acquire failure, or when the
// deadline fires between a block-forced rotation and the next attempt.
func (c *Controller) Navigate(ctx context.Context, targetURL string) (Page, Outcome, int, error) {
	maxAttempts := c.cfg.Retries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var sess Page
	var last Outcome
	identityIdx := 0
	attemptsRun := 0

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if !c.backoff(ctx) {
				// Overall deadline fired during backoff.
				return sess, Outcome{Kind: KindTimedOut}, attempt, nil
			}
		}

		if sess == nil {
			id := c.identities.Select(identityIdx)
			s, err := c.dialer.Acquire(id)
			if err != nil {
				return nil, Outcome{}, attempt, models.AsScrapeError(err)
			}
			sess = s
			slog.Debug("session acquired",
				"attempt", attempt, "proxy", id.ProxyServer)
		}

		last = c.attempt(ctx, sess, targetURL)
		attemptsRun = attempt + 1
		slog.Info("navigation attempt finished",
			"attempt", attempt+1, "outcome", last.Kind.String(), "url", targetURL)

		switch last.Kind {
		case KindSuccess:
			return sess, last, attempt + 1, nil

		case KindBlocked:
			if !c.identities.CanRotate() {
				// Block short-circuit: the same identity would be
				// blocked again, so remaining attempts are not spent.
				slog.Warn("blocked with no identity rotation available", "url", targetURL)
				return sess, last, attempt + 1, nil
			}
			if attempt == maxAttempts-1 {
				// Out of attempts; keep the session so diagnostics can
				// capture the challenge page.
				return sess, last, attempt + 1, nil
			}
			identityIdx++
			sess.Release()
			sess = nil

		case KindTimedOut, KindTransportError:
			// Retry on the same session.
		}

		if ctx.Err() != nil {
			break
		}
	}

	// Attempts exhausted, or the deadline broke the loop early: hand back
	// the last non-success outcome with the attempts actually run.
	return sess, last, attemptsRun, nil
}

// attempt is one effectful navigation plus the pure classification step.
func (c *Controller) attempt(ctx context.Context, sess Page, targetURL string) Outcome {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	finalURL, markup, err := sess.Navigate(attemptCtx, targetURL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Outcome{Kind: KindTimedOut, Message: err.Error()}
		}
		return Outcome{Kind: KindTransportError, Message: err.Error()}
	}
	return Classify(finalURL, markup)
}

// backoff waits the fixed inter-attempt delay. Returns false if the overall
// deadline fired first.
func (c *Controller) backoff(ctx context.Context) bool {
	if c.cfg.Backoff <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.cfg.Backoff):
		return true
	}
}
