// Package diagnostics captures failure artifacts — a viewport screenshot
// and the raw rendered markup — when a scrape exhausts its retries. The
// artifacts are a write-only side channel for offline triage; capture is
// best-effort and never changes the outcome it documents.
package diagnostics

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Page is the slice of a session the recorder reads from.
type Page interface {
	HTML() (string, error)
	Screenshot() ([]byte, error)
}

// Capture holds the artifact locations for one failure.
type Capture struct {
	SnapshotPath string
	MarkupPath   string
}

// Recorder writes timestamp-keyed artifacts into one directory.
type Recorder struct {
	dir string
}

// NewRecorder creates a Recorder. An empty dir disables capture.
func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir}
}

// Enabled reports whether a capture directory is configured.
func (r *Recorder) Enabled() bool { return r.dir != "" }

// Capture writes the screenshot and markup for a failed scrape. Every
// error is logged and swallowed; the returned Capture carries whichever
// paths were written.
func (r *Recorder) Capture(page Page, ts time.Time) Capture {
	var c Capture
	if !r.Enabled() || page == nil {
		return c
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		slog.Warn("diagnostics: cannot create capture dir", "dir", r.dir, "error", err)
		return c
	}

	stem := fmt.Sprintf("failure_%d", ts.UnixMilli())

	if png, err := page.Screenshot(); err != nil {
		slog.Warn("diagnostics: screenshot failed", "error", err)
	} else {
		path := filepath.Join(r.dir, stem+".png")
		if err := os.WriteFile(path, png, 0o644); err != nil {
			slog.Warn("diagnostics: screenshot write failed", "path", path, "error", err)
		} else {
			c.SnapshotPath = path
		}
	}

	if markup, err := page.HTML(); err != nil {
		slog.Warn("diagnostics: markup read failed", "error", err)
	} else {
		path := filepath.Join(r.dir, stem+".html")
		if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
			slog.Warn("diagnostics: markup write failed", "path", path, "error", err)
		} else {
			c.MarkupPath = path
		}
	}

	if c.SnapshotPath != "" || c.MarkupPath != "" {
		slog.Info("diagnostics captured",
			"snapshot", c.SnapshotPath, "markup", c.MarkupPath)
	}
	return c
}
