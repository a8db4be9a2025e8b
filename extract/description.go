package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// maxDescriptionLen bounds the readability excerpt; product payloads do not
// need article-length prose.
const maxDescriptionLen = 400

// readabilityDescription is the last description probe: run the Mozilla
// Readability algorithm over the page and use its excerpt. Best-effort —
// any failure returns "" and the field stays null.
func readabilityDescription(markup, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("readability: invalid source URL", "url", sourceURL, "error", err)
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(markup), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed", "url", sourceURL, "error", err)
		return ""
	}

	excerpt := strings.TrimSpace(article.Excerpt)
	if excerpt == "" {
		return ""
	}
	if len(excerpt) > maxDescriptionLen {
		excerpt = excerpt[:maxDescriptionLen]
	}
	return excerpt
}
