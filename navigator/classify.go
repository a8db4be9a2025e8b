package navigator

import (
	"net/url"
	"strings"
)

// riskPathSegments mark challenge pages by their resolved address: the
// storefront redirects suspected automation to a /risk or /challenge route
// instead of serving the product.
var riskPathSegments = map[string]struct{}{
	"risk":      {},
	"challenge": {},
	"punish":    {},
}

// challengeMarkers are content-level block indicators, matched
// case-insensitively against the rendered markup.
var challengeMarkers = []string{
	"captcha",
	"geetest",
	"unusual activity",
	"please verify",
	"verify you are human",
}

// Classify is the pure classification step of the retry state machine:
// given the resolved address and rendered markup of a completed navigation,
// decide whether the attempt reached the product page or a block page.
// No side effects, so retry policy is testable without a live session.
func Classify(finalURL, markup string) Outcome {
	if IsBlockPage(finalURL, markup) {
		return Outcome{
			Kind:      KindBlocked,
			FinalURL:  finalURL,
			Markup:    markup,
			MarkupLen: len(markup),
		}
	}
	return Outcome{
		Kind:      KindSuccess,
		FinalURL:  finalURL,
		Markup:    markup,
		MarkupLen: len(markup),
	}
}

// IsBlockPage reports whether the address or markup matches a known
// risk/challenge indicator.
func IsBlockPage(finalURL, markup string) bool {
	if u, err := url.Parse(finalURL); err == nil {
		for _, seg := range strings.Split(u.Path, "/") {
			if _, ok := riskPathSegments[strings.ToLower(seg)]; ok {
				return true
			}
		}
	}
	lower := strings.ToLower(markup)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
