package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Tier B selector waterfalls. Each probe is a pure doc -> string lookup; a
// miss returns "" and the next probe runs. Selectors are compiled once —
// class-name patterns survive storefront rollouts better than exact class
// names, which change between deployments.
var (
	selH1           = cascadia.MustCompile("h1")
	selProductTitle = cascadia.MustCompile(`[class*="product-intro__head-name"], [class*="product-title"], [class*="goods-name"], [class*="goods-title"]`)
	selMetaDesc     = cascadia.MustCompile(`meta[name="description"]`)
	selOGDesc       = cascadia.MustCompile(`meta[property="og:description"]`)
	selTitle        = cascadia.MustCompile("title")
	selPriceTestID  = cascadia.MustCompile(`[data-testid="price"]`)
	selPriceClass   = cascadia.MustCompile(`[class*="price"]`)
	selProductImage = cascadia.MustCompile(`img[src*="shein"], img[src*="ltwebstatic"]`)
	selAnyImage     = cascadia.MustCompile("img")
)

type probe func(*goquery.Document) string

// firstHit evaluates probes left to right; first non-empty wins.
func firstHit(doc *goquery.Document, probes []probe) string {
	for _, p := range probes {
		if v := p(doc); v != "" {
			return v
		}
	}
	return ""
}

// domName runs the product-name waterfall: primary heading, title-class
// patterns, meta description, document title as last resort.
func domName(doc *goquery.Document) string {
	return firstHit(doc, []probe{
		textProbe(selH1),
		textProbe(selProductTitle),
		attrProbe(selMetaDesc, "content"),
		textProbe(selTitle),
	})
}

// domPrice runs the price waterfall. A hit must contain a digit, so label
// elements whose class merely matches "price" are skipped.
func domPrice(doc *goquery.Document) string {
	return firstHit(doc, []probe{
		numericTextProbe(selPriceTestID),
		numericTextProbe(selPriceClass),
	})
}

// domImage prefers images served from the product CDN, else the first
// image on the page.
func domImage(doc *goquery.Document) string {
	return firstHit(doc, []probe{
		attrProbe(selProductImage, "src"),
		attrProbe(selAnyImage, "src"),
	})
}

// domDescription tries the meta description tags. The readability probe in
// description.go runs after these.
func domDescription(doc *goquery.Document) string {
	return firstHit(doc, []probe{
		attrProbe(selMetaDesc, "content"),
		attrProbe(selOGDesc, "content"),
	})
}

// textProbe yields the first matched element's collapsed text.
func textProbe(sel cascadia.Selector) probe {
	return func(doc *goquery.Document) string {
		return cleanText(doc.FindMatcher(sel).First().Text())
	}
}

// attrProbe yields the first matched element's non-empty attribute.
func attrProbe(sel cascadia.Selector, attr string) probe {
	return func(doc *goquery.Document) string {
		var found string
		doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				found = strings.TrimSpace(v)
				return false
			}
			return true
		})
		return found
	}
}

// numericTextProbe yields the first matched element whose text carries a
// digit.
func numericTextProbe(sel cascadia.Selector) probe {
	return func(doc *goquery.Document) string {
		var found string
		doc.FindMatcher(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			t := cleanText(s.Text())
			if strings.ContainsAny(t, "0123456789") {
				found = t
				return false
			}
			return true
		})
		return found
	}
}

// cleanText collapses runs of whitespace to single spaces and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
