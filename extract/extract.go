// Package extract turns rendered product-page markup into a structured
// record. Two tiers, most reliable first: the embedded client-side state
// object, then a DOM selector waterfall. Fields compose across tiers
// independently — the state may supply the name while the DOM supplies the
// image. A missing field is never an error; it stays null.
package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mercavia/sheinscrape/models"
)

// Extract produces the product record for a successfully navigated page.
func Extract(markup, finalURL string) models.Product {
	return ExtractWithRegion(markup, finalURL, "")
}

// ExtractWithRegion is Extract with an explicit region hint. Currency
// precedence: embedded-state currency, then the region hint, then the URL
// path table, then USD. The result's currency is always populated.
func ExtractWithRegion(markup, finalURL, regionHint string) models.Product {
	product := models.Product{FinalURL: finalURL}

	// Tier A: embedded state.
	state, stateOK := ParseEmbeddedState(markup)

	// Tier B: DOM waterfall, for whatever Tier A did not supply.
	var doc *goquery.Document
	if d, err := goquery.NewDocumentFromReader(strings.NewReader(markup)); err == nil {
		doc = d
	} else {
		slog.Debug("markup did not parse, DOM tier skipped", "url", finalURL, "error", err)
	}

	name := state.name
	if name == "" && doc != nil {
		name = domName(doc)
	}
	if name != "" {
		product.Name = &name
	}

	raw := state.priceRaw
	if raw == "" && doc != nil {
		raw = domPrice(doc)
	}
	if raw != "" {
		product.Price.Raw = &raw
		product.Price.Value = NormalizePrice(raw)
	}

	switch {
	case stateOK && state.currency != "":
		product.Price.Currency = state.currency
	case regionHint != "":
		product.Price.Currency = CurrencyForRegion(regionHint)
	default:
		product.Price.Currency = CurrencyForURL(finalURL)
	}

	image := state.image
	if image == "" && doc != nil {
		image = domImage(doc)
	}
	if image != "" {
		product.Image = &image
	}

	desc := ""
	if doc != nil {
		desc = domDescription(doc)
	}
	if desc == "" {
		desc = readabilityDescription(markup, finalURL)
	}
	if desc != "" {
		product.Description = &desc
	}

	return product
}
