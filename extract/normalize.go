package extract

import (
	"net/url"
	"strconv"
	"strings"
)

// regionCurrency maps storefront URL path segments to currency codes. The
// mapping is total: any input not in the table resolves to USD.
var regionCurrency = map[string]string{
	"cl": "CLP",
	"mx": "MXN",
	"es": "EUR",
	"us": "USD",
}

const defaultCurrency = "USD"

// CurrencyForRegion resolves a region hint ("cl", "mx", ...) to a currency
// code. Unknown or empty regions resolve to USD.
func CurrencyForRegion(region string) string {
	if c, ok := regionCurrency[strings.ToLower(region)]; ok {
		return c
	}
	return defaultCurrency
}

// CurrencyForURL infers the currency from the first recognised region
// segment in the URL path. Deterministic and total.
func CurrencyForURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultCurrency
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if c, ok := regionCurrency[strings.ToLower(seg)]; ok {
			return c
		}
	}
	return defaultCurrency
}

// NormalizePrice reduces raw price text to its integer value: the digit
// runs are concatenated and parsed ("$ 12.990 CLP" -> 12990). The
// storefront's primary markets display whole-integer prices, so "." and ","
// are grouping separators, never decimal points. Returns nil when the text
// carries no digits.
func NormalizePrice(raw string) *int64 {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	v, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
