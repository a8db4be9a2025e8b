package models

// Product is the structured record extracted from a product page.
//
// All keys are always present in the JSON encoding; fields the extractor
// could not resolve are null. Currency is the exception: it is always
// populated (region inference falls back to USD).
type Product struct {
	// Name is the product title.
	Name *string `json:"name"`

	// Price holds the raw price text plus its normalised form.
	Price Price `json:"price"`

	// Image is the primary product image URL.
	Image *string `json:"image"`

	// Description is a best-effort short description of the product.
	Description *string `json:"description"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url"`
}

// Price is the normalised price triple.
type Price struct {
	// Raw is the price text exactly as found on the page, kept for audit.
	Raw *string `json:"raw"`

	// Value is the integer amount parsed from Raw. The storefront's
	// primary markets display whole-integer prices with "."/"," as
	// grouping separators, so Value is the concatenation of Raw's digit
	// runs ("$ 12.990 CLP" -> 12990). Null when Raw has no digits.
	Value *int64 `json:"value"`

	// Currency is the ISO 4217 code. Always populated.
	Currency string `json:"currency"`
}
