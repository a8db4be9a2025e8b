package extract

import "testing"

func TestExtract_EmbeddedStateComplete(t *testing.T) {
	markup := `<html><head><script>
	window.__INITIAL_STATE__ = {"goodsDetail":{"detail":{
		"goods_name":"Tank Top",
		"salePrice":{"amount":"5990","currency":"CLP"},
		"goods_img":"https://img.cdn/x.jpg"}}};
	</script></head><body><h1>DOM Title Ignored</h1></body></html>`

	p := Extract(markup, "https://m.shein.com/cl/tank-top-p-5.html")
	if p.Name == nil || *p.Name != "Tank Top" {
		t.Errorf("name = %v", p.Name)
	}
	if p.Price.Raw == nil || *p.Price.Raw != "5990" {
		t.Errorf("raw = %v", p.Price.Raw)
	}
	if p.Price.Value == nil || *p.Price.Value != 5990 {
		t.Errorf("value = %v", p.Price.Value)
	}
	if p.Price.Currency != "CLP" {
		t.Errorf("currency = %s", p.Price.Currency)
	}
	if p.Image == nil || *p.Image != "https://img.cdn/x.jpg" {
		t.Errorf("image = %v", p.Image)
	}
}

func TestExtract_PartialComposition(t *testing.T) {
	// Tier A supplies the name but no image; Tier B supplies the image.
	// The result must carry both.
	markup := `<html><head><script>
	window.__INITIAL_STATE__ = {"goodsDetail":{"detail":{"goods_name":"Tank Top"}}};
	</script></head><body>
	<img src="https://img.ltwebstatic.com/images3_pi/tank.jpg"/>
	<div class="product-price">$ 12.990</div>
	</body></html>`

	p := Extract(markup, "https://m.shein.com/cl/tank-top-p-5.html")
	if p.Name == nil || *p.Name != "Tank Top" {
		t.Errorf("state-supplied name lost: %v", p.Name)
	}
	if p.Image == nil || *p.Image != "https://img.ltwebstatic.com/images3_pi/tank.jpg" {
		t.Errorf("DOM-supplied image lost: %v", p.Image)
	}
	if p.Price.Raw == nil || *p.Price.Raw != "$ 12.990" {
		t.Errorf("DOM-supplied price lost: %v", p.Price.Raw)
	}
	if p.Price.Value == nil || *p.Price.Value != 12990 {
		t.Errorf("value = %v", p.Price.Value)
	}
	if p.Price.Currency != "CLP" {
		t.Errorf("currency = %s", p.Price.Currency)
	}
}

func TestExtract_DOMNameWaterfall(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			"h1 wins",
			`<html><head><title>Doc Title</title></head><body><h1> Tank  Top </h1><div class="product-title">Other</div></body></html>`,
			"Tank Top",
		},
		{
			"title class when no h1",
			`<html><head><title>Doc Title</title></head><body><div class="goods-name__text">Camiseta</div></body></html>`,
			"Camiseta",
		},
		{
			"meta description next",
			`<html><head><title>Doc Title</title><meta name="description" content="Polera básica"/></head><body></body></html>`,
			"Polera básica",
		},
		{
			"document title last",
			`<html><head><title>Doc Title</title></head><body><p>nothing else</p></body></html>`,
			"Doc Title",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Extract(tt.markup, "https://m.shein.com/x-p-1.html")
			if p.Name == nil || *p.Name != tt.want {
				t.Errorf("name = %v, want %q", p.Name, tt.want)
			}
		})
	}
}

func TestExtract_PriceProbeSkipsDigitlessMatches(t *testing.T) {
	markup := `<html><body>
	<span class="price-label">Precio</span>
	<span class="sale-price">$ 9.990</span>
	</body></html>`
	p := Extract(markup, "https://m.shein.com/cl/x-p-1.html")
	if p.Price.Raw == nil || *p.Price.Raw != "$ 9.990" {
		t.Errorf("raw = %v, want the element that carries digits", p.Price.Raw)
	}
}

func TestExtract_ImageFallsBackToFirstImage(t *testing.T) {
	markup := `<html><body><img src="https://other.cdn/banner.jpg"/></body></html>`
	p := Extract(markup, "https://m.shein.com/x-p-1.html")
	if p.Image == nil || *p.Image != "https://other.cdn/banner.jpg" {
		t.Errorf("image = %v", p.Image)
	}
}

func TestExtract_MissingFieldsStayNull(t *testing.T) {
	p := Extract("<html><body></body></html>", "https://m.shein.com/x-p-1.html")
	if p.Name != nil {
		t.Errorf("name should be null, got %q", *p.Name)
	}
	if p.Price.Raw != nil || p.Price.Value != nil {
		t.Error("price should be null")
	}
	if p.Image != nil {
		t.Error("image should be null")
	}
	// Currency is the exception: always populated.
	if p.Price.Currency != "USD" {
		t.Errorf("currency = %q, want USD default", p.Price.Currency)
	}
}

func TestExtract_CurrencyPrecedence(t *testing.T) {
	stateMarkup := `<script>window.__INITIAL_STATE__ = {"goodsDetail":{"detail":{
		"goods_name":"x","salePrice":{"amount":"100","currency":"MXN"}}}};</script>`

	// State currency beats the URL table.
	p := Extract(stateMarkup, "https://m.shein.com/cl/x-p-1.html")
	if p.Price.Currency != "MXN" {
		t.Errorf("state currency must win, got %s", p.Price.Currency)
	}

	// Region hint beats the URL table when the state has no currency.
	noCurrency := `<script>window.__INITIAL_STATE__ = {"goodsDetail":{"detail":{
		"goods_name":"x","salePrice":{"amount":"100"}}}};</script>`
	p = ExtractWithRegion(noCurrency, "https://m.shein.com/cl/x-p-1.html", "mx")
	if p.Price.Currency != "MXN" {
		t.Errorf("region hint must win over the URL table, got %s", p.Price.Currency)
	}

	// URL table is the fallback.
	p = Extract(noCurrency, "https://m.shein.com/cl/x-p-1.html")
	if p.Price.Currency != "CLP" {
		t.Errorf("URL table fallback, got %s", p.Price.Currency)
	}
}

func TestExtract_DescriptionFromMeta(t *testing.T) {
	markup := `<html><head><meta property="og:description" content="Polera de tirantes, algodón."/></head><body><h1>Tank Top</h1></body></html>`
	p := Extract(markup, "https://m.shein.com/cl/x-p-1.html")
	if p.Description == nil || *p.Description != "Polera de tirantes, algodón." {
		t.Errorf("description = %v", p.Description)
	}
}
