package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// StateMarker is the global-variable assignment the storefront embeds its
// product state under.
const StateMarker = "__INITIAL_STATE__"

// flexString decodes a JSON value that may arrive as either a string or a
// number; the storefront is inconsistent about price amounts.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	*f = flexString(data)
	return nil
}

// embeddedState mirrors the documented paths of the product-state object.
// Everything else in the payload is ignored.
type embeddedState struct {
	GoodsDetail struct {
		Detail struct {
			GoodsName string `json:"goods_name"`
			SalePrice struct {
				Amount   flexString `json:"amount"`
				Currency string     `json:"currency"`
			} `json:"salePrice"`
			GoodsImg string `json:"goods_img"`
		} `json:"detail"`
	} `json:"goodsDetail"`
}

// stateFields is what Tier A contributes; empty strings mean "not supplied,
// let the DOM tier try".
type stateFields struct {
	name     string
	priceRaw string
	currency string
	image    string
}

// ParseEmbeddedState scans the markup's script contents for the state
// marker and decodes the product fields. Returns ok=false when no state
// object is present or it cannot be decoded.
func ParseEmbeddedState(markup string) (stateFields, bool) {
	for _, script := range scriptContents(markup) {
		idx := strings.Index(script, StateMarker)
		if idx < 0 {
			continue
		}
		payload, ok := ExtractJSONObject(script[idx+len(StateMarker):])
		if !ok {
			continue
		}
		var state embeddedState
		if err := json.Unmarshal([]byte(payload), &state); err != nil {
			continue
		}
		detail := state.GoodsDetail.Detail
		return stateFields{
			name:     detail.GoodsName,
			priceRaw: string(detail.SalePrice.Amount),
			currency: detail.SalePrice.Currency,
			image:    detail.GoodsImg,
		}, true
	}
	return stateFields{}, false
}

// ExtractJSONObject finds the first '{' in s and returns the substring up
// to its balanced closing brace. A greedy pattern breaks on nested braces,
// which product-state payloads always contain, so this is a proper scan:
// depth counting with string-literal and escape awareness.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// scriptContents returns the text content of every <script> element.
// Tokenizing is enough here; the state assignment is always inline.
func scriptContents(markup string) []string {
	var scripts []string
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	inScript := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return scripts
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "script" {
				inScript = true
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "script" {
				inScript = false
			}
		case html.TextToken:
			if inScript {
				scripts = append(scripts, string(tokenizer.Text()))
			}
		}
	}
}
