package scraper

import "testing"

func TestFastPathUsable(t *testing.T) {
	const stateMarkup = `<html><head><script>
		window.__INITIAL_STATE__ = {"goodsDetail":{"detail":{"goods_name":"Tank Top"}}};
	</script></head><body></body></html>`

	tests := []struct {
		name     string
		markup   string
		finalURL string
		want     bool
	}{
		{
			"server-rendered state present",
			stateMarkup,
			"https://m.shein.com/cl/tank-top-p-5.html",
			true,
		},
		{
			"no embedded state",
			"<html><body><h1>Tank Top</h1></body></html>",
			"https://m.shein.com/cl/tank-top-p-5.html",
			false,
		},
		{
			"state present but challenge markup",
			`<html><script>window.__INITIAL_STATE__ = {};</script>please verify you are human</html>`,
			"https://m.shein.com/cl/tank-top-p-5.html",
			false,
		},
		{
			"state present but risk redirect",
			stateMarkup,
			"https://m.shein.com/risk/challenge",
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fastPathUsable(tt.markup, tt.finalURL); got != tt.want {
				t.Errorf("fastPathUsable = %v, want %v", got, tt.want)
			}
		})
	}
}
