package symbol

import "testing"

func TestNormalizeForFeed(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"eurusd", "EURUSDm"},
		{"EUR/USD", "EURUSDm"},
		{"eur-usd", "EURUSDm"},
		{"EUR_USD", "EURUSDm"},
		{" gbpjpy ", "GBPJPYm"},
		{"EURUSDm", "EURUSDm"},
		{"xauusd", "XAUUSDm"},
		{"XAUUSDm", "XAUUSDm"},
	}
	for _, c := range cases {
		if got := NormalizeForFeed(c.in); got != c.want {
			t.Errorf("NormalizeForFeed(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeForFeed_Idempotent(t *testing.T) {
	inputs := []string{"eurusd", "EUR/USD", "EURUSDm", "xau.usd", "usdjpy", "BTCUSD"}
	for _, in := range inputs {
		once := NormalizeForFeed(in)
		twice := NormalizeForFeed(once)
		if once != twice {
			t.Errorf("normalization not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}

func TestParsePair(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
	}{
		{"EURUSDm", "EUR", "USD"},
		{"XAUUSDm", "XAU", "USD"},
		{"GBPJPY", "GBP", "JPY"},
		{"BTCUSDTm", "BTC", "USDT"},
		{"usdchf", "USD", "CHF"},
	}
	for _, c := range cases {
		p := ParsePair(c.in)
		if p == nil {
			t.Fatalf("ParsePair(%q) = nil, want %s/%s", c.in, c.base, c.quote)
		}
		if p.Base != c.base || p.Quote != c.quote {
			t.Errorf("ParsePair(%q) = %s/%s, want %s/%s", c.in, p.Base, p.Quote, c.base, c.quote)
		}
	}
}

func TestParsePair_Unrecognized(t *testing.T) {
	for _, in := range []string{"ABCDEF", "EURABC", "ABCUSD", "EUR", ""} {
		if p := ParsePair(in); p != nil {
			t.Errorf("ParsePair(%q) = %+v, want nil", in, p)
		}
	}
}
