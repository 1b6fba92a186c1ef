// Package symbol normalizes user-entered forex symbols into the broker
// feed format and decomposes feed symbols into base/quote currency codes.
package symbol

import "strings"

// Suffix is the broker account-type marker appended to every feed symbol
// (MT5 micro-account convention, e.g. "EURUSDm").
const Suffix = "m"

// knownCodes holds every currency code the codec recognizes, including
// metal and crypto pseudo-currencies. Codes vary in length (USDT is 4),
// which is why ParsePair matches prefixes greedily.
var knownCodes = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {},
	"CHF": {}, "CAD": {}, "AUD": {}, "NZD": {},
	"XAU": {}, "XAG": {}, "XPT": {}, "XPD": {},
	"BTC": {}, "ETH": {}, "USDT": {},
}

// Majors lists the eight currencies tracked by the strength aggregator.
var Majors = []string{"USD", "EUR", "GBP", "JPY", "CHF", "CAD", "AUD", "NZD"}

var separatorReplacer = strings.NewReplacer("/", "", "-", "", "_", "", ".", "", " ", "")

// Pair is a decomposed currency pair.
type Pair struct {
	Base  string
	Quote string
}

// NormalizeForFeed converts user input ("eur/usd", "EURUSD", "EURUSDm")
// into feed format ("EURUSDm"). Idempotent: normalizing an already
// normalized symbol returns it unchanged.
func NormalizeForFeed(input string) string {
	s := separatorReplacer.Replace(strings.TrimSpace(input))
	s = strings.ToUpper(s)
	// A trailing M on anything longer than a bare 6-letter pair is the
	// broker suffix, not part of the pair itself.
	if strings.HasSuffix(s, "M") && len(s) >= 7 {
		s = s[:len(s)-1]
	}
	return s + Suffix
}

// StripSuffix removes the broker suffix marker if present.
func StripSuffix(feedSymbol string) string {
	if strings.HasSuffix(feedSymbol, Suffix) || strings.HasSuffix(feedSymbol, strings.ToUpper(Suffix)) {
		if len(feedSymbol) >= 7 {
			return feedSymbol[:len(feedSymbol)-1]
		}
	}
	return feedSymbol
}

// ParsePair splits a feed symbol into base and quote currency codes by
// greedily matching the longest known code as a prefix (lengths 3 up to
// 6, so "XAUUSDm" parses as XAU/USD). Returns nil if either side is not
// a recognized code.
func ParsePair(feedSymbol string) *Pair {
	body := StripSuffix(strings.ToUpper(strings.TrimSpace(feedSymbol)))
	if len(body) < 6 {
		return nil
	}
	maxLen := len(body) - 3
	if maxLen > 6 {
		maxLen = 6
	}
	for l := maxLen; l >= 3; l-- {
		base := body[:l]
		quote := body[l:]
		if _, ok := knownCodes[base]; !ok {
			continue
		}
		if _, ok := knownCodes[quote]; !ok {
			continue
		}
		return &Pair{Base: base, Quote: quote}
	}
	return nil
}

// IsKnownCode reports whether code is a recognized currency code.
func IsKnownCode(code string) bool {
	_, ok := knownCodes[strings.ToUpper(code)]
	return ok
}
