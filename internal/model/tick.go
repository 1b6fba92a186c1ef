package model

import "time"

// Tick represents a single quote update pushed by the broker feed.
// Ask may be zero when the feed delivers bid-only quotes.
type Tick struct {
	Symbol    string    `json:"symbol"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask,omitempty"`
	Timestamp time.Time `json:"timestamp"` // UTC
}

// Mid returns the bid/ask midpoint, falling back to bid when ask is absent.
func (t *Tick) Mid() float64 {
	if t.Ask <= 0 {
		return t.Bid
	}
	return (t.Bid + t.Ask) / 2
}
