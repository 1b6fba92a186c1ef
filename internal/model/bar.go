package model

import (
	"encoding/json"
	"time"
)

// Bar represents one OHLC candle for a symbol at a given timeframe.
// The bar whose Time matches the series' newest bar is the in-progress
// candle and is replaced in place on every update.
type Bar struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"` // e.g. "5M", "1H", "1D"
	Time      time.Time `json:"time"`      // bucket open time (UTC)
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
}

// Key returns "symbol:timeframe".
func (b *Bar) Key() string {
	return b.Symbol + ":" + b.Timeframe
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}

// Subscription tracks one active feed subscription. At most one exists
// per symbol; re-subscribing with a new timeframe replaces Timeframe in
// place while older series history stays keyed by the old timeframe.
type Subscription struct {
	Symbol       string    `json:"symbol"`
	Timeframe    string    `json:"timeframe"`
	DataTypes    []string  `json:"data_types"` // "ticks", "ohlc"
	SubscribedAt time.Time `json:"subscribed_at"`
}
