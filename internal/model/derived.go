package model

import "time"

// RSISample is one Wilder RSI computation result for a symbol.
type RSISample struct {
	Value     float64   `json:"value"` // 0–100
	Period    int       `json:"period"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType enumerates RSI threshold-crossing events.
type EventType string

const (
	EventCrossdown      EventType = "crossdown"       // fell to/below oversold
	EventCrossup        EventType = "crossup"         // rose to/above overbought
	EventExitOversold   EventType = "exit_oversold"   // recovered above oversold
	EventExitOverbought EventType = "exit_overbought" // dropped below overbought
)

// RSIEvent records a single threshold crossing derived from two
// consecutive RSI samples.
type RSIEvent struct {
	Type      EventType `json:"type"`
	RSI       float64   `json:"rsi"`
	Threshold float64   `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// Signal classifies the direction of an RFI score.
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

// SignalStrength classifies the magnitude of an RFI score.
type SignalStrength string

const (
	StrengthStrong   SignalStrength = "strong"
	StrengthModerate SignalStrength = "moderate"
	StrengthWeak     SignalStrength = "weak"
)

// RFIScore is the composite RSI-Flow-Imbalance sentiment record for a
// symbol. Recomputed wholesale on every trigger; only the current value
// is retained.
type RFIScore struct {
	Score      float64        `json:"score"` // [-1, 1]
	RSIFlow    float64        `json:"rsi_flow"`
	VolumeFlow float64        `json:"volume_flow"`
	PriceFlow  float64        `json:"price_flow"`
	Signal     Signal         `json:"signal"`
	Strength   SignalStrength `json:"strength"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NeutralRFI returns the fallback zero-score record used when a
// per-symbol computation fails or lacks data.
func NeutralRFI(ts time.Time) RFIScore {
	return RFIScore{
		Signal:    SignalNeutral,
		Strength:  StrengthWeak,
		Timestamp: ts,
	}
}

// StrengthSnapshot is a derived currency-code → strength map, replaced
// wholesale on every recomputation.
type StrengthSnapshot struct {
	Scores    map[string]float64 `json:"scores"` // e.g. {"USD": 63.2, ...}
	Timestamp time.Time          `json:"timestamp"`
}
