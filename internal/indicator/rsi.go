// Package indicator implements the derived-analytics math of the
// dashboard: Wilder RSI over closed candles, RSI threshold-crossing
// event detection, and the composite RSI-Flow-Imbalance score.
package indicator

import (
	"fxpulse/internal/model"
)

// DefaultRSIPeriod is the classic Wilder lookback.
const DefaultRSIPeriod = 14

// WilderRSI computes Wilder's smoothed RSI over a close-price sequence.
// The first period deltas seed the averages with an SMA; every later
// delta applies the recursive smoothing
//
//	avgGain = (prevAvgGain*(period-1) + gain) / period
//
// Returns ok=false when fewer than period+1 closes are available —
// callers must treat that as "RSI unavailable", never as zero.
func WilderRSI(closes []float64, period int) (float64, bool) {
	if period <= 0 || len(closes) < period+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss += -delta
		}
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100.0, true
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs)), true
}

// RSIFromBars computes RSI over closed candles only: when the series
// holds more than period+1 bars the newest (possibly still-forming) bar
// is dropped before computing, so RSI never reflects a partial candle.
func RSIFromBars(bars []model.Bar, period int) (float64, bool) {
	if len(bars) < period+1 {
		return 0, false
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	if len(closes) > period+1 {
		closes = closes[:len(closes)-1]
	}
	return WilderRSI(closes, period)
}
