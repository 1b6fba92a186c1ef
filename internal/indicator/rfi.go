package indicator

import (
	"math"
	"time"

	"fxpulse/internal/model"
)

// RFIWeights weights the three sub-flows of the composite score. The
// implementation does not normalize them — the caller controls the total.
type RFIWeights struct {
	RSI    float64
	Volume float64
	Price  float64
}

// DefaultRFIWeights is the empirical 40/30/30 split.
var DefaultRFIWeights = RFIWeights{RSI: 0.4, Volume: 0.3, Price: 0.3}

// volumeProxyScale converts price-change magnitude into the volume
// proxy when the feed carries no true volume. The constant is
// empirical; it is preserved verbatim for output parity.
const volumeProxyScale = 5.0

// rfiWindow is how many trailing samples each flow consumes.
const rfiWindow = 3

// VolumeProxy derives a volatility-based volume series from closes:
// proxy[i] = |close[i]−close[i−1]| × 5, with proxy[0] = 0.
func VolumeProxy(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		out[i] = math.Abs(closes[i]-closes[i-1]) * volumeProxyScale
	}
	return out
}

// ComputeRFI builds the composite RSI-Flow-Imbalance record from the
// last three RSI samples, closes and volume samples. Any failure mode —
// short windows, division by zero, non-finite flows — yields the
// neutral zero-score record instead of an error, so one bad symbol
// never blocks the batch.
func ComputeRFI(rsiValues, closes, volumes []float64, w RFIWeights, ts time.Time) model.RFIScore {
	if len(rsiValues) < rfiWindow || len(closes) < rfiWindow || len(volumes) < rfiWindow {
		return model.NeutralRFI(ts)
	}
	rsiValues = rsiValues[len(rsiValues)-rfiWindow:]
	closes = closes[len(closes)-rfiWindow:]
	volumes = volumes[len(volumes)-rfiWindow:]

	rawRSIFlow := sumDeltas(rsiValues) / 30.0
	rawVolumeFlow := sumRelativeDeltas(volumes) / 3.0

	priceChanges := relativeDeltas(closes)
	rawPriceFlow := sum(priceChanges)/3.0 + math.Min(0.5, variance(priceChanges)*10)

	// Division by a zero previous value yields ±Inf/NaN — fall back to
	// the neutral record before clamping can mask it.
	if !isFinite(rawRSIFlow) || !isFinite(rawVolumeFlow) || !isFinite(rawPriceFlow) {
		return model.NeutralRFI(ts)
	}

	rsiFlow := clamp(rawRSIFlow, -1, 1)
	volumeFlow := clamp(rawVolumeFlow, -1, 1)
	priceFlow := clamp(rawPriceFlow, -1, 1)
	score := clamp(w.RSI*rsiFlow+w.Volume*volumeFlow+w.Price*priceFlow, -1, 1)

	signal, strength := classify(score)
	return model.RFIScore{
		Score:      score,
		RSIFlow:    rsiFlow,
		VolumeFlow: volumeFlow,
		PriceFlow:  priceFlow,
		Signal:     signal,
		Strength:   strength,
		Timestamp:  ts,
	}
}

// classify maps a composite score to its discrete signal/strength pair.
func classify(score float64) (model.Signal, model.SignalStrength) {
	switch {
	case score > 0.6:
		if score > 0.8 {
			return model.SignalBullish, model.StrengthStrong
		}
		return model.SignalBullish, model.StrengthModerate
	case score < -0.6:
		if score < -0.8 {
			return model.SignalBearish, model.StrengthStrong
		}
		return model.SignalBearish, model.StrengthModerate
	default:
		return model.SignalNeutral, model.StrengthWeak
	}
}

func sumDeltas(vals []float64) float64 {
	var total float64
	for i := 1; i < len(vals); i++ {
		total += vals[i] - vals[i-1]
	}
	return total
}

func relativeDeltas(vals []float64) []float64 {
	out := make([]float64, 0, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		out = append(out, (vals[i]-vals[i-1])/vals[i-1])
	}
	return out
}

func sumRelativeDeltas(vals []float64) float64 {
	return sum(relativeDeltas(vals))
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}

func variance(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean := sum(vals) / float64(len(vals))
	var acc float64
	for _, v := range vals {
		d := v - mean
		acc += d * d
	}
	return acc / float64(len(vals))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
