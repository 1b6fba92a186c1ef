// Package strength computes the cross-pair currency-strength map: every
// subscribed pair contributes its log return to its base currency (+r)
// and quote currency (−r); per-currency averages are scaled, clamped
// and then min-max normalized across contributing currencies only.
package strength

import (
	"math"

	"fxpulse/internal/symbol"
)

// Mode selects the price source for return computation.
type Mode string

const (
	// ModeLive uses the last two tick bids.
	ModeLive Mode = "live"
	// ModeClosed uses the last two closed bars' closes.
	ModeClosed Mode = "closed"
)

// Neutral is the strength reported for a currency with zero
// contributing pairs in a cycle.
const Neutral = 50.0

// Config tunes the aggregation. The two-stage clamp-then-normalize
// design keeps a single illiquid pair from distorting every currency's
// displayed strength.
type Config struct {
	Mode Mode

	// Scale converts an averaged log return into a strength delta
	// around Neutral before clamping.
	Scale float64

	// ClampMin/ClampMax bound the raw per-currency strength.
	ClampMin float64
	ClampMax float64

	// NormMin/NormMax is the wider band contributing currencies are
	// min-max normalized into.
	NormMin float64
	NormMax float64
}

// DefaultConfig mirrors the dashboard defaults: [20,80] clamp band
// widened to [10,90] after normalization.
func DefaultConfig() Config {
	return Config{
		Mode:     ModeClosed,
		Scale:    10000,
		ClampMin: 20,
		ClampMax: 80,
		NormMin:  10,
		NormMax:  90,
	}
}

// PriceSource supplies the current and previous price per symbol for
// each mode. The series store satisfies this interface.
type PriceSource interface {
	LastTwoBids(feedSymbol string) (cur, prev float64, ok bool)
	LastTwoClosedCloses(feedSymbol string) (cur, prev float64, ok bool)
}

// Compute rebuilds the full strength map from every subscribed pair.
// It is a wholesale recomputation by design — downstream consumers
// rely on full-recompute semantics for consistency.
func Compute(subscribed []string, src PriceSource, cfg Config) map[string]float64 {
	contributions := make(map[string][]float64, len(symbol.Majors))

	for _, feedSymbol := range subscribed {
		pair := symbol.ParsePair(feedSymbol)
		if pair == nil {
			continue
		}

		var cur, prev float64
		var ok bool
		if cfg.Mode == ModeLive {
			cur, prev, ok = src.LastTwoBids(feedSymbol)
		} else {
			cur, prev, ok = src.LastTwoClosedCloses(feedSymbol)
		}
		if !ok || cur <= 0 || prev <= 0 {
			continue
		}

		r := math.Log(cur / prev)
		contributions[pair.Base] = append(contributions[pair.Base], r)
		contributions[pair.Quote] = append(contributions[pair.Quote], -r)
	}

	scores := make(map[string]float64, len(symbol.Majors))
	var contributed []string
	minScore, maxScore := math.Inf(1), math.Inf(-1)

	for _, cur := range symbol.Majors {
		contribs := contributions[cur]
		if len(contribs) == 0 {
			scores[cur] = Neutral
			continue
		}
		var total float64
		for _, r := range contribs {
			total += r
		}
		avg := total / float64(len(contribs))

		raw := clamp(Neutral+avg*cfg.Scale, cfg.ClampMin, cfg.ClampMax)
		scores[cur] = raw
		contributed = append(contributed, cur)
		if raw < minScore {
			minScore = raw
		}
		if raw > maxScore {
			maxScore = raw
		}
	}

	// Min-max normalize contributing currencies into the wider band;
	// currencies without data stay pinned at Neutral.
	if len(contributed) > 1 && maxScore > minScore {
		span := maxScore - minScore
		for _, cur := range contributed {
			scores[cur] = cfg.NormMin + (scores[cur]-minScore)/span*(cfg.NormMax-cfg.NormMin)
		}
	}

	return scores
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
