package session

import (
	"context"
	"math"
	"time"

	"fxpulse/internal/indicator"
	"fxpulse/internal/model"
	"fxpulse/internal/strength"
)

// Run drains the dirty-symbol queue on a fixed cadence until the
// context is cancelled. A bar that updates ten times between drains is
// recomputed once.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RecomputeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.DrainOnce()
		}
	}
}

// outbound is a broadcast staged while the lock is held and emitted
// after release so a slow sink can never stall the pipeline.
type outbound struct {
	channel string
	payload interface{}
}

// DrainOnce runs one recomputation pass: every dirty symbol goes
// through RSI → threshold events → RFI, then the strength aggregator
// runs once if anything touched prices. Returns the number of symbols
// recomputed.
func (s *Session) DrainOnce() int {
	start := time.Now()

	s.mu.Lock()
	if len(s.dirty) == 0 && !s.strengthDirty {
		s.mu.Unlock()
		return 0
	}

	syms := make([]string, 0, len(s.dirty))
	for sym := range s.dirty {
		syms = append(syms, sym)
	}
	s.dirty = make(map[string]struct{})
	runStrength := s.strengthDirty
	s.strengthDirty = false

	var out []outbound
	var firedTypes []string
	for _, sym := range syms {
		out = append(out, s.recomputeSymbolLocked(sym, &firedTypes)...)
	}

	if runStrength {
		snap := model.StrengthSnapshot{
			Scores:    strength.Compute(s.sortedSymbolsLocked(), s.store, s.cfg.Strength),
			Timestamp: time.Now().UTC(),
		}
		s.strengthSnap = snap
		out = append(out, outbound{"strength", snap})
	}
	s.mu.Unlock()

	for _, o := range out {
		s.emit(o.channel, o.payload)
	}
	if s.OnEvent != nil {
		for _, et := range firedTypes {
			s.OnEvent(et)
		}
	}
	if s.OnRecompute != nil {
		s.OnRecompute(time.Since(start))
	}
	return len(syms)
}

// recomputeSymbolLocked recalculates RSI, detects threshold events and
// rebuilds the RFI composite for one symbol. Derived maps are replaced,
// never mutated, so concurrent readers always see a complete value.
func (s *Session) recomputeSymbolLocked(sym string, firedTypes *[]string) []outbound {
	tf := s.store.ActiveTimeframe(sym)
	bars := s.store.BarsFor(sym, tf)

	val, ok := indicator.RSIFromBars(bars, s.cfg.RSIPeriod)
	if !ok {
		// Not enough closed candles yet; RSI stays unavailable and no
		// sample is recorded.
		return nil
	}
	now := time.Now().UTC()
	sample := model.RSISample{Value: val, Period: s.cfg.RSIPeriod, Timestamp: now}

	hist := s.rsiHist[sym]
	var fired []model.RSIEvent
	if n := len(hist); n > 0 {
		fired = indicator.DetectEvents(hist[n-1], sample, s.cfg.Thresholds)
	}
	hist = append(hist, sample)
	if len(hist) > RSIHistoryCap {
		hist = hist[len(hist)-RSIHistoryCap:]
	}
	s.rsiHist[sym] = hist

	out := []outbound{{"rsi:" + sym, sample}}

	if len(fired) > 0 {
		evLog := append(s.events[sym], fired...)
		if len(evLog) > EventLogCap {
			evLog = evLog[len(evLog)-EventLogCap:]
		}
		s.events[sym] = evLog
		for _, ev := range fired {
			*firedTypes = append(*firedTypes, string(ev.Type))
			out = append(out, outbound{"events:" + sym, ev})
		}
	}

	// The RFI composite reads the same closed-candle close sequence the
	// RSI saw: the newest (forming) bar is excluded.
	closes := closedCloses(bars)
	score := indicator.ComputeRFI(
		lastRSIValues(hist, 3),
		tailFloats(closes, 3),
		tailFloats(indicator.VolumeProxy(closes), 3),
		s.cfg.Weights,
		now,
	)
	s.rfi[sym] = score
	out = append(out, outbound{"rfi:" + sym, score})

	return out
}

func closedCloses(bars []model.Bar) []float64 {
	n := len(bars)
	if n > 1 {
		n-- // drop the in-progress candle
	}
	closes := make([]float64, 0, n)
	for _, b := range bars[:n] {
		if !math.IsNaN(b.Close) {
			closes = append(closes, b.Close)
		}
	}
	return closes
}

func lastRSIValues(hist []model.RSISample, n int) []float64 {
	if len(hist) > n {
		hist = hist[len(hist)-n:]
	}
	vals := make([]float64, len(hist))
	for i, s := range hist {
		vals[i] = s.Value
	}
	return vals
}

func tailFloats(v []float64, n int) []float64 {
	if len(v) > n {
		return v[len(v)-n:]
	}
	return v
}
