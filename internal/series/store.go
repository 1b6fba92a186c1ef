// Package series owns the bounded in-memory tick and bar buffers for
// every subscribed symbol. The store is not goroutine-safe on its own;
// the session serializes all writes and guards reads.
package series

import (
	"time"

	"fxpulse/internal/model"
)

const (
	// TickCap bounds the per-symbol tick ring (newest first).
	TickCap = 50
	// BarCap bounds each (symbol, timeframe) bar series (oldest first).
	BarCap = 100
)

// DailyTimeframe is the timeframe preferred by DailyOpen when present.
const DailyTimeframe = "1D"

// Store holds raw market data series per symbol.
type Store struct {
	ticks    map[string][]model.Tick           // newest first
	bars     map[string]map[string][]model.Bar // symbol → timeframe → bars, oldest first
	activeTF map[string]string                 // symbol → current/default timeframe view
}

// NewStore creates an empty series store.
func NewStore() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Reset drops every buffer — used on disconnect (full reset, not partial).
func (s *Store) Reset() {
	s.ticks = make(map[string][]model.Tick)
	s.bars = make(map[string]map[string][]model.Bar)
	s.activeTF = make(map[string]string)
}

// Evict removes all series held for one symbol across every timeframe.
func (s *Store) Evict(symbol string) {
	delete(s.ticks, symbol)
	delete(s.bars, symbol)
	delete(s.activeTF, symbol)
}

// SetActiveTimeframe records the timeframe the symbol is currently
// subscribed on. Series keyed by a previous timeframe are kept until
// the symbol is evicted.
func (s *Store) SetActiveTimeframe(symbol, timeframe string) {
	s.activeTF[symbol] = timeframe
}

// ActiveTimeframe returns the symbol's current timeframe view ("" if unknown).
func (s *Store) ActiveTimeframe(symbol string) string {
	return s.activeTF[symbol]
}

// AppendTick pushes a tick onto the front of the symbol's ring,
// evicting the oldest entry past capacity.
func (s *Store) AppendTick(tick model.Tick) {
	ring := s.ticks[tick.Symbol]
	ring = append([]model.Tick{tick}, ring...)
	if len(ring) > TickCap {
		ring = ring[:TickCap]
	}
	s.ticks[tick.Symbol] = ring
}

// SetBars bulk-loads a snapshot series, trimming to capacity from the front.
func (s *Store) SetBars(symbol, timeframe string, bars []model.Bar) {
	if len(bars) > BarCap {
		bars = bars[len(bars)-BarCap:]
	}
	byTF := s.bars[symbol]
	if byTF == nil {
		byTF = make(map[string][]model.Bar)
		s.bars[symbol] = byTF
	}
	byTF[timeframe] = append([]model.Bar(nil), bars...)
}

// ApplyBar merges a bar update into its series: a bar with the same
// time as the series' last bar replaces it (in-progress candle update),
// a newer time appends and trims the front past capacity. Returns true
// when the bar was appended rather than merged.
func (s *Store) ApplyBar(bar model.Bar) bool {
	byTF := s.bars[bar.Symbol]
	if byTF == nil {
		byTF = make(map[string][]model.Bar)
		s.bars[bar.Symbol] = byTF
	}
	seriesBars := byTF[bar.Timeframe]

	if n := len(seriesBars); n > 0 && seriesBars[n-1].Time.Equal(bar.Time) {
		seriesBars[n-1] = bar
		byTF[bar.Timeframe] = seriesBars
		return false
	}

	seriesBars = append(seriesBars, bar)
	if len(seriesBars) > BarCap {
		seriesBars = seriesBars[len(seriesBars)-BarCap:]
	}
	byTF[bar.Timeframe] = seriesBars
	return true
}

// LatestTick returns the newest tick for the symbol.
func (s *Store) LatestTick(symbol string) (model.Tick, bool) {
	ring := s.ticks[symbol]
	if len(ring) == 0 {
		return model.Tick{}, false
	}
	return ring[0], true
}

// Ticks returns a copy of the symbol's tick ring, newest first.
func (s *Store) Ticks(symbol string) []model.Tick {
	return append([]model.Tick(nil), s.ticks[symbol]...)
}

// LastTwoBids returns the two most recent tick bids (current, previous).
func (s *Store) LastTwoBids(symbol string) (cur, prev float64, ok bool) {
	ring := s.ticks[symbol]
	if len(ring) < 2 {
		return 0, 0, false
	}
	return ring[0].Bid, ring[1].Bid, true
}

// BarsFor returns a copy of the (symbol, timeframe) series, oldest
// first. An empty timeframe selects the symbol's active timeframe.
func (s *Store) BarsFor(symbol, timeframe string) []model.Bar {
	if timeframe == "" {
		timeframe = s.activeTF[symbol]
	}
	byTF := s.bars[symbol]
	if byTF == nil {
		return nil
	}
	return append([]model.Bar(nil), byTF[timeframe]...)
}

// LatestBar returns the newest bar for the symbol on the given
// timeframe ("" = active timeframe).
func (s *Store) LatestBar(symbol, timeframe string) (model.Bar, bool) {
	if timeframe == "" {
		timeframe = s.activeTF[symbol]
	}
	byTF := s.bars[symbol]
	if byTF == nil {
		return model.Bar{}, false
	}
	seriesBars := byTF[timeframe]
	if len(seriesBars) == 0 {
		return model.Bar{}, false
	}
	return seriesBars[len(seriesBars)-1], true
}

// LastTwoClosedCloses returns the closes of the two most recent closed
// bars on the active timeframe, treating the newest bar as in-progress.
func (s *Store) LastTwoClosedCloses(symbol string) (cur, prev float64, ok bool) {
	seriesBars := s.bars[symbol][s.activeTF[symbol]]
	if len(seriesBars) < 3 {
		return 0, 0, false
	}
	n := len(seriesBars)
	return seriesBars[n-2].Close, seriesBars[n-3].Close, true
}

// DailyOpen resolves today's opening price for a symbol. It prefers an
// explicit daily series, then scans the active timeframe for the first
// bar at/after local midnight, then falls back to the latest bar's open.
func (s *Store) DailyOpen(symbol string) (float64, bool) {
	byTF := s.bars[symbol]
	if byTF == nil {
		return 0, false
	}

	if daily := byTF[DailyTimeframe]; len(daily) > 0 {
		return daily[len(daily)-1].Open, true
	}

	active := byTF[s.activeTF[symbol]]
	if len(active) == 0 {
		return 0, false
	}

	midnight := localMidnight(time.Now())
	for _, b := range active {
		if !b.Time.Before(midnight) {
			return b.Open, true
		}
	}
	return active[len(active)-1].Open, true
}

// CurrentPrice returns the freshest price available: latest tick bid,
// falling back to the latest active-timeframe bar close.
func (s *Store) CurrentPrice(symbol string) (float64, bool) {
	if tick, ok := s.LatestTick(symbol); ok {
		return tick.Bid, true
	}
	if bar, ok := s.LatestBar(symbol, ""); ok {
		return bar.Close, true
	}
	return 0, false
}

// DailyChangePercent returns (current − dailyOpen) / dailyOpen × 100,
// or 0 whenever an input is unavailable.
func (s *Store) DailyChangePercent(symbol string) float64 {
	open, ok := s.DailyOpen(symbol)
	if !ok || open == 0 {
		return 0
	}
	cur, ok := s.CurrentPrice(symbol)
	if !ok {
		return 0
	}
	return (cur - open) / open * 100
}

func localMidnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}
