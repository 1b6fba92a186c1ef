package session

import (
	"sort"
	"time"

	"fxpulse/internal/model"
)

// Query facade. Every accessor takes the read lock and returns copies;
// callers never observe a partially recomputed value because derived
// maps are replaced wholesale under the write lock.

// Connected reports whether the feed link is currently up.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SupportedTimeframes returns the timeframe list announced by the feed
// on connect, or nil before the first connect.
func (s *Session) SupportedTimeframes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.supportedTFs...)
}

// Subscriptions lists active subscriptions sorted by symbol.
func (s *Session) Subscriptions() []model.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Subscription, 0, len(s.subs))
	for _, sym := range s.sortedSymbolsLocked() {
		out = append(out, s.subs[sym])
	}
	return out
}

// HasInitialData reports whether the snapshot series for the symbol has
// arrived since subscribing.
func (s *Session) HasInitialData(sym string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialData[sym]
}

// LatestTick returns the most recent quote for the symbol.
func (s *Session) LatestTick(sym string) (model.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.LatestTick(sym)
}

// Ticks returns the retained quotes for the symbol, newest first.
func (s *Session) Ticks(sym string) []model.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Ticks(sym)
}

// LatestBar returns the newest (possibly still forming) candle on the
// given timeframe.
func (s *Session) LatestBar(sym, timeframe string) (model.Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.LatestBar(sym, timeframe)
}

// Bars returns the retained candle series, oldest first.
func (s *Session) Bars(sym, timeframe string) []model.Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.BarsFor(sym, timeframe)
}

// RSIValue returns the latest RSI sample. ok is false while fewer than
// period+1 closed candles exist.
func (s *Session) RSIValue(sym string) (model.RSISample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.rsiHist[sym]
	if len(hist) == 0 {
		return model.RSISample{}, false
	}
	return hist[len(hist)-1], true
}

// RSIHistory returns up to the last n RSI samples, oldest first. n <= 0
// returns the full retained history.
func (s *Session) RSIHistory(sym string, n int) []model.RSISample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hist := s.rsiHist[sym]
	if n > 0 && len(hist) > n {
		hist = hist[len(hist)-n:]
	}
	return append([]model.RSISample(nil), hist...)
}

// RFIValue returns the current composite score for the symbol.
func (s *Session) RFIValue(sym string) (model.RFIScore, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.rfi[sym]
	return score, ok
}

// RecentEvents returns the retained threshold events for the symbol,
// oldest first.
func (s *Session) RecentEvents(sym string) []model.RSIEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.RSIEvent(nil), s.events[sym]...)
}

// OversoldPairs lists subscribed symbols whose latest RSI is at or
// below the oversold threshold, sorted.
func (s *Session) OversoldPairs() []string {
	return s.filterByRSI(func(v float64) bool { return v <= s.cfg.Thresholds.Oversold })
}

// OverboughtPairs lists subscribed symbols whose latest RSI is at or
// above the overbought threshold, sorted.
func (s *Session) OverboughtPairs() []string {
	return s.filterByRSI(func(v float64) bool { return v >= s.cfg.Thresholds.Overbought })
}

func (s *Session) filterByRSI(keep func(float64) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for sym, hist := range s.rsiHist {
		if len(hist) == 0 {
			continue
		}
		if keep(hist[len(hist)-1].Value) {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out
}

// DailyChangePercent returns the percent move from the daily open, or 0
// when either side is unavailable.
func (s *Session) DailyChangePercent(sym string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.DailyChangePercent(sym)
}

// CurrencyStrength returns a copy of the latest strength snapshot.
func (s *Session) CurrencyStrength() model.StrengthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scores := make(map[string]float64, len(s.strengthSnap.Scores))
	for k, v := range s.strengthSnap.Scores {
		scores[k] = v
	}
	return model.StrengthSnapshot{Scores: scores, Timestamp: s.strengthSnap.Timestamp}
}

// Overview is the dashboard summary row for one subscribed symbol.
type Overview struct {
	Symbol       string           `json:"symbol"`
	Timeframe    string           `json:"timeframe"`
	LastTick     *model.Tick      `json:"last_tick,omitempty"`
	RSI          *model.RSISample `json:"rsi,omitempty"`
	RFI          *model.RFIScore  `json:"rfi,omitempty"`
	DailyChange  float64          `json:"daily_change_pct"`
	EventCount   int              `json:"event_count"`
	SubscribedAt time.Time        `json:"subscribed_at"`
}

// Snapshot assembles one overview row per subscription, sorted by
// symbol. It is what the gateway sends a freshly attached client.
func (s *Session) Snapshot() []Overview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Overview, 0, len(s.subs))
	for _, sym := range s.sortedSymbolsLocked() {
		sub := s.subs[sym]
		row := Overview{
			Symbol:       sym,
			Timeframe:    sub.Timeframe,
			DailyChange:  s.store.DailyChangePercent(sym),
			EventCount:   len(s.events[sym]),
			SubscribedAt: sub.SubscribedAt,
		}
		if tick, ok := s.store.LatestTick(sym); ok {
			t := tick
			row.LastTick = &t
		}
		if hist := s.rsiHist[sym]; len(hist) > 0 {
			r := hist[len(hist)-1]
			row.RSI = &r
		}
		if score, ok := s.rfi[sym]; ok {
			f := score
			row.RFI = &f
		}
		out = append(out, row)
	}
	return out
}
