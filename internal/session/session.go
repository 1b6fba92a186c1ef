// Package session ties the market-data core together: it owns the
// series store and every derived per-symbol map, implements the feed
// dispatch handler, and drains a debounced dirty-symbol queue through
// the RSI → events → RFI pipeline plus the currency-strength
// aggregator. One Session exists per dashboard connection; everything
// is dependency-injected so multiple sessions (tests included) coexist.
package session

import (
	"log"
	"sort"
	"sync"
	"time"

	"fxpulse/internal/indicator"
	"fxpulse/internal/model"
	"fxpulse/internal/series"
	"fxpulse/internal/strength"
	"fxpulse/internal/symbol"
)

const (
	// RSIHistoryCap bounds per-symbol RSI history (FIFO eviction).
	RSIHistoryCap = 100
	// EventLogCap bounds the per-symbol RSI event log (FIFO eviction).
	EventLogCap = 20

	defaultRecomputeInterval = 250 * time.Millisecond
)

// Subscriber is the outbound feed surface the session drives
// (implemented by feed.Manager).
type Subscriber interface {
	Subscribe(symbol, timeframe string, dataTypes []string)
	Unsubscribe(symbol string)
}

// Watchlist is the persistence collaborator: saved symbols are
// re-subscribed automatically on every (re)connect.
type Watchlist interface {
	// Entries returns saved symbol → timeframe pairs. An empty
	// timeframe means "use the session default".
	Entries() (map[string]string, error)
}

// Broadcaster receives derived-data envelopes (gateway hub, Redis
// publisher). Implementations must not block.
type Broadcaster interface {
	BroadcastJSON(channel string, v interface{})
}

// Config tunes the session's indicator pipeline.
type Config struct {
	DefaultTimeframe  string
	RSIPeriod         int
	Thresholds        indicator.Thresholds
	Weights           indicator.RFIWeights
	Strength          strength.Config
	RecomputeInterval time.Duration
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeframe:  "1H",
		RSIPeriod:         indicator.DefaultRSIPeriod,
		Thresholds:        indicator.DefaultThresholds,
		Weights:           indicator.DefaultRFIWeights,
		Strength:          strength.DefaultConfig(),
		RecomputeInterval: defaultRecomputeInterval,
	}
}

func (c *Config) defaults() {
	if c.DefaultTimeframe == "" {
		c.DefaultTimeframe = "1H"
	}
	if c.RSIPeriod == 0 {
		c.RSIPeriod = indicator.DefaultRSIPeriod
	}
	if c.Thresholds == (indicator.Thresholds{}) {
		c.Thresholds = indicator.DefaultThresholds
	}
	if c.Weights == (indicator.RFIWeights{}) {
		c.Weights = indicator.DefaultRFIWeights
	}
	if c.Strength == (strength.Config{}) {
		c.Strength = strength.DefaultConfig()
	}
	if c.RecomputeInterval == 0 {
		c.RecomputeInterval = defaultRecomputeInterval
	}
}

// Session owns all per-symbol state for one dashboard connection.
type Session struct {
	cfg Config

	mu    sync.RWMutex
	store *series.Store

	connected    bool
	supportedTFs []string
	subs         map[string]model.Subscription
	initialData  map[string]bool

	rsiHist      map[string][]model.RSISample
	events       map[string][]model.RSIEvent
	rfi          map[string]model.RFIScore
	strengthSnap model.StrengthSnapshot

	dirty         map[string]struct{}
	strengthDirty bool

	feed      Subscriber
	watchlist Watchlist
	sinks     []Broadcaster

	// Optional metric hooks.
	OnRecompute func(d time.Duration)
	OnEvent     func(eventType string)
}

// NewSession creates a session with its own series store.
func NewSession(cfg Config) *Session {
	cfg.defaults()
	s := &Session{cfg: cfg, store: series.NewStore()}
	s.resetLocked()
	return s
}

// BindFeed injects the outbound feed surface (set once at wiring time).
func (s *Session) BindFeed(f Subscriber) { s.feed = f }

// BindWatchlist injects the persistence collaborator.
func (s *Session) BindWatchlist(w Watchlist) { s.watchlist = w }

// AddSink registers a derived-data broadcaster.
func (s *Session) AddSink(b Broadcaster) { s.sinks = append(s.sinks, b) }

// SubscribeSymbol normalizes user input and requests a feed
// subscription. Re-subscribing with a new timeframe changes the
// timeframe in place.
func (s *Session) SubscribeSymbol(input, timeframe string) string {
	feedSymbol := symbol.NormalizeForFeed(input)
	if timeframe == "" {
		timeframe = s.cfg.DefaultTimeframe
	}
	if s.feed != nil {
		s.feed.Subscribe(feedSymbol, timeframe, nil)
	}
	return feedSymbol
}

// UnsubscribeSymbol normalizes user input and requests an unsubscribe.
func (s *Session) UnsubscribeSymbol(input string) {
	if s.feed != nil {
		s.feed.Unsubscribe(symbol.NormalizeForFeed(input))
	}
}

// ─── feed.Handler ─────────────────────────────────────────────────────

// OnConnected records the broker's supported timeframes and
// re-subscribes every active subscription plus the saved watchlist.
func (s *Session) OnConnected(supportedTimeframes []string) {
	s.mu.Lock()
	s.connected = true
	s.supportedTFs = append([]string(nil), supportedTimeframes...)

	want := make(map[string]string, len(s.subs))
	for sym, sub := range s.subs {
		want[sym] = sub.Timeframe
	}
	s.mu.Unlock()

	if s.watchlist != nil {
		saved, err := s.watchlist.Entries()
		if err != nil {
			log.Printf("[session] watchlist load failed: %v", err)
		}
		for raw, tf := range saved {
			sym := symbol.NormalizeForFeed(raw)
			if _, ok := want[sym]; ok {
				continue
			}
			if tf == "" {
				tf = s.cfg.DefaultTimeframe
			}
			want[sym] = tf
		}
	}

	if s.feed == nil {
		return
	}
	for sym, tf := range want {
		s.feed.Subscribe(sym, tf, nil)
	}
}

// OnSubscribed registers (or re-times) the symbol's subscription. Only
// the timeframe is replaced on a timeframe change; series history keyed
// by the old timeframe survives until the symbol is evicted.
func (s *Session) OnSubscribed(sym, timeframe string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, exists := s.subs[sym]
	if !exists {
		sub = model.Subscription{
			Symbol:       sym,
			DataTypes:    []string{"ticks", "ohlc"},
			SubscribedAt: time.Now().UTC(),
		}
	}
	sub.Timeframe = timeframe
	s.subs[sym] = sub
	s.store.SetActiveTimeframe(sym, timeframe)
}

// OnUnsubscribed evicts every piece of state derived for the symbol:
// ticks, bars, RSI history, RFI, events.
func (s *Session) OnUnsubscribed(sym string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sym)
	delete(s.initialData, sym)
	delete(s.rsiHist, sym)
	delete(s.events, sym)
	delete(s.rfi, sym)
	delete(s.dirty, sym)
	s.store.Evict(sym)
}

// OnInitialOHLC bulk-loads the snapshot series and schedules the first
// recomputation for the symbol.
func (s *Session) OnInitialOHLC(sym, timeframe string, bars []model.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetBars(sym, timeframe, bars)
	if s.store.ActiveTimeframe(sym) == "" {
		s.store.SetActiveTimeframe(sym, timeframe)
	}
	s.initialData[sym] = true
	s.dirty[sym] = struct{}{}
	s.strengthDirty = true
}

// OnTicks appends quotes to the ring buffers. Ticks alone never trigger
// an RSI recompute, but in live mode they do re-trigger the strength
// aggregator.
func (s *Session) OnTicks(ticks []model.Tick) {
	s.mu.Lock()
	for _, t := range ticks {
		s.store.AppendTick(t)
	}
	if s.cfg.Strength.Mode == strength.ModeLive {
		s.strengthDirty = true
	}
	s.mu.Unlock()

	for _, t := range ticks {
		s.emit("tick:"+t.Symbol, t)
	}
}

// OnOHLCUpdate merges the bar per the series invariant and marks the
// symbol dirty for the next recompute drain.
func (s *Session) OnOHLCUpdate(bar model.Bar) {
	s.mu.Lock()
	s.store.ApplyBar(bar)
	s.dirty[bar.Symbol] = struct{}{}
	s.strengthDirty = true
	s.mu.Unlock()

	s.emit("bar:"+bar.Symbol, bar)
}

// OnFeedError only logs — broker errors never tear down local state.
func (s *Session) OnFeedError(code int, message string) {
	log.Printf("[session] feed error %d: %s", code, message)
}

// OnConnectionLost flags the session disconnected; all series and
// derived state survive for the next on-demand reconnect.
func (s *Session) OnConnectionLost(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// OnReset clears everything — the full reset demanded by an explicit
// disconnect.
func (s *Session) OnReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.connected = false
	s.supportedTFs = nil
	s.subs = make(map[string]model.Subscription)
	s.initialData = make(map[string]bool)
	s.rsiHist = make(map[string][]model.RSISample)
	s.events = make(map[string][]model.RSIEvent)
	s.rfi = make(map[string]model.RFIScore)
	s.strengthSnap = model.StrengthSnapshot{Scores: map[string]float64{}}
	s.dirty = make(map[string]struct{})
	s.strengthDirty = false
	s.store.Reset()
}

// emit fans an envelope out to every sink.
func (s *Session) emit(channel string, v interface{}) {
	for _, sink := range s.sinks {
		sink.BroadcastJSON(channel, v)
	}
}

// sortedSymbols returns the subscribed symbols in stable order.
func (s *Session) sortedSymbolsLocked() []string {
	out := make([]string, 0, len(s.subs))
	for sym := range s.subs {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
