package feed

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fxpulse/internal/model"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	defaultHandshakeTimeout  = 10 * time.Second
	defaultWriteTimeout      = 5 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
)

// Handler receives dispatched feed events. The session implements it.
type Handler interface {
	OnConnected(supportedTimeframes []string)
	OnSubscribed(symbol, timeframe string)
	OnUnsubscribed(symbol string)
	OnInitialOHLC(symbol, timeframe string, bars []model.Bar)
	OnTicks(ticks []model.Tick)
	OnOHLCUpdate(bar model.Bar)
	OnFeedError(code int, message string)
	// OnConnectionLost flags the session disconnected after a socket
	// close/error. Reconnection is the caller's decision.
	OnConnectionLost(err error)
	// OnReset clears all session state after an explicit disconnect.
	OnReset()
}

// Config configures the feed connection.
type Config struct {
	URL string

	// APIKey and AuthCode (a fresh TOTP code) are sent as dial headers.
	APIKey   string
	AuthCode string

	// AuthCodeFunc, when set, supplies the auth code at dial time and
	// overrides AuthCode. TOTP codes expire every 30 seconds, so a
	// reconnect must not reuse the code from the previous dial.
	AuthCodeFunc func() string

	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
}

func (c *Config) defaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
}

// pendingSub is a subscribe request queued while disconnected, flushed
// in order when the socket opens.
type pendingSub struct {
	symbol    string
	timeframe string
	dataTypes []string
}

// Manager owns the one streaming socket of a dashboard session. It
// never retries on its own — reconnect-on-demand is the caller's policy.
type Manager struct {
	cfg     Config
	handler Handler

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	pending []pendingSub
	done    chan struct{} // closed when the current connection's loops must stop

	// Optional metric hooks.
	OnFrame     func(kind string)
	OnMalformed func()
}

// NewManager creates a Manager. The handler must be non-nil.
func NewManager(cfg Config, handler Handler) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, handler: handler}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials the feed. No-op when already connecting or connected.
// On open it flushes every subscription queued while disconnected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		log.Printf("[feed] connect ignored: state=%s", m.state)
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	header := http.Header{}
	if m.cfg.APIKey != "" {
		header.Set("X-API-Key", m.cfg.APIKey)
	}
	authCode := m.cfg.AuthCode
	if m.cfg.AuthCodeFunc != nil {
		authCode = m.cfg.AuthCodeFunc()
	}
	if authCode != "" {
		header.Set("X-Auth-Code", authCode)
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, m.cfg.URL, header)
	if err != nil {
		m.mu.Lock()
		m.state = StateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("feed dial %s: %w", m.cfg.URL, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnected
	m.done = make(chan struct{})
	flush := m.pending
	m.pending = nil
	done := m.done
	m.mu.Unlock()

	log.Printf("[feed] connected to %s", m.cfg.URL)

	for _, p := range flush {
		if err := m.sendSubscribe(p.symbol, p.timeframe, p.dataTypes); err != nil {
			log.Printf("[feed] flush subscribe %s failed: %v", p.symbol, err)
		}
	}

	go m.readLoop(conn, done)
	go m.heartbeatLoop(done)
	return nil
}

// Disconnect closes the socket and resets all session state — a full
// reset, not partial. Safe to call when already disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.pending = nil
	wasConnected := m.state == StateConnected
	m.state = StateDisconnected
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	m.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	if wasConnected {
		log.Println("[feed] disconnected")
	}
	m.handler.OnReset()
}

// Subscribe requests tick + OHLC streaming for a symbol. While
// disconnected the request is queued and flushed on the next connect.
// Re-subscribing with a different timeframe is the supported
// "change timeframe" operation.
func (m *Manager) Subscribe(symbol, timeframe string, dataTypes []string) {
	if len(dataTypes) == 0 {
		dataTypes = []string{"ticks", "ohlc"}
	}

	m.mu.Lock()
	if m.state != StateConnected {
		log.Printf("[feed] not connected — queueing subscribe %s %s", symbol, timeframe)
		m.pending = append(m.pending, pendingSub{symbol: symbol, timeframe: timeframe, dataTypes: dataTypes})
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.sendSubscribe(symbol, timeframe, dataTypes); err != nil {
		log.Printf("[feed] subscribe %s failed: %v", symbol, err)
	}
}

// Unsubscribe stops streaming for a symbol. Logged no-op when the
// socket is not ready to send.
func (m *Manager) Unsubscribe(symbol string) {
	m.mu.Lock()
	if m.state != StateConnected {
		// Drop any queued subscribe for the symbol as well.
		kept := m.pending[:0]
		for _, p := range m.pending {
			if p.symbol != symbol {
				kept = append(kept, p)
			}
		}
		m.pending = kept
		m.mu.Unlock()
		log.Printf("[feed] not connected — unsubscribe %s ignored", symbol)
		return
	}
	m.mu.Unlock()

	if err := m.send(unsubscribeRequest{Action: "unsubscribe", Symbol: symbol}); err != nil {
		log.Printf("[feed] unsubscribe %s failed: %v", symbol, err)
	}
}

// PendingCount reports queued subscribe requests (visible for tests).
func (m *Manager) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manager) sendSubscribe(symbol, timeframe string, dataTypes []string) error {
	return m.send(subscribeRequest{
		Action:    "subscribe",
		Symbol:    symbol,
		Timeframe: timeframe,
		DataTypes: dataTypes,
	})
}

func (m *Manager) send(v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return fmt.Errorf("no connection")
	}
	m.conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return m.conn.WriteJSON(v)
}

// readLoop reads and dispatches inbound frames until the socket dies.
// A single malformed frame is logged and skipped — it must never crash
// the loop or leak into other symbols' state.
func (m *Manager) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				return // deliberate disconnect, already handled
			default:
			}
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
				m.state = StateDisconnected
				if m.done != nil {
					close(m.done)
					m.done = nil
				}
			}
			m.mu.Unlock()
			log.Printf("[feed] connection lost: %v", err)
			m.handler.OnConnectionLost(err)
			return
		}

		frame, err := DecodeFrame(raw)
		if err != nil {
			log.Printf("[feed] dropping malformed frame: %v", err)
			if m.OnMalformed != nil {
				m.OnMalformed()
			}
			continue
		}
		if m.OnFrame != nil {
			m.OnFrame(frame.Kind.String())
		}
		m.dispatch(frame)
	}
}

// dispatch routes one decoded frame to the handler. The switch is
// exhaustive over Kind; a recover guard keeps a handler panic on one
// message from killing the read loop.
func (m *Manager) dispatch(frame Frame) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[feed] handler panic on %s frame: %v", frame.Kind, r)
		}
	}()

	switch frame.Kind {
	case KindConnected:
		m.handler.OnConnected(frame.Connected.Timeframes)
	case KindSubscribed:
		m.handler.OnSubscribed(frame.Subscribed.Symbol, frame.Subscribed.Timeframe)
	case KindUnsubscribed:
		m.handler.OnUnsubscribed(frame.Unsubscribed.Symbol)
	case KindInitialOHLC:
		p := frame.InitialOHLC
		bars := make([]model.Bar, len(p.Bars))
		for i, wb := range p.Bars {
			bars[i] = wb.Bar(p.Symbol, p.Timeframe)
		}
		m.handler.OnInitialOHLC(p.Symbol, p.Timeframe, bars)
	case KindTicks:
		ticks := make([]model.Tick, 0, len(frame.Ticks.Ticks))
		for _, wt := range frame.Ticks.Ticks {
			if wt.Symbol == "" {
				continue
			}
			ticks = append(ticks, wt.Tick())
		}
		if len(ticks) > 0 {
			m.handler.OnTicks(ticks)
		}
	case KindOHLCUpdate:
		p := frame.OHLCUpdate
		m.handler.OnOHLCUpdate(p.Bar.Bar(p.Symbol, p.Timeframe))
	case KindPong:
		log.Println("[feed] pong")
	case KindError:
		log.Printf("[feed] broker error %d: %s", frame.Err.Code, frame.Err.Message)
		m.handler.OnFeedError(frame.Err.Code, frame.Err.Message)
	default:
		log.Printf("[feed] unhandled frame kind %d", frame.Kind)
	}
}

// heartbeatLoop pings the broker on a fixed interval while connected.
func (m *Manager) heartbeatLoop(done chan struct{}) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := m.send(pingRequest{Action: "ping"}); err != nil {
				log.Printf("[feed] heartbeat failed: %v", err)
				return
			}
		}
	}
}
