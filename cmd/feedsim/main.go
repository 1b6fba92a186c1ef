// cmd/feedsim — Demo WebSocket feed server.
// Speaks the broker streaming protocol (connected / subscribed /
// initial_ohlc / ticks / ohlc_update / pong) with random-walk prices,
// so fxpulsed runs without real broker credentials.
//
// Config (env vars):
//
//	FEEDSIM_ADDR        — listen address (default: ":9001")
//	FEEDSIM_TICK_MS     — tick batch interval milliseconds (default: "200")
//	FEEDSIM_BAR_SECONDS — seconds per simulated candle (default: "10")
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var supportedTimeframes = []string{"1M", "5M", "15M", "30M", "1H", "4H", "1D"}

const initialHistoryBars = 100

// startPrices seeds the random walk per symbol; unknown symbols start
// at 1.0.
var startPrices = map[string]float64{
	"EURUSDm":  1.0850,
	"GBPUSDm":  1.2700,
	"USDJPYm":  155.20,
	"USDCHFm":  0.8850,
	"AUDUSDm":  0.6550,
	"USDCADm":  1.3650,
	"NZDUSDm":  0.5980,
	"EURGBPm":  0.8540,
	"XAUUSDm":  2395.00,
	"BTCUSDTm": 64250.0,
}

// ─── Simulation state ─────────────────────────────────────────────────

// series is one subscribed symbol's simulation state.
type series struct {
	symbol    string
	timeframe string
	price     float64
	forming   wireBar
}

type wireBar struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

type wireTick struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	TS     int64   `json:"ts"`
}

// walk applies a ±0.05% step.
func (s *series) walk(rng *rand.Rand) {
	pct := (rng.Float64() - 0.5) / 1000.0
	s.price += s.price * pct
	if s.price <= 0 {
		s.price = 0.0001
	}
}

// history generates a random-walk candle snapshot ending at the current
// price, oldest first.
func (s *series) history(rng *rand.Rand, n int, step time.Duration) []wireBar {
	bars := make([]wireBar, n)
	price := s.price
	end := time.Now().UTC().Truncate(step)
	for i := n - 1; i >= 0; i-- {
		open := price * (1 + (rng.Float64()-0.5)/500.0)
		high := open
		low := open
		if price > open {
			high = price
		} else {
			low = price
		}
		bars[i] = wireBar{
			Time:  end.Add(-time.Duration(n-1-i) * step).Unix(),
			Open:  open,
			High:  high * (1 + rng.Float64()/2000.0),
			Low:   low * (1 - rng.Float64()/2000.0),
			Close: price,
		}
		price = open
	}
	return bars
}

// ─── Per-connection session ───────────────────────────────────────────

type client struct {
	conn *websocket.Conn
	rng  *rand.Rand

	mu   sync.Mutex
	subs map[string]*series
}

func (c *client) send(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

func (c *client) sendError(code int, msg string) {
	c.send(map[string]interface{}{"type": "error", "code": code, "message": msg})
}

func (c *client) handleSubscribe(symbol, timeframe string, barStep time.Duration) {
	if symbol == "" {
		c.sendError(400, "symbol is required")
		return
	}
	if timeframe == "" {
		timeframe = "1H"
	}

	start := startPrices[symbol]
	if start == 0 {
		start = 1.0
	}
	s := &series{symbol: symbol, timeframe: timeframe, price: start}
	bars := s.history(c.rng, initialHistoryBars, barStep)
	last := bars[len(bars)-1]
	s.forming = wireBar{Time: last.Time, Open: last.Close, High: last.Close, Low: last.Close, Close: last.Close}

	c.mu.Lock()
	c.subs[symbol] = s
	c.mu.Unlock()

	c.send(map[string]interface{}{"type": "subscribed", "symbol": symbol, "timeframe": timeframe})
	c.send(map[string]interface{}{
		"type":      "initial_ohlc",
		"symbol":    symbol,
		"timeframe": timeframe,
		"bars":      bars,
	})
	log.Printf("[feedsim] subscribed %s %s", symbol, timeframe)
}

func (c *client) handleUnsubscribe(symbol string) {
	c.mu.Lock()
	_, ok := c.subs[symbol]
	delete(c.subs, symbol)
	c.mu.Unlock()
	if ok {
		c.send(map[string]interface{}{"type": "unsubscribed", "symbol": symbol})
		log.Printf("[feedsim] unsubscribed %s", symbol)
	}
}

// pump walks every subscribed symbol, emitting one ticks batch plus an
// ohlc_update per symbol. Candles roll over every barStep.
func (c *client) pump(tickInterval, barStep time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		now := time.Now().UTC()
		var ticks []wireTick
		type update struct {
			symbol, timeframe string
			bar               wireBar
		}
		var updates []update

		for _, s := range c.subs {
			s.walk(c.rng)
			spread := s.price / 20000.0
			ticks = append(ticks, wireTick{
				Symbol: s.symbol,
				Bid:    s.price,
				Ask:    s.price + spread,
				TS:     now.UnixMilli(),
			})

			bucket := now.Truncate(barStep).Unix()
			if bucket != s.forming.Time {
				s.forming = wireBar{Time: bucket, Open: s.price, High: s.price, Low: s.price, Close: s.price}
			} else {
				if s.price > s.forming.High {
					s.forming.High = s.price
				}
				if s.price < s.forming.Low {
					s.forming.Low = s.price
				}
				s.forming.Close = s.price
			}
			updates = append(updates, update{s.symbol, s.timeframe, s.forming})
		}
		c.mu.Unlock()

		if len(ticks) > 0 {
			c.send(map[string]interface{}{"type": "ticks", "ticks": ticks})
		}
		for _, u := range updates {
			c.send(map[string]interface{}{
				"type":      "ohlc_update",
				"symbol":    u.symbol,
				"timeframe": u.timeframe,
				"bar":       u.bar,
			})
		}
	}
}

// ─── WebSocket handler ────────────────────────────────────────────────

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func wsHandler(tickInterval, barStep time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("[feedsim] upgrade error: %v", err)
			return
		}
		log.Printf("[feedsim] client connected: %s", r.RemoteAddr)

		c := &client{
			conn: conn,
			rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
			subs: make(map[string]*series),
		}
		c.send(map[string]interface{}{"type": "connected", "timeframes": supportedTimeframes})

		done := make(chan struct{})
		go c.pump(tickInterval, barStep, done)

		defer func() {
			close(done)
			conn.Close()
			log.Printf("[feedsim] client disconnected: %s", r.RemoteAddr)
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				Action    string `json:"action"`
				Symbol    string `json:"symbol"`
				Timeframe string `json:"timeframe"`
			}
			if err := json.Unmarshal(msg, &req); err != nil {
				c.sendError(400, "malformed request")
				continue
			}
			switch req.Action {
			case "subscribe":
				c.handleSubscribe(req.Symbol, req.Timeframe, barStep)
			case "unsubscribe":
				c.handleUnsubscribe(req.Symbol)
			case "ping":
				c.send(map[string]interface{}{"type": "pong"})
			default:
				c.sendError(400, "unknown action "+req.Action)
			}
		}
	}
}

// ─── main ─────────────────────────────────────────────────────────────

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[feedsim] starting demo feed server...")

	addr := envOrDefault("FEEDSIM_ADDR", ":9001")
	tickInterval := time.Duration(envIntOrDefault("FEEDSIM_TICK_MS", 200)) * time.Millisecond
	barStep := time.Duration(envIntOrDefault("FEEDSIM_BAR_SECONDS", 10)) * time.Second

	http.HandleFunc("/ws", wsHandler(tickInterval, barStep))
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, `{"status":"ok","service":"feedsim"}`)
	})

	log.Printf("[feedsim] listening on %s (WebSocket: ws://localhost%s/ws)", addr, addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("[feedsim] server error: %v", err)
	}
}

// ─── helpers ──────────────────────────────────────────────────────────

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[feedsim] invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
