// Package api exposes the dashboard's REST query surface: everything
// the session derives (RSI, RFI, events, strength, series) plus
// watchlist management. Live updates stream over the gateway WebSocket;
// these endpoints serve one-shot reads and the UI's initial render.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"fxpulse/internal/session"
	"fxpulse/internal/symbol"
)

// Watchlist is the persistence surface the router manages.
type Watchlist interface {
	Symbols() ([]string, error)
	Add(symbol, timeframe string) error
	Remove(symbol string) error
	GetSetting(key, def string) (string, error)
	SetSetting(key, value string) error
}

// NewRouter sets up HTTP routes for the API server.
func NewRouter(sess *session.Session, wl Watchlist) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/api/v1/overview", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sess.Snapshot())
	})

	mux.HandleFunc("/api/v1/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"connected":     sess.Connected(),
			"timeframes":    sess.SupportedTimeframes(),
			"subscriptions": sess.Subscriptions(),
		})
	})

	mux.HandleFunc("/api/v1/rsi", func(w http.ResponseWriter, r *http.Request) {
		sym, ok := querySymbol(w, r)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		latest, available := sess.RSIValue(sym)
		writeJSON(w, map[string]interface{}{
			"symbol":    sym,
			"available": available,
			"latest":    nullable(latest, available),
			"history":   sess.RSIHistory(sym, limit),
		})
	})

	mux.HandleFunc("/api/v1/rfi", func(w http.ResponseWriter, r *http.Request) {
		sym, ok := querySymbol(w, r)
		if !ok {
			return
		}
		score, available := sess.RFIValue(sym)
		writeJSON(w, map[string]interface{}{
			"symbol":    sym,
			"available": available,
			"score":     nullable(score, available),
		})
	})

	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		sym, ok := querySymbol(w, r)
		if !ok {
			return
		}
		writeJSON(w, sess.RecentEvents(sym))
	})

	mux.HandleFunc("/api/v1/pairs/oversold", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sess.OversoldPairs())
	})

	mux.HandleFunc("/api/v1/pairs/overbought", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sess.OverboughtPairs())
	})

	mux.HandleFunc("/api/v1/strength", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sess.CurrencyStrength())
	})

	mux.HandleFunc("/api/v1/bars", func(w http.ResponseWriter, r *http.Request) {
		sym, ok := querySymbol(w, r)
		if !ok {
			return
		}
		tf := r.URL.Query().Get("timeframe")
		writeJSON(w, map[string]interface{}{
			"symbol":           sym,
			"timeframe":        tf,
			"daily_change_pct": sess.DailyChangePercent(sym),
			"bars":             sess.Bars(sym, tf),
		})
	})

	mux.HandleFunc("/api/v1/watchlist", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			symbols, err := wl.Symbols()
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, symbols)

		case http.MethodPost:
			var req struct {
				Symbol    string `json:"symbol"`
				Timeframe string `json:"timeframe"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
				writeError(w, http.StatusBadRequest, "symbol is required")
				return
			}
			sym := sess.SubscribeSymbol(req.Symbol, req.Timeframe)
			if err := wl.Add(sym, req.Timeframe); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, map[string]string{"symbol": sym})

		case http.MethodDelete:
			raw := r.URL.Query().Get("symbol")
			if raw == "" {
				writeError(w, http.StatusBadRequest, "symbol is required")
				return
			}
			sym := symbol.NormalizeForFeed(raw)
			sess.UnsubscribeSymbol(sym)
			if err := wl.Remove(sym); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, map[string]string{"symbol": sym})

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	mux.HandleFunc("/api/v1/settings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			key := r.URL.Query().Get("key")
			if key == "" {
				writeError(w, http.StatusBadRequest, "key is required")
				return
			}
			value, err := wl.GetSetting(key, r.URL.Query().Get("default"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, map[string]string{"key": key, "value": value})

		case http.MethodPut, http.MethodPost:
			var req struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
				writeError(w, http.StatusBadRequest, "key is required")
				return
			}
			if err := wl.SetSetting(req.Key, req.Value); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, map[string]string{"key": req.Key, "value": req.Value})

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	})

	return mux
}

// querySymbol normalizes the required symbol parameter; it writes a 400
// and returns false when missing.
func querySymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("symbol")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return "", false
	}
	return symbol.NormalizeForFeed(raw), true
}

// nullable keeps unavailable values as JSON null instead of zero structs.
func nullable(v interface{}, ok bool) interface{} {
	if !ok {
		return nil
	}
	return v
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
