package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Client is a single dashboard WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// filters holds channel names or prefixes (entries ending in ':').
	// Empty means receive everything.
	filterMu sync.RWMutex
	filters  map[string]bool
}

// inbound covers every message shape a client may send.
type inbound struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"` // FILTER
	Channel  string   `json:"channel,omitempty"`  // REPLAY
	FromSeq  int64    `json:"from_seq,omitempty"` // REPLAY
	ToSeq    int64    `json:"to_seq,omitempty"`   // REPLAY
	Ping     int64    `json:"ping,omitempty"`
}

// matchesChannel reports whether the client's filter admits a channel.
func (c *Client) matchesChannel(channel string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	if len(c.filters) == 0 {
		return true
	}
	if c.filters[channel] {
		return true
	}
	for f := range c.filters {
		if strings.HasSuffix(f, ":") && strings.HasPrefix(channel, f) {
			return true
		}
	}
	return false
}

// sendInitialState queues the latest retained value of every matching
// channel. Entries at or before the client-supplied cutoff are skipped.
func (c *Client) sendInitialState(lastTS string) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		if !c.matchesChannel(channel) {
			continue
		}
		envelope, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        entry.Data,
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Coalesce queued messages into one frame.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var in inbound
		if json.Unmarshal(msg, &in) != nil {
			continue
		}

		switch in.Type {
		case "FILTER":
			filters := make(map[string]bool, len(in.Channels))
			for _, ch := range in.Channels {
				filters[ch] = true
			}
			c.filterMu.Lock()
			c.filters = filters
			c.filterMu.Unlock()

		case "REPLAY":
			if in.Channel == "" || in.ToSeq < in.FromSeq {
				continue
			}
			for _, envelope := range c.hub.ReplayRange(in.Channel, in.FromSeq, in.ToSeq) {
				select {
				case c.send <- envelope:
				default:
				}
			}

		default:
			if in.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      in.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}
