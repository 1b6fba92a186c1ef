// Package gateway serves the dashboard WebSocket. Every derived-data
// broadcast from the session is wrapped in a sequenced envelope and
// fanned out to connected clients; a freshly attached client first
// receives the latest retained value of every channel, and gaps after
// a client-side stall can be backfilled from per-channel replay
// buffers.
package gateway

import (
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"encoding/json"

	"github.com/gorilla/websocket"
)

const replayBufferCap = 500

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// Hub manages WebSocket clients and per-channel broadcast state. It
// implements the session's Broadcaster interface.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	latest      map[string]latestEntry
	channelSeqs map[string]int64
	replay      map[string]*ReplayBuffer
	seq         int64

	upgrader websocket.Upgrader

	// OnClientCount, when set, is called with the client total after
	// every attach/detach (gauge hook).
	OnClientCount func(n int)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replay:      make(map[string]*ReplayBuffer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// BroadcastJSON marshals the payload and fans it out on the channel.
// Marshal failures are logged and dropped.
func (h *Hub) BroadcastJSON(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[gateway] marshal %s: %v", channel, err)
		return
	}
	h.broadcast(channel, data)
}

// broadcast records the latest value, builds the envelope and delivers
// it to every client whose filter matches. Slow clients are skipped,
// never waited on.
func (h *Hub) broadcast(channel string, data []byte) {
	now := time.Now().UTC()

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.channelSeqs[channel]++
	channelSeq := h.channelSeqs[channel]
	h.latest[channel] = latestEntry{Data: data, TS: now, Seq: channelSeq}

	rb, ok := h.replay[channel]
	if !ok {
		rb = NewReplayBuffer(replayBufferCap)
		h.replay[channel] = rb
	}
	h.mu.Unlock()

	buf := buildEnvelope(channel, data, now, seq, channelSeq)
	rb.Push(channelSeq, buf)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.matchesChannel(channel) {
			continue
		}
		select {
		case client.send <- buf:
		default:
		}
	}
}

// buildEnvelope hand-crafts the envelope JSON; json.Marshal on the hot
// path costs an order of magnitude more.
func buildEnvelope(channel string, data []byte, ts time.Time, seq, channelSeq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+160)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = ts.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, `,"channel_seq":`...)
	buf = strconv.AppendInt(buf, channelSeq, 10)
	buf = append(buf, '}')
	return buf
}

// ServeWS upgrades the request and attaches the client. The optional
// last_ts query parameter (RFC3339Nano) suppresses initial-state
// entries the client already holds.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade: %v", err)
		return
	}
	conn.EnableWriteCompression(true)

	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     h,
		filters: make(map[string]bool),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
	log.Printf("[gateway] ws client connected (%d total)", count)

	go client.sendInitialState(r.URL.Query().Get("last_ts"))
	go client.writePump()
	go client.readPump()
}

// RemoveClient detaches a client and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	close(c.send)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ChannelSeq returns the current per-channel sequence number.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

// ReplayRange returns buffered envelopes for a channel with channel_seq
// in [from, to], oldest first.
func (h *Hub) ReplayRange(channel string, from, to int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replay[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return rb.Range(from, to)
}
