package gateway

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

type envelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
}

func TestBuildEnvelopeFormat(t *testing.T) {
	channel := "rsi:EURUSDm"
	data := []byte(`{"value":63.2,"period":14,"timestamp":"2026-02-25T10:00:00Z"}`)
	now := time.Date(2026, 2, 25, 10, 0, 1, 0, time.UTC)

	buf := buildEnvelope(channel, data, now, 42, 7)

	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != channel {
		t.Errorf("channel: got %q, want %q", env.Channel, channel)
	}
	if env.Seq != 42 || env.ChannelSeq != 7 {
		t.Errorf("seq/channel_seq: got %d/%d, want 42/7", env.Seq, env.ChannelSeq)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("data is not valid JSON: %v", err)
	}
	if payload["value"] != 63.2 {
		t.Errorf("data.value = %v, want 63.2", payload["value"])
	}

	parsed, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil {
		t.Fatalf("ts is not valid RFC3339Nano: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("ts: got %v, want %v", parsed, now)
	}
}

func TestHub_BroadcastSequencesPerChannel(t *testing.T) {
	h := NewHub()

	h.BroadcastJSON("rsi:EURUSDm", map[string]float64{"value": 55})
	h.BroadcastJSON("rsi:EURUSDm", map[string]float64{"value": 58})
	h.BroadcastJSON("rsi:GBPUSDm", map[string]float64{"value": 40})

	if got := h.ChannelSeq("rsi:EURUSDm"); got != 2 {
		t.Errorf("channel_seq for rsi:EURUSDm = %d, want 2", got)
	}
	if got := h.ChannelSeq("rsi:GBPUSDm"); got != 1 {
		t.Errorf("channel_seq for rsi:GBPUSDm = %d, want 1", got)
	}
}

func TestHub_ReplayRangeBackfill(t *testing.T) {
	h := NewHub()
	for i := 1; i <= 5; i++ {
		h.BroadcastJSON("rfi:EURUSDm", map[string]int{"n": i})
	}

	got := h.ReplayRange("rfi:EURUSDm", 2, 4)
	if len(got) != 3 {
		t.Fatalf("replay [2,4] returned %d envelopes, want 3", len(got))
	}
	for i, buf := range got {
		var env envelope
		if err := json.Unmarshal(buf, &env); err != nil {
			t.Fatalf("replay envelope %d invalid: %v", i, err)
		}
		if want := int64(i + 2); env.ChannelSeq != want {
			t.Errorf("replay envelope %d channel_seq = %d, want %d", i, env.ChannelSeq, want)
		}
	}

	if got := h.ReplayRange("rfi:UNKNOWN", 1, 10); got != nil {
		t.Errorf("replay for unknown channel = %v, want nil", got)
	}
}

func TestReplayBuffer_OverwritesOldest(t *testing.T) {
	rb := NewReplayBuffer(3)
	for i := 1; i <= 5; i++ {
		rb.Push(int64(i), []byte(fmt.Sprintf("m%d", i)))
	}

	if rb.Len() != 3 {
		t.Fatalf("Len = %d after wraparound, want 3", rb.Len())
	}
	out := rb.Range(1, 5)
	if len(out) != 3 {
		t.Fatalf("Range returned %d entries, want the 3 newest", len(out))
	}
	for i, want := range []string{"m3", "m4", "m5"} {
		if string(out[i]) != want {
			t.Errorf("entry %d = %q, want %q", i, out[i], want)
		}
	}
}

func TestClient_FilterMatching(t *testing.T) {
	c := &Client{filters: map[string]bool{}}

	if !c.matchesChannel("anything") {
		t.Error("empty filter must admit every channel")
	}

	c.filters = map[string]bool{"strength": true, "rsi:": true}
	cases := []struct {
		channel string
		want    bool
	}{
		{"strength", true},
		{"rsi:EURUSDm", true},
		{"rsi:GBPUSDm", true},
		{"rfi:EURUSDm", false},
		{"tick:EURUSDm", false},
	}
	for _, tc := range cases {
		if got := c.matchesChannel(tc.channel); got != tc.want {
			t.Errorf("matchesChannel(%q) = %v, want %v", tc.channel, got, tc.want)
		}
	}
}
