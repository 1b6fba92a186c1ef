package feed

import (
	"testing"
	"time"
)

func TestDecodeFrame_AllKinds(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"connected", `{"type":"connected","timeframes":["1M","5M","1H","1D"]}`, KindConnected},
		{"subscribed", `{"type":"subscribed","symbol":"EURUSDm","timeframe":"1H"}`, KindSubscribed},
		{"unsubscribed", `{"type":"unsubscribed","symbol":"EURUSDm"}`, KindUnsubscribed},
		{"initial_ohlc", `{"type":"initial_ohlc","symbol":"EURUSDm","timeframe":"1H","bars":[{"time":1700000000,"open":1.08,"high":1.09,"low":1.07,"close":1.085}]}`, KindInitialOHLC},
		{"ticks", `{"type":"ticks","ticks":[{"symbol":"EURUSDm","bid":1.0851,"ask":1.0853,"ts":1700000000123}]}`, KindTicks},
		{"ohlc_update", `{"type":"ohlc_update","symbol":"EURUSDm","timeframe":"1H","bar":{"time":1700003600,"open":1.085,"high":1.086,"low":1.084,"close":1.0855}}`, KindOHLCUpdate},
		{"pong", `{"type":"pong"}`, KindPong},
		{"error", `{"type":"error","code":429,"message":"rate limited"}`, KindError},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame, err := DecodeFrame([]byte(c.raw))
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if frame.Kind != c.kind {
				t.Errorf("kind = %v, want %v", frame.Kind, c.kind)
			}
		})
	}
}

func TestDecodeFrame_Payloads(t *testing.T) {
	frame, err := DecodeFrame([]byte(`{"type":"initial_ohlc","symbol":"EURUSDm","timeframe":"1H","bars":[{"time":1700000000,"open":1.08,"high":1.09,"low":1.07,"close":1.085}]}`))
	if err != nil {
		t.Fatal(err)
	}
	p := frame.InitialOHLC
	if p == nil || len(p.Bars) != 1 {
		t.Fatalf("unexpected payload: %+v", p)
	}
	bar := p.Bars[0].Bar(p.Symbol, p.Timeframe)
	if bar.Symbol != "EURUSDm" || bar.Timeframe != "1H" {
		t.Errorf("bar identity = %s/%s", bar.Symbol, bar.Timeframe)
	}
	if !bar.Time.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Errorf("bar time = %v", bar.Time)
	}

	frame, err = DecodeFrame([]byte(`{"type":"ticks","ticks":[{"symbol":"EURUSDm","bid":1.0851,"ts":1700000000123}]}`))
	if err != nil {
		t.Fatal(err)
	}
	tick := frame.Ticks.Ticks[0].Tick()
	if tick.Bid != 1.0851 {
		t.Errorf("bid = %v", tick.Bid)
	}
	if tick.Timestamp.UnixMilli() != 1700000000123 {
		t.Errorf("timestamp = %v", tick.Timestamp)
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	for _, raw := range []string{
		`not json at all`,
		`{"type":"ticks","ticks":"nope"}`,
		`{"type":"martian"}`,
		`{}`,
	} {
		if _, err := DecodeFrame([]byte(raw)); err == nil {
			t.Errorf("DecodeFrame(%q) succeeded, want error", raw)
		}
	}
}
