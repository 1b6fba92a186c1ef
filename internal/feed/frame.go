// Package feed implements the broker streaming client: connection
// lifecycle, subscribe/unsubscribe framing, and inbound message
// dispatch. Inbound frames are decoded into a tagged union so the
// dispatch switch stays exhaustive.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"fxpulse/internal/model"
)

// Kind tags an inbound feed frame.
type Kind int

const (
	KindConnected Kind = iota + 1
	KindSubscribed
	KindUnsubscribed
	KindInitialOHLC
	KindTicks
	KindOHLCUpdate
	KindPong
	KindError
)

// String returns the wire name of the frame kind.
func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindSubscribed:
		return "subscribed"
	case KindUnsubscribed:
		return "unsubscribed"
	case KindInitialOHLC:
		return "initial_ohlc"
	case KindTicks:
		return "ticks"
	case KindOHLCUpdate:
		return "ohlc_update"
	case KindPong:
		return "pong"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Frame is the decoded tagged union: exactly the payload field matching
// Kind is non-nil.
type Frame struct {
	Kind Kind

	Connected    *ConnectedFrame
	Subscribed   *SubscribedFrame
	Unsubscribed *UnsubscribedFrame
	InitialOHLC  *InitialOHLCFrame
	Ticks        *TicksFrame
	OHLCUpdate   *OHLCUpdateFrame
	Err          *ErrorFrame
}

// ConnectedFrame carries the broker's supported timeframe list.
type ConnectedFrame struct {
	Timeframes []string `json:"timeframes"`
}

// SubscribedFrame acknowledges a subscribe request.
type SubscribedFrame struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// UnsubscribedFrame acknowledges an unsubscribe request.
type UnsubscribedFrame struct {
	Symbol string `json:"symbol"`
}

// WireBar is the on-the-wire OHLC shape; Time is epoch seconds.
type WireBar struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// Bar converts a wire bar into the domain model.
func (w WireBar) Bar(symbol, timeframe string) model.Bar {
	return model.Bar{
		Symbol:    symbol,
		Timeframe: timeframe,
		Time:      time.Unix(w.Time, 0).UTC(),
		Open:      w.Open,
		High:      w.High,
		Low:       w.Low,
		Close:     w.Close,
	}
}

// InitialOHLCFrame is the bulk history snapshot sent after subscribe.
type InitialOHLCFrame struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Bars      []WireBar `json:"bars"`
}

// WireTick is the on-the-wire quote shape; TS is epoch milliseconds.
type WireTick struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask,omitempty"`
	TS     int64   `json:"ts"`
}

// Tick converts a wire tick into the domain model.
func (w WireTick) Tick() model.Tick {
	return model.Tick{
		Symbol:    w.Symbol,
		Bid:       w.Bid,
		Ask:       w.Ask,
		Timestamp: time.Unix(0, w.TS*int64(time.Millisecond)).UTC(),
	}
}

// TicksFrame is a batch of quote updates.
type TicksFrame struct {
	Ticks []WireTick `json:"ticks"`
}

// OHLCUpdateFrame is a single in-progress or just-closed candle update.
type OHLCUpdateFrame struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Bar       WireBar `json:"bar"`
}

// ErrorFrame is a broker-reported error; it never tears the connection down.
type ErrorFrame struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// subscribeRequest / unsubscribeRequest are the outbound frames of §feed protocol.
type subscribeRequest struct {
	Action    string   `json:"action"` // "subscribe"
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	DataTypes []string `json:"data_types"`
}

type unsubscribeRequest struct {
	Action string `json:"action"` // "unsubscribe"
	Symbol string `json:"symbol"`
}

type pingRequest struct {
	Action string `json:"action"` // "ping"
}

// DecodeFrame parses a raw inbound message into the tagged union.
// Unknown kinds and malformed payloads return an error; the read loop
// logs and skips them without disturbing other symbols' state.
func DecodeFrame(raw []byte) (Frame, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return Frame{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch envelope.Type {
	case "connected":
		var p ConnectedFrame
		if err := json.Unmarshal(raw, &p); err != nil {
			return Frame{}, fmt.Errorf("decode connected: %w", err)
		}
		return Frame{Kind: KindConnected, Connected: &p}, nil
	case "subscribed":
		var p SubscribedFrame
		if err := json.Unmarshal(raw, &p); err != nil {
			return Frame{}, fmt.Errorf("decode subscribed: %w", err)
		}
		return Frame{Kind: KindSubscribed, Subscribed: &p}, nil
	case "unsubscribed":
		var p UnsubscribedFrame
		if err := json.Unmarshal(raw, &p); err != nil {
			return Frame{}, fmt.Errorf("decode unsubscribed: %w", err)
		}
		return Frame{Kind: KindUnsubscribed, Unsubscribed: &p}, nil
	case "initial_ohlc":
		var p InitialOHLCFrame
		if err := json.Unmarshal(raw, &p); err != nil {
			return Frame{}, fmt.Errorf("decode initial_ohlc: %w", err)
		}
		return Frame{Kind: KindInitialOHLC, InitialOHLC: &p}, nil
	case "ticks":
		var p TicksFrame
		if err := json.Unmarshal(raw, &p); err != nil {
			return Frame{}, fmt.Errorf("decode ticks: %w", err)
		}
		return Frame{Kind: KindTicks, Ticks: &p}, nil
	case "ohlc_update":
		var p OHLCUpdateFrame
		if err := json.Unmarshal(raw, &p); err != nil {
			return Frame{}, fmt.Errorf("decode ohlc_update: %w", err)
		}
		return Frame{Kind: KindOHLCUpdate, OHLCUpdate: &p}, nil
	case "pong":
		return Frame{Kind: KindPong}, nil
	case "error":
		var p ErrorFrame
		if err := json.Unmarshal(raw, &p); err != nil {
			return Frame{}, fmt.Errorf("decode error frame: %w", err)
		}
		return Frame{Kind: KindError, Err: &p}, nil
	default:
		return Frame{}, fmt.Errorf("unknown frame type %q", envelope.Type)
	}
}
