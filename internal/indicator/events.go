package indicator

import "fxpulse/internal/model"

// Thresholds holds the RSI levels the event detector watches.
type Thresholds struct {
	Oversold   float64 // e.g. 30
	Overbought float64 // e.g. 70
}

// DefaultThresholds are the conventional 30/70 RSI bands.
var DefaultThresholds = Thresholds{Oversold: 30, Overbought: 70}

// DetectEvents evaluates the four threshold-crossing rules over two
// consecutive RSI samples. All four conditions are checked
// independently — overlapping threshold configurations may legitimately
// fire more than one event from the same transition.
func DetectEvents(prev, curr model.RSISample, th Thresholds) []model.RSIEvent {
	var events []model.RSIEvent

	if prev.Value > th.Oversold && curr.Value <= th.Oversold {
		events = append(events, model.RSIEvent{
			Type:      model.EventCrossdown,
			RSI:       curr.Value,
			Threshold: th.Oversold,
			Timestamp: curr.Timestamp,
		})
	}
	if prev.Value < th.Overbought && curr.Value >= th.Overbought {
		events = append(events, model.RSIEvent{
			Type:      model.EventCrossup,
			RSI:       curr.Value,
			Threshold: th.Overbought,
			Timestamp: curr.Timestamp,
		})
	}
	if prev.Value <= th.Oversold && curr.Value > th.Oversold {
		events = append(events, model.RSIEvent{
			Type:      model.EventExitOversold,
			RSI:       curr.Value,
			Threshold: th.Oversold,
			Timestamp: curr.Timestamp,
		})
	}
	if prev.Value >= th.Overbought && curr.Value < th.Overbought {
		events = append(events, model.RSIEvent{
			Type:      model.EventExitOverbought,
			RSI:       curr.Value,
			Threshold: th.Overbought,
			Timestamp: curr.Timestamp,
		})
	}

	return events
}
