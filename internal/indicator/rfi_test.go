package indicator

import (
	"math"
	"testing"
	"time"

	"fxpulse/internal/model"
)

var rfiTS = time.Unix(1700000000, 0).UTC()

func TestComputeRFI_NeutralOnShortWindows(t *testing.T) {
	got := ComputeRFI([]float64{55, 60}, []float64{1.08, 1.081}, []float64{1, 2}, DefaultRFIWeights, rfiTS)
	if got.Score != 0 || got.Signal != model.SignalNeutral || got.Strength != model.StrengthWeak {
		t.Errorf("short windows: got %+v, want neutral zero record", got)
	}
}

func TestComputeRFI_NeutralOnZeroVolume(t *testing.T) {
	// Zero previous volume forces a division by zero inside volumeFlow;
	// the result must be a well-formed neutral record, not Inf/NaN.
	rsi := []float64{50, 55, 60}
	closes := []float64{1.08, 1.081, 1.082}
	volumes := []float64{0, 0, 0}
	got := ComputeRFI(rsi, closes, volumes, DefaultRFIWeights, rfiTS)
	if got.Score != 0 {
		t.Errorf("score = %v, want 0", got.Score)
	}
	if got.Signal != model.SignalNeutral || got.Strength != model.StrengthWeak {
		t.Errorf("got %s/%s, want neutral/weak", got.Signal, got.Strength)
	}
	if math.IsNaN(got.VolumeFlow) || math.IsInf(got.VolumeFlow, 0) {
		t.Errorf("volume flow leaked a non-finite value: %v", got.VolumeFlow)
	}
}

func TestComputeRFI_BullishClassification(t *testing.T) {
	// Strong upward RSI momentum, rising volume, rising prices.
	rsi := []float64{50, 65, 80} // rsiFlow = 30/30 = 1
	closes := []float64{1.00, 1.05, 1.10}
	volumes := []float64{10, 30, 90} // +200% twice → volumeFlow clamps to 1
	got := ComputeRFI(rsi, closes, volumes, DefaultRFIWeights, rfiTS)

	if got.Signal != model.SignalBullish {
		t.Fatalf("signal = %s, want bullish (score %v)", got.Signal, got.Score)
	}
	if got.RSIFlow != 1 {
		t.Errorf("rsiFlow = %v, want clamped 1", got.RSIFlow)
	}
	if got.Score <= 0.6 {
		t.Errorf("score = %v, want > 0.6", got.Score)
	}
}

func TestComputeRFI_StrengthBands(t *testing.T) {
	// rsiFlow and volumeFlow clamp to 1, priceFlow lands at 2/3; the
	// weights place the strong case above 0.8 and the moderate case
	// between 0.6 and 0.8.
	rsi := []float64{0, 50, 100}
	closes := []float64{1, 2, 4}
	volumes := []float64{1, 3, 9}

	strong := ComputeRFI(rsi, closes, volumes, RFIWeights{RSI: 0.5, Volume: 0.25, Price: 0.25}, rfiTS)
	if strong.Signal != model.SignalBullish || strong.Strength != model.StrengthStrong {
		t.Errorf("score %v: got %s/%s, want bullish/strong", strong.Score, strong.Signal, strong.Strength)
	}

	moderate := ComputeRFI(rsi, closes, volumes, RFIWeights{RSI: 0.3, Volume: 0.2, Price: 0.2}, rfiTS)
	if moderate.Signal != model.SignalBullish || moderate.Strength != model.StrengthModerate {
		t.Errorf("score %v: got %s/%s, want bullish/moderate", moderate.Score, moderate.Signal, moderate.Strength)
	}
}

func TestComputeRFI_WeightsNotNormalized(t *testing.T) {
	rsi := []float64{0, 50, 100}
	closes := []float64{1, 2, 4}
	volumes := []float64{1, 3, 9}

	// Doubled weights must double the raw contribution (until the clamp).
	half := ComputeRFI(rsi, closes, volumes, RFIWeights{RSI: 0.2, Volume: 0.1, Price: 0.1}, rfiTS)
	full := ComputeRFI(rsi, closes, volumes, RFIWeights{RSI: 0.4, Volume: 0.2, Price: 0.2}, rfiTS)
	if math.Abs(full.Score-2*half.Score) > 1e-9 {
		t.Errorf("weights appear auto-normalized: %v vs %v", half.Score, full.Score)
	}
}

func TestComputeRFI_BearishStrong(t *testing.T) {
	rsi := []float64{100, 50, 0}
	closes := []float64{4, 2, 1}
	volumes := []float64{9, 3, 1}
	got := ComputeRFI(rsi, closes, volumes, RFIWeights{RSI: 0.6, Volume: 0.3, Price: 0.3}, rfiTS)
	if got.Signal != model.SignalBearish || got.Strength != model.StrengthStrong {
		t.Errorf("score %v: got %s/%s, want bearish/strong", got.Score, got.Signal, got.Strength)
	}
}

func TestVolumeProxy(t *testing.T) {
	closes := []float64{1.00, 1.02, 1.01}
	proxy := VolumeProxy(closes)
	if len(proxy) != 3 {
		t.Fatalf("proxy length = %d, want 3", len(proxy))
	}
	if proxy[0] != 0 {
		t.Errorf("proxy[0] = %v, want 0", proxy[0])
	}
	if math.Abs(proxy[1]-0.02*5) > 1e-12 {
		t.Errorf("proxy[1] = %v, want %v", proxy[1], 0.02*5)
	}
	if math.Abs(proxy[2]-0.01*5) > 1e-12 {
		t.Errorf("proxy[2] = %v, want %v", proxy[2], 0.01*5)
	}
}
