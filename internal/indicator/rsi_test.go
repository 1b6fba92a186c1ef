package indicator

import (
	"math"
	"testing"
	"time"

	"fxpulse/internal/model"
)

func makeBars(closes []float64) []model.Bar {
	bars := make([]model.Bar, len(closes))
	base := time.Unix(1700000000, 0).UTC()
	for i, c := range closes {
		bars[i] = model.Bar{
			Symbol:    "EURUSDm",
			Timeframe: "1H",
			Time:      base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
		}
	}
	return bars
}

func risingCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestWilderRSI_InsufficientData(t *testing.T) {
	closes := risingCloses(14, 1.08, 0.0005) // need period+1 = 15
	if _, ok := WilderRSI(closes, 14); ok {
		t.Error("expected ok=false with fewer than period+1 closes")
	}
	if _, ok := WilderRSI(nil, 14); ok {
		t.Error("expected ok=false on empty input")
	}
}

func TestWilderRSI_AllGains(t *testing.T) {
	closes := risingCloses(15, 1.0800, 0.0005)
	rsi, ok := WilderRSI(closes, 14)
	if !ok {
		t.Fatal("expected an RSI value")
	}
	// Monotonic rise means avgLoss == 0 → RSI pegged at 100.
	if rsi != 100.0 {
		t.Errorf("RSI = %v, want 100 for monotonic gains", rsi)
	}
}

func TestWilderRSI_KnownValue(t *testing.T) {
	// Alternating +2/−1 closes with period 3:
	// closes: 10, 12, 11, 13, 12
	// seed over first 3 deltas (+2, −1, +2): avgGain = 4/3, avgLoss = 1/3
	// 4th delta −1: avgGain = (4/3·2)/3 = 8/9, avgLoss = (1/3·2+1)/3 = 5/9
	// RS = 8/5 → RSI = 100 − 100/(1+1.6) = 61.538...
	closes := []float64{10, 12, 11, 13, 12}
	rsi, ok := WilderRSI(closes, 3)
	if !ok {
		t.Fatal("expected an RSI value")
	}
	want := 100.0 - 100.0/(1.0+1.6)
	if math.Abs(rsi-want) > 1e-9 {
		t.Errorf("RSI = %v, want %v", rsi, want)
	}
}

func TestRSIFromBars_DropsFormingBar(t *testing.T) {
	// 16 bars, period 14: RSI must be computed over the 15 closed
	// candles, excluding the newest (in-progress) bar.
	closes := risingCloses(15, 1.0800, 0.0005)
	closes = append(closes, 0.5) // wild forming bar that must be ignored

	rsi, ok := RSIFromBars(makeBars(closes), 14)
	if !ok {
		t.Fatal("expected an RSI value")
	}
	wantRSI, _ := WilderRSI(closes[:15], 14)
	if rsi != wantRSI {
		t.Errorf("RSI = %v, want %v (forming bar excluded)", rsi, wantRSI)
	}
}

func TestRSIFromBars_ExactlyPeriodPlusOne(t *testing.T) {
	// With exactly period+1 bars nothing is dropped.
	closes := risingCloses(15, 1.0800, 0.0005)
	rsi, ok := RSIFromBars(makeBars(closes), 14)
	if !ok {
		t.Fatal("expected an RSI value")
	}
	if rsi != 100.0 {
		t.Errorf("RSI = %v, want 100", rsi)
	}
}

func TestRSIFromBars_InsufficientBars(t *testing.T) {
	closes := risingCloses(10, 1.08, 0.0005)
	if _, ok := RSIFromBars(makeBars(closes), 14); ok {
		t.Error("expected ok=false with fewer than period+1 bars")
	}
}
