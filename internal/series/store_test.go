package series

import (
	"testing"
	"time"

	"fxpulse/internal/model"
)

func makeBar(symbol, tf string, unixSec int64, open, high, low, close_ float64) model.Bar {
	return model.Bar{
		Symbol:    symbol,
		Timeframe: tf,
		Time:      time.Unix(unixSec, 0).UTC(),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close_,
	}
}

func makeTick(symbol string, bid float64, unixSec int64) model.Tick {
	return model.Tick{Symbol: symbol, Bid: bid, Timestamp: time.Unix(unixSec, 0).UTC()}
}

func TestApplyBar_MergeOrAppend(t *testing.T) {
	s := NewStore()
	s.SetActiveTimeframe("EURUSDm", "1H")

	base := int64(1700000000)
	if appended := s.ApplyBar(makeBar("EURUSDm", "1H", base, 1.08, 1.09, 1.07, 1.085)); !appended {
		t.Fatal("first bar should append")
	}
	if appended := s.ApplyBar(makeBar("EURUSDm", "1H", base, 1.08, 1.10, 1.07, 1.095)); appended {
		t.Fatal("same-time bar should replace, not append")
	}

	bars := s.BarsFor("EURUSDm", "1H")
	if len(bars) != 1 {
		t.Fatalf("expected 1 bar after merge, got %d", len(bars))
	}
	if bars[0].Close != 1.095 {
		t.Errorf("merged bar close = %v, want 1.095", bars[0].Close)
	}

	s.ApplyBar(makeBar("EURUSDm", "1H", base+3600, 1.095, 1.10, 1.09, 1.098))
	if got := len(s.BarsFor("EURUSDm", "1H")); got != 2 {
		t.Fatalf("expected 2 bars after append, got %d", got)
	}
}

func TestApplyBar_TrimsAtCap(t *testing.T) {
	s := NewStore()
	base := int64(1700000000)
	for i := 0; i < BarCap+10; i++ {
		s.ApplyBar(makeBar("GBPUSDm", "5M", base+int64(i)*300, 1.25, 1.26, 1.24, 1.25))
	}
	bars := s.BarsFor("GBPUSDm", "5M")
	if len(bars) != BarCap {
		t.Fatalf("expected series trimmed to %d, got %d", BarCap, len(bars))
	}
	// Oldest 10 bars must have been dropped from the front.
	wantFirst := time.Unix(base+10*300, 0).UTC()
	if !bars[0].Time.Equal(wantFirst) {
		t.Errorf("first bar time = %v, want %v", bars[0].Time, wantFirst)
	}
}

func TestAppendTick_NewestFirstCapped(t *testing.T) {
	s := NewStore()
	for i := 0; i < TickCap+5; i++ {
		s.AppendTick(makeTick("USDJPYm", 150.0+float64(i)*0.01, int64(i)))
	}
	ticks := s.Ticks("USDJPYm")
	if len(ticks) != TickCap {
		t.Fatalf("expected tick ring capped at %d, got %d", TickCap, len(ticks))
	}
	latest, ok := s.LatestTick("USDJPYm")
	if !ok {
		t.Fatal("expected a latest tick")
	}
	if latest.Bid != 150.0+float64(TickCap+4)*0.01 {
		t.Errorf("latest tick bid = %v, want newest pushed value", latest.Bid)
	}
	if !ticks[0].Timestamp.After(ticks[len(ticks)-1].Timestamp) {
		t.Error("tick ring is not newest-first")
	}
}

func TestLastTwoClosedCloses_SkipsFormingBar(t *testing.T) {
	s := NewStore()
	s.SetActiveTimeframe("EURUSDm", "1H")
	base := int64(1700000000)
	closes := []float64{1.081, 1.082, 1.083, 1.084}
	for i, c := range closes {
		s.ApplyBar(makeBar("EURUSDm", "1H", base+int64(i)*3600, c, c, c, c))
	}
	cur, prev, ok := s.LastTwoClosedCloses("EURUSDm")
	if !ok {
		t.Fatal("expected closed closes to be available")
	}
	// Newest bar (1.084) is in progress; closed closes are 1.083 and 1.082.
	if cur != 1.083 || prev != 1.082 {
		t.Errorf("closed closes = %v, %v, want 1.083, 1.082", cur, prev)
	}
}

func TestDailyOpen_PrefersDailySeries(t *testing.T) {
	s := NewStore()
	s.SetActiveTimeframe("EURUSDm", "1H")
	s.ApplyBar(makeBar("EURUSDm", "1H", 1700000000, 1.09, 1.09, 1.09, 1.09))
	s.ApplyBar(makeBar("EURUSDm", DailyTimeframe, 1700000000, 1.0812, 1.09, 1.08, 1.088))

	open, ok := s.DailyOpen("EURUSDm")
	if !ok {
		t.Fatal("expected daily open")
	}
	if open != 1.0812 {
		t.Errorf("daily open = %v, want 1.0812 from daily series", open)
	}
}

func TestDailyOpen_FallsBackToLatestBarOpen(t *testing.T) {
	s := NewStore()
	s.SetActiveTimeframe("EURUSDm", "1H")
	// Bars all strictly before local midnight today.
	old := time.Now().AddDate(0, 0, -2).Unix()
	s.ApplyBar(makeBar("EURUSDm", "1H", old, 1.0700, 1.08, 1.06, 1.075))
	s.ApplyBar(makeBar("EURUSDm", "1H", old+3600, 1.0750, 1.08, 1.07, 1.076))

	open, ok := s.DailyOpen("EURUSDm")
	if !ok {
		t.Fatal("expected a fallback daily open")
	}
	if open != 1.0750 {
		t.Errorf("daily open = %v, want latest bar's open 1.0750", open)
	}
}

func TestDailyChangePercent_ZeroWhenUnavailable(t *testing.T) {
	s := NewStore()
	if got := s.DailyChangePercent("EURUSDm"); got != 0 {
		t.Errorf("change on empty store = %v, want 0", got)
	}
}

func TestDailyChangePercent(t *testing.T) {
	s := NewStore()
	s.SetActiveTimeframe("EURUSDm", "1H")
	s.ApplyBar(makeBar("EURUSDm", DailyTimeframe, 1700000000, 1.0800, 1.09, 1.07, 1.085))
	s.AppendTick(makeTick("EURUSDm", 1.0854, 1700000100))

	got := s.DailyChangePercent("EURUSDm")
	want := (1.0854 - 1.0800) / 1.0800 * 100
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("daily change = %v, want %v", got, want)
	}
}

func TestEvict(t *testing.T) {
	s := NewStore()
	s.SetActiveTimeframe("EURUSDm", "1H")
	s.ApplyBar(makeBar("EURUSDm", "1H", 1700000000, 1, 1, 1, 1))
	s.AppendTick(makeTick("EURUSDm", 1.08, 1700000000))

	s.Evict("EURUSDm")
	if _, ok := s.LatestTick("EURUSDm"); ok {
		t.Error("ticks survived eviction")
	}
	if bars := s.BarsFor("EURUSDm", "1H"); len(bars) != 0 {
		t.Errorf("bars survived eviction: %d", len(bars))
	}
}
