package redis

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		cb.Execute(func() error { return errBoom })
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)
	if cb.CurrentState() != StateClosed {
		t.Fatalf("new breaker state = %v, want closed", cb.CurrentState())
	}

	trip(cb, 2)
	if cb.CurrentState() != StateClosed {
		t.Fatalf("state = %v after 2 of 3 failures, want closed", cb.CurrentState())
	}

	trip(cb, 1)
	if cb.CurrentState() != StateOpen {
		t.Fatalf("state = %v after 3 failures, want open", cb.CurrentState())
	}

	var ran bool
	if err := cb.Execute(func() error { ran = true; return nil }); err != ErrCircuitOpen {
		t.Errorf("open breaker returned %v, want ErrCircuitOpen", err)
	}
	if ran {
		t.Error("open breaker still executed the call")
	}
}

func TestCircuitBreaker_ProbeClosesOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	trip(cb, 2)

	time.Sleep(30 * time.Millisecond)

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe call returned %v, want nil", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %v after successful probe, want closed", cb.CurrentState())
	}
}

func TestCircuitBreaker_ProbeReopensOnFailure(t *testing.T) {
	cb := NewCircuitBreaker(2, 20*time.Millisecond)
	trip(cb, 2)

	time.Sleep(30 * time.Millisecond)
	trip(cb, 1)

	if cb.CurrentState() != StateOpen {
		t.Errorf("state = %v after failed probe, want open", cb.CurrentState())
	}
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker(3, 100*time.Millisecond)

	trip(cb, 2)
	cb.Execute(func() error { return nil })
	trip(cb, 2)

	if cb.CurrentState() != StateClosed {
		t.Errorf("state = %v, want closed (success must reset the failure count)", cb.CurrentState())
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var seen []State
	cb := NewCircuitBreaker(1, 20*time.Millisecond)
	cb.OnStateChange = func(from, to State) { seen = append(seen, to) }

	trip(cb, 1)
	time.Sleep(30 * time.Millisecond)
	cb.Execute(func() error { return nil })

	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}
