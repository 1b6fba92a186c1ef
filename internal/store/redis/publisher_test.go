package redis

import (
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// unreachablePublisher builds a Publisher against a port nothing listens
// on, so pipeline writes fail immediately with connection refused.
func unreachablePublisher() *Publisher {
	return &Publisher{
		client: goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}),
		ttl:    time.Minute,
		cb:     NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout),
	}
}

func TestPublisher_PublishHookTimesEveryAttempt(t *testing.T) {
	p := unreachablePublisher()
	defer p.Close()

	var calls int
	p.OnPublish = func(d time.Duration) {
		calls++
		if d < 0 {
			t.Errorf("negative publish duration %v", d)
		}
	}

	p.BroadcastJSON("rsi:EURUSDm", map[string]float64{"value": 63.2})
	if calls != 1 {
		t.Fatalf("hook fired %d times, want 1", calls)
	}
}

func TestPublisher_MarshalFailureSkipsPipeline(t *testing.T) {
	p := unreachablePublisher()
	defer p.Close()

	var calls int
	p.OnPublish = func(time.Duration) { calls++ }

	// A channel value cannot be marshalled; the write never starts.
	p.BroadcastJSON("rsi:EURUSDm", make(chan int))
	if calls != 0 {
		t.Fatalf("hook fired %d times on a marshal failure, want 0", calls)
	}
}
