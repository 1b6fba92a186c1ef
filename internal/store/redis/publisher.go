// Package redis fans derived dashboard data out to Redis so sibling
// processes (alert bots, recorders) can consume the same channels the
// in-process gateway serves. The publisher is optional: when Redis is
// not configured the session simply runs without this sink.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultLatestTTL = 30 * time.Minute

	breakerMaxFailures  = 5
	breakerResetTimeout = 10 * time.Second
)

// Config configures the publisher.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	// LatestTTL bounds how long the latest:<channel> keys live.
	// Zero means the 30-minute default.
	LatestTTL time.Duration
}

// Publisher mirrors every broadcast onto Redis: PUBLISH pub:<channel>
// plus SET latest:<channel> with a TTL so late subscribers can read the
// current value. All writes run through a circuit breaker — a dead
// Redis degrades to dropped broadcasts, never to a stalled pipeline.
type Publisher struct {
	client *goredis.Client
	ttl    time.Duration
	cb     *CircuitBreaker

	// OnPublish, when set, receives the duration of each attempted
	// pipeline write (metric hook).
	OnPublish func(d time.Duration)
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// New creates a publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.LatestTTL
	if ttl == 0 {
		ttl = defaultLatestTTL
	}

	cb := NewCircuitBreaker(breakerMaxFailures, breakerResetTimeout)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s → %s", from, to)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Publisher{client: client, ttl: ttl, cb: cb}, nil
}

// BroadcastJSON publishes one envelope. Marshal failures and Redis
// errors are logged and dropped; the caller never blocks on them.
func (p *Publisher) BroadcastJSON(channel string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[redis] marshal %s: %v", channel, err)
		return
	}
	payload := string(data)

	err = p.cb.Execute(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		start := time.Now()
		pipe := p.client.Pipeline()
		pipe.Publish(ctx, "pub:"+channel, payload)
		pipe.Set(ctx, "latest:"+channel, payload, p.ttl)
		_, err := pipe.Exec(ctx)
		if p.OnPublish != nil {
			p.OnPublish(time.Since(start))
		}
		return err
	})
	if err != nil && err != ErrCircuitOpen {
		log.Printf("[redis] publish %s: %v", channel, err)
	}
}

// Healthy reports whether the breaker currently admits writes.
func (p *Publisher) Healthy() bool {
	return p.cb.CurrentState() != StateOpen
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
