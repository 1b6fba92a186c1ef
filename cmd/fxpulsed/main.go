package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pquerna/otp/totp"

	"fxpulse/config"
	"fxpulse/internal/api"
	"fxpulse/internal/feed"
	"fxpulse/internal/gateway"
	"fxpulse/internal/indicator"
	"fxpulse/internal/logger"
	"fxpulse/internal/metrics"
	"fxpulse/internal/model"
	"fxpulse/internal/session"
	redisstore "fxpulse/internal/store/redis"
	sqlitestore "fxpulse/internal/store/sqlite"
	"fxpulse/internal/strength"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[fxpulsed] starting...")

	cfg := config.Load()
	logger.Init("fxpulsed", logger.ParseLevel(cfg.LogLevel))

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown plumbing ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite watchlist store ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	watchlist, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[fxpulsed] sqlite init failed: %v", err)
	}
	defer watchlist.Close()
	log.Println("[fxpulsed] watchlist store ready")

	// ---- Optional Redis publisher ----
	var publisher *redisstore.Publisher
	if cfg.RedisAddr != "" {
		health.SetRedisEnabled(true)
		publisher, err = redisstore.New(redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("[fxpulsed] WARNING: redis init failed: %v (continuing without redis)", err)
		} else {
			publisher.OnPublish = func(d time.Duration) {
				prom.RedisPublishDur.Observe(d.Seconds())
			}
			log.Println("[fxpulsed] redis publisher ready")
		}
	}

	if publisher != nil {
		health.StartLivenessChecker(ctx, publisher.Client(), watchlist.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, watchlist.DB(), 10*time.Second)
	}

	// ---- Session (series store + indicator pipeline) ----
	sess := session.NewSession(session.Config{
		DefaultTimeframe: cfg.DefaultTimeframe,
		RSIPeriod:        cfg.RSIPeriod,
		Thresholds: indicator.Thresholds{
			Oversold:   cfg.RSIOversold,
			Overbought: cfg.RSIOverbought,
		},
		Weights: indicator.RFIWeights{
			RSI:    cfg.RFIWeightRSI,
			Volume: cfg.RFIWeightVolume,
			Price:  cfg.RFIWeightPrice,
		},
		Strength:          strengthConfig(cfg.StrengthMode),
		RecomputeInterval: cfg.RecomputeInterval,
	})
	sess.BindWatchlist(watchlist)
	sess.OnRecompute = func(d time.Duration) { prom.RecomputeDur.Observe(d.Seconds()) }
	sess.OnEvent = func(eventType string) { prom.EventsTotal.WithLabelValues(eventType).Inc() }

	// ---- Dashboard WS hub ----
	hub := gateway.NewHub()
	hub.OnClientCount = func(n int) { prom.GatewayClients.Set(float64(n)) }
	sess.AddSink(hub)
	if publisher != nil {
		sess.AddSink(publisher)
	}

	// ---- Feed connection ----
	mgr := feed.NewManager(feed.Config{
		URL:    cfg.FeedURL,
		APIKey: cfg.FeedAPIKey,
		AuthCodeFunc: func() string {
			if cfg.FeedTOTPSecret == "" {
				return ""
			}
			code, err := totp.GenerateCode(cfg.FeedTOTPSecret, time.Now())
			if err != nil {
				log.Printf("[fxpulsed] TOTP generation failed: %v", err)
				return ""
			}
			return code
		},
	}, &instrumentedHandler{sess: sess, prom: prom, health: health})
	mgr.OnFrame = func(kind string) { prom.FramesTotal.WithLabelValues(kind).Inc() }
	mgr.OnMalformed = func() { prom.MalformedFrames.Inc() }
	sess.BindFeed(mgr)

	// ---- Recompute scheduler ----
	go sess.Run(ctx)

	// ---- Reconnect supervisor ----
	// The manager itself never retries; this loop is the daemon's
	// always-on policy with capped backoff.
	go func() {
		backoff := 2 * time.Second
		for {
			if ctx.Err() != nil {
				return
			}
			if mgr.State() == feed.StateDisconnected {
				if err := mgr.Connect(ctx); err != nil {
					log.Printf("[fxpulsed] feed connect failed: %v (retrying in %v)", err, backoff)
					prom.WSReconnects.Inc()
					select {
					case <-ctx.Done():
						return
					case <-time.After(backoff):
					}
					if backoff < 30*time.Second {
						backoff *= 2
					}
					continue
				}
				backoff = 2 * time.Second
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	// ---- Gateway HTTP server (REST + WS) ----
	mux := api.NewRouter(sess, watchlist)
	mux.HandleFunc("/ws", hub.ServeWS)
	gwSrv := &http.Server{Addr: cfg.GatewayAddr, Handler: mux}
	go func() {
		log.Printf("[fxpulsed] gateway listening on %s", cfg.GatewayAddr)
		if err := gwSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[fxpulsed] gateway error: %v", err)
		}
	}()

	log.Println("[fxpulsed] pipeline ready")

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[fxpulsed] shutdown signal received, cleaning up...")
	cancel()
	mgr.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	gwSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)

	if publisher != nil {
		publisher.Close()
	}

	log.Println("[fxpulsed] shutdown complete.")
}

func strengthConfig(mode string) strength.Config {
	sc := strength.DefaultConfig()
	if mode == "live" {
		sc.Mode = strength.ModeLive
	} else {
		sc.Mode = strength.ModeClosed
	}
	return sc
}

// instrumentedHandler wraps the session as the feed handler, layering
// metric and health updates over the dispatched events.
type instrumentedHandler struct {
	sess   *session.Session
	prom   *metrics.Metrics
	health *metrics.HealthStatus
}

func (h *instrumentedHandler) OnConnected(tfs []string) {
	h.health.SetFeedConnected(true)
	h.sess.OnConnected(tfs)
}

func (h *instrumentedHandler) OnSubscribed(symbol, timeframe string) {
	h.sess.OnSubscribed(symbol, timeframe)
}

func (h *instrumentedHandler) OnUnsubscribed(symbol string) {
	h.sess.OnUnsubscribed(symbol)
}

func (h *instrumentedHandler) OnInitialOHLC(symbol, timeframe string, bars []model.Bar) {
	h.sess.OnInitialOHLC(symbol, timeframe, bars)
}

func (h *instrumentedHandler) OnTicks(ticks []model.Tick) {
	h.prom.TicksTotal.Add(float64(len(ticks)))
	if n := len(ticks); n > 0 {
		h.health.SetLastTickTime(ticks[n-1].Timestamp)
	}
	h.sess.OnTicks(ticks)
}

func (h *instrumentedHandler) OnOHLCUpdate(bar model.Bar) {
	h.prom.BarUpdatesTotal.Inc()
	h.sess.OnOHLCUpdate(bar)
}

func (h *instrumentedHandler) OnFeedError(code int, message string) {
	h.sess.OnFeedError(code, message)
}

func (h *instrumentedHandler) OnConnectionLost(err error) {
	h.health.SetFeedConnected(false)
	h.sess.OnConnectionLost(err)
}

func (h *instrumentedHandler) OnReset() {
	h.health.SetFeedConnected(false)
	h.sess.OnReset()
}
