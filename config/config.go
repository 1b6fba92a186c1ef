package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Feed credentials
	FeedURL        string
	FeedAPIKey     string
	FeedTOTPSecret string

	// Indicator pipeline
	DefaultTimeframe  string
	RSIPeriod         int
	RSIOversold       float64
	RSIOverbought     float64
	RFIWeightRSI      float64
	RFIWeightVolume   float64
	RFIWeightPrice    float64
	StrengthMode      string // "live" or "closed"
	RecomputeInterval time.Duration

	// Infrastructure
	RedisAddr     string // empty disables the Redis publisher
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		FeedURL:        mustEnv("FEED_URL"),
		FeedAPIKey:     mustEnv("FEED_API_KEY"),
		FeedTOTPSecret: getEnv("FEED_TOTP_SECRET", ""),

		DefaultTimeframe:  getEnv("DEFAULT_TIMEFRAME", "1H"),
		RSIPeriod:         getEnvInt("RSI_PERIOD", 14),
		RSIOversold:       getEnvFloat("RSI_OVERSOLD", 30),
		RSIOverbought:     getEnvFloat("RSI_OVERBOUGHT", 70),
		RFIWeightRSI:      getEnvFloat("RFI_WEIGHT_RSI", 0.4),
		RFIWeightVolume:   getEnvFloat("RFI_WEIGHT_VOLUME", 0.3),
		RFIWeightPrice:    getEnvFloat("RFI_WEIGHT_PRICE", 0.3),
		StrengthMode:      getEnv("STRENGTH_MODE", "closed"),
		RecomputeInterval: time.Duration(getEnvInt("RECOMPUTE_INTERVAL_MS", 250)) * time.Millisecond,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/fxpulse.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return f
}
