package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// Presence
	DefaultAwayThreshold    = 5 * time.Minute
	DefaultOfflineThreshold = 30 * time.Minute
	DefaultSweepInterval    = 60 * time.Second
	PresenceMirrorTTL       = 2 * time.Minute

	// Calls
	DefaultRingingTimeout = 60 * time.Second

	// Delivery
	DefaultSendBuffer    = 256
	DefaultSendTimeout   = 5 * time.Second
	DefaultDispatchQueue = 1024

	// History
	HistoryReplayLimit = 50
)

// ScoringWeights maps content markers to the advisory confidence bonus
// the heuristic scorer attaches to a message.
var ScoringWeights = map[string]float64{
	"question": 0.10,
	"urgent":   0.25,
	"mention":  0.15,
}

// Config holds the runtime settings for the realtime server. Thresholds are
// configurable because the upstream system treats them as tunables, not
// hard contracts.
type Config struct {
	ListenAddr    string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	JWTSecret     string
	TelegramToken string

	SingleSession bool

	AwayThreshold    time.Duration
	OfflineThreshold time.Duration
	SweepInterval    time.Duration
	RingingTimeout   time.Duration

	SendBuffer    int
	SendTimeout   time.Duration
	DispatchQueue int
}

// Load reads configuration from the environment, falling back to defaults.
func Load() Config {
	return Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		DatabaseDSN:   getEnv("DATABASE_DSN", "host=localhost user=user password=password dbname=teamgrid port=5432 sslmode=disable"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     getEnv("JWT_SECRET", "dev-only-secret"),
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		SingleSession: os.Getenv("SINGLE_SESSION") == "true",

		AwayThreshold:    getDuration("AWAY_THRESHOLD", DefaultAwayThreshold),
		OfflineThreshold: getDuration("OFFLINE_THRESHOLD", DefaultOfflineThreshold),
		SweepInterval:    getDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		RingingTimeout:   getDuration("RINGING_TIMEOUT", DefaultRingingTimeout),

		SendBuffer:    getInt("SEND_BUFFER", DefaultSendBuffer),
		SendTimeout:   getDuration("SEND_TIMEOUT", DefaultSendTimeout),
		DispatchQueue: getInt("DISPATCH_QUEUE", DefaultDispatchQueue),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
