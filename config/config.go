// Package config loads process configuration exclusively from environment
// variables, following the env-var-only CLI contract (spec §6).
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment names the deployment tag carried on every config.
type Environment string

const (
	Production Environment = "production"
	Sandbox    Environment = "sandbox"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Environment Environment

	Port int

	Symbols             []string
	PrimaryInterval     string
	EvalIntervalSeconds int
	WorkerConcurrency   int

	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	StrategySeedPath string

	FeedEndpoint string

	ConsumerGroup string
	ConsumerName  string

	PELReclaimInterval time.Duration
	PELMinIdle         time.Duration

	StoreTimeout time.Duration
	CacheTimeout time.Duration
	QueueTimeout time.Duration
}

// Load reads configuration from environment variables with sensible
// defaults. It first loads a local .env file if present (a convenience for
// local development; production deployments set real environment variables
// and the .env load is a silent no-op when the file is absent).
func Load() *Config {
	_ = godotenv.Load()

	env := Environment(getEnv("ENVIRONMENT", string(Sandbox)))

	return &Config{
		Environment: env,

		Port: getEnvInt("PORT", 8080),

		Symbols:             parseSymbols(getEnv("SYMBOLS", "BTC,ETH")),
		PrimaryInterval:     getEnv("PRIMARY_INTERVAL", "1m"),
		EvalIntervalSeconds: getEnvInt("EVAL_INTERVAL_SECONDS", 60),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 0), // 0 = len(Symbols)

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/signals.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		StrategySeedPath: getEnv("STRATEGY_SEED_PATH", "config/strategies.yaml"),

		FeedEndpoint: getEnv("FEED_ENDPOINT", "wss://api.hyperliquid.xyz/ws"),

		ConsumerGroup: getEnv("CONSUMER_GROUP", "signalengine"),
		ConsumerName:  getEnv("CONSUMER_NAME", hostnameOrDefault("worker-1")),

		PELReclaimInterval: time.Duration(getEnvInt("PEL_RECLAIM_INTERVAL_SECONDS", 30)) * time.Second,
		PELMinIdle:         time.Duration(getEnvInt("PEL_MIN_IDLE_MS", 60000)) * time.Millisecond,

		StoreTimeout: 5 * time.Second,
		CacheTimeout: 5 * time.Second,
		QueueTimeout: 5 * time.Second,
	}
}

// EffectiveConcurrency resolves WorkerConcurrency, defaulting to one worker
// per configured symbol when unset (spec §4.3).
func (c *Config) EffectiveConcurrency() int {
	if c.WorkerConcurrency > 0 {
		return c.WorkerConcurrency
	}
	if len(c.Symbols) == 0 {
		return 1
	}
	return len(c.Symbols)
}

func hostnameOrDefault(fallback string) string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return fallback
	}
	return h
}

func parseSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}
