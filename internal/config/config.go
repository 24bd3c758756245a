package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Monitor  MonitorConfig
	Worker   WorkerConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	Addr     string
	User     string
	Password string
	Database string
}

type MonitorConfig struct {
	CheckTimeout    time.Duration
	WarnLatency     time.Duration
	StrikeThreshold int
	HistorySize     int
	SweepInterval   time.Duration
	Concurrency     int
	PollFallback    time.Duration
}

type WorkerConfig struct {
	Concurrency int
}

type MetricsConfig struct {
	Addr string
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first, if
// present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Addr:     getEnv("POSTGRES_ADDR", "localhost:5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "investmon"),
		},
		Monitor: MonitorConfig{
			CheckTimeout: getDurationEnv("MONITOR_CHECK_TIMEOUT", 5*time.Second),
			WarnLatency:  getDurationEnv("MONITOR_WARN_LATENCY", 2*time.Second),
			// Consecutive adverse checks before a displayed status flips.
			StrikeThreshold: getIntEnv("MONITOR_STRIKE_THRESHOLD", 3),
			HistorySize:     getIntEnv("MONITOR_HISTORY_SIZE", 50),
			SweepInterval:   getDurationEnv("MONITOR_SWEEP_INTERVAL", 5*time.Minute),
			Concurrency:     getIntEnv("MONITOR_CONCURRENCY", 8),
			PollFallback:    getDurationEnv("MONITOR_POLL_FALLBACK", 15*time.Second),
		},
		Worker: WorkerConfig{
			Concurrency: getIntEnv("WORKER_CONCURRENCY", 2),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
