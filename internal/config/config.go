package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	DatabaseURL     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaAlertTopic  string
	KafkaGroupID     string

	BatchSize          int
	BatchFlushInterval time.Duration

	// Realtime push schedule.
	PushInterval      time.Duration
	HeartbeatInterval time.Duration
	ActivityLimit     int

	// Redis stats cache configuration. Caching is enabled when REDIS_ADDR is set.
	RedisAddr     string
	RedisEnabled  bool
	StatsCacheTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	flushInterval, err := parseDurationEnv("BATCH_FLUSH_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	pushInterval, err := parseDurationEnv("PUSH_INTERVAL", 10*time.Second)
	if err != nil {
		return nil, err
	}
	heartbeatInterval, err := parseDurationEnv("HEARTBEAT_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	statsCacheTTL, err := parseDurationEnv("STATS_CACHE_TTL", 5*time.Second)
	if err != nil {
		return nil, err
	}

	batchSize, err := parseIntEnv("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}
	activityLimit, err := parseIntEnv("ACTIVITY_LIMIT", 5)
	if err != nil {
		return nil, err
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	redisEnabled := redisAddr != ""
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		redisEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:     envOrDefault("DATABASE_URL", "postgres://localhost:5432/hazardwatch?sslmode=disable"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "raw-social-posts"),
		KafkaAlertTopic:  envOrDefault("KAFKA_ALERT_TOPIC", "hazard-alerts"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "hazard-monitor"),

		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		PushInterval:      pushInterval,
		HeartbeatInterval: heartbeatInterval,
		ActivityLimit:     activityLimit,

		RedisAddr:     redisAddr,
		RedisEnabled:  redisEnabled,
		StatsCacheTTL: statsCacheTTL,
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaAlertTopic == "" {
		return nil, errors.New("KAFKA_ALERT_TOPIC is required")
	}
	if cfg.RedisEnabled && cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ENABLED is true but REDIS_ADDR is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
