package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Stream    StreamConfig
	Ingest    IngestConfig
	Client    ClientConfig
	Dashboard DashboardConfig
}

// ServerConfig holds relay HTTP server settings.
type ServerConfig struct {
	Addr        string
	ReadTimeout time.Duration
	// WriteTimeout of zero disables the global write deadline; the SSE and
	// WebSocket streams are long-lived responses.
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// RedisConfig holds the optional swarm update bridge settings. An empty Addr
// disables the bridge.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
	Channel  string
}

// StreamConfig holds event stream fan-out settings.
type StreamConfig struct {
	Heartbeat    time.Duration
	ClientBuffer int
}

// IngestConfig holds per-IP rate limit settings for the update ingest
// endpoint.
type IngestConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ClientConfig holds sync client settings for scanwatch-tail.
type ClientConfig struct {
	BaseURL              string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	FetchTimeout         time.Duration
}

// DashboardConfig holds in-memory state bounds.
type DashboardConfig struct {
	LiveFeedMax   int
	HistoryWindow time.Duration
}

// Load reads configuration from environment variables. Defaults are safe
// for local development.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("SCANWATCH_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("SCANWATCH_SERVER_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("SCANWATCH_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	heartbeat, err := getEnvDuration("SCANWATCH_STREAM_HEARTBEAT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	clientBuffer, err := getEnvInt("SCANWATCH_STREAM_CLIENT_BUFFER", 64)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ingestRPS, err := getEnvFloat("SCANWATCH_INGEST_RPS", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	ingestBurst, err := getEnvInt("SCANWATCH_INGEST_BURST", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	reconnectInterval, err := getEnvDuration("SCANWATCH_CLIENT_RECONNECT_INTERVAL", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxReconnects, err := getEnvInt("SCANWATCH_CLIENT_MAX_RECONNECTS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	fetchTimeout, err := getEnvDuration("SCANWATCH_CLIENT_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	liveFeedMax, err := getEnvInt("SCANWATCH_LIVE_FEED_MAX", 200)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	historyWindow, err := getEnvDuration("SCANWATCH_HISTORY_WINDOW", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("SCANWATCH_CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("SCANWATCH_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Redis: RedisConfig{
			Addr:     getEnv("SCANWATCH_REDIS_ADDR", ""),
			Password: getEnv("SCANWATCH_REDIS_PASSWORD", ""),
			DB:       redisDB,
			Channel:  getEnv("SCANWATCH_REDIS_CHANNEL", "scanwatch:updates"),
		},
		Stream: StreamConfig{
			Heartbeat:    heartbeat,
			ClientBuffer: clientBuffer,
		},
		Ingest: IngestConfig{
			RequestsPerSecond: ingestRPS,
			Burst:             ingestBurst,
		},
		Client: ClientConfig{
			BaseURL:              getEnv("SCANWATCH_URL", "http://localhost:8080"),
			ReconnectInterval:    reconnectInterval,
			MaxReconnectAttempts: maxReconnects,
			FetchTimeout:         fetchTimeout,
		},
		Dashboard: DashboardConfig{
			LiveFeedMax:   liveFeedMax,
			HistoryWindow: historyWindow,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("SCANWATCH_SERVER_ADDR must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("SCANWATCH_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("SCANWATCH_SERVER_WRITE_TIMEOUT must be >= 0, got %s", c.Server.WriteTimeout)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("SCANWATCH_REDIS_DB must be >= 0, got %d", c.Redis.DB)
	}
	if c.Stream.Heartbeat <= 0 {
		return fmt.Errorf("SCANWATCH_STREAM_HEARTBEAT must be positive, got %s", c.Stream.Heartbeat)
	}
	if c.Stream.ClientBuffer < 1 {
		return fmt.Errorf("SCANWATCH_STREAM_CLIENT_BUFFER must be >= 1, got %d", c.Stream.ClientBuffer)
	}
	if c.Ingest.RequestsPerSecond <= 0 {
		return fmt.Errorf("SCANWATCH_INGEST_RPS must be positive, got %v", c.Ingest.RequestsPerSecond)
	}
	if c.Ingest.Burst < 1 {
		return fmt.Errorf("SCANWATCH_INGEST_BURST must be >= 1, got %d", c.Ingest.Burst)
	}
	if c.Client.ReconnectInterval <= 0 {
		return fmt.Errorf("SCANWATCH_CLIENT_RECONNECT_INTERVAL must be positive, got %s", c.Client.ReconnectInterval)
	}
	if c.Client.MaxReconnectAttempts < 1 {
		return fmt.Errorf("SCANWATCH_CLIENT_MAX_RECONNECTS must be >= 1, got %d", c.Client.MaxReconnectAttempts)
	}
	if c.Client.FetchTimeout <= 0 {
		return fmt.Errorf("SCANWATCH_CLIENT_FETCH_TIMEOUT must be positive, got %s", c.Client.FetchTimeout)
	}
	if c.Dashboard.LiveFeedMax < 1 {
		return fmt.Errorf("SCANWATCH_LIVE_FEED_MAX must be >= 1, got %d", c.Dashboard.LiveFeedMax)
	}
	if c.Dashboard.HistoryWindow <= 0 {
		return fmt.Errorf("SCANWATCH_HISTORY_WINDOW must be positive, got %s", c.Dashboard.HistoryWindow)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
