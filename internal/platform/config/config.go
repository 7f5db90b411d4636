package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	AppURL    string `env:"APP_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	EventLogCapacity     int           `env:"EVENT_LOG_CAPACITY" default:"100"`
	StreamInterval       time.Duration `env:"STREAM_INTERVAL" default:"2s"`
	StreamKeepAliveEvery int           `env:"STREAM_KEEPALIVE_EVERY" default:"15"`
	NotificationInterval time.Duration `env:"NOTIFICATION_INTERVAL" default:"5s"`
	StockInterval        time.Duration `env:"STOCK_INTERVAL" default:"1s"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL" default:"15s"`

	SendBufferSize int           `env:"SEND_BUFFER_SIZE" default:"16"`
	WriteTimeout   time.Duration `env:"WRITE_TIMEOUT" default:"5s"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"100"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"20"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if !slices.Contains([]string{"development", "production", "test"}, cfg.AppEnv) {
		return fmt.Errorf("APP_ENV must be one of development, production, test, got %q", cfg.AppEnv)
	}

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}

	if cfg.AppURL != "" {
		u, err := url.Parse(cfg.AppURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("APP_URL must be an absolute URL, got %q", cfg.AppURL)
		}
	} else if !cfg.IsDevelopment() {
		return errors.New("APP_URL is required outside development")
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	positiveDurations := []struct {
		name  string
		value time.Duration
	}{
		{"HEARTBEAT_INTERVAL", cfg.HeartbeatInterval},
		{"STREAM_INTERVAL", cfg.StreamInterval},
		{"NOTIFICATION_INTERVAL", cfg.NotificationInterval},
		{"STOCK_INTERVAL", cfg.StockInterval},
		{"STATS_INTERVAL", cfg.StatsInterval},
		{"WRITE_TIMEOUT", cfg.WriteTimeout},
		{"SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout},
	}
	for _, d := range positiveDurations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	positiveInts := []struct {
		name  string
		value int
	}{
		{"EVENT_LOG_CAPACITY", cfg.EventLogCapacity},
		{"SEND_BUFFER_SIZE", cfg.SendBufferSize},
		{"MAX_WEBSOCKET_CONNECTIONS", cfg.MaxWebSocketConnections},
		{"MAX_CONNECTIONS_PER_IP", cfg.MaxConnectionsPerIP},
		{"CONNECTION_BURST", cfg.ConnectionBurst},
	}
	for _, n := range positiveInts {
		if n.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", n.name, n.value)
		}
	}

	if cfg.StreamKeepAliveEvery < 0 {
		return fmt.Errorf("STREAM_KEEPALIVE_EVERY must not be negative, got %d", cfg.StreamKeepAliveEvery)
	}
	if cfg.ConnectionRate <= 0 {
		return fmt.Errorf("CONNECTION_RATE must be positive, got %g", cfg.ConnectionRate)
	}
	if cfg.MaxConnectionsPerIP > cfg.MaxWebSocketConnections {
		return errors.New("MAX_CONNECTIONS_PER_IP must not exceed MAX_WEBSOCKET_CONNECTIONS")
	}

	return nil
}
