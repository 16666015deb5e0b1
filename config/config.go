package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Config holds all configurable server and game parameters.
type Config struct {
	BoardRows        int `json:"board_rows"`
	BoardCols        int `json:"board_cols"`
	RevealDurationMS int `json:"reveal_duration_ms"`
	MaxNameLength    int `json:"max_name_length"`
	WSPort           int `json:"ws_port"`

	// HistoryLimit caps the number of round summaries kept in a player's statistics.
	HistoryLimit int `json:"history_limit"`

	// FeedbackTimeoutMS bounds each sound cue delivery; cues never hold up scoring.
	FeedbackTimeoutMS int `json:"feedback_timeout_ms"`

	// ReconnectTimeoutSec is how long a disconnected player's session is kept for a rejoin.
	ReconnectTimeoutSec int `json:"reconnect_timeout_sec"`

	// RateLimitPerSec and RateLimitBurst throttle inbound WebSocket messages per client.
	RateLimitPerSec int `json:"rate_limit_per_sec"`
	RateLimitBurst  int `json:"rate_limit_burst"`

	DatabaseURL     string `json:"database_url"`
	NeonAuthBaseURL string `json:"neon_auth_base_url"`
	NATSURL         string `json:"nats_url"`
	NATSSubject     string `json:"nats_subject"`
	LogLevel        string `json:"log_level"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		BoardRows:           4,
		BoardCols:           4,
		RevealDurationMS:    1000,
		MaxNameLength:       24,
		WSPort:              8080,
		HistoryLimit:        20,
		FeedbackTimeoutMS:   2000,
		ReconnectTimeoutSec: 120,
		RateLimitPerSec:     10,
		RateLimitBurst:      20,
		NATSSubject:         "memory.rounds.completed",
		LogLevel:            "info",
	}
}

// TotalPairs is the number of pairs on a board of the configured size.
func (c *Config) TotalPairs() int {
	return c.BoardRows * c.BoardCols / 2
}

// Validate reports a board that cannot be filled with pairs.
func (c *Config) Validate() error {
	if c.BoardRows <= 0 || c.BoardCols <= 0 {
		return fmt.Errorf("board must have at least one row and column, got %dx%d", c.BoardRows, c.BoardCols)
	}
	if (c.BoardRows*c.BoardCols)%2 != 0 {
		return fmt.Errorf("board %dx%d has an odd number of cards", c.BoardRows, c.BoardCols)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative, got %d", c.HistoryLimit)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads configuration from an optional config.json file,
// then applies environment variable overrides. Fields not set
// in either source retain their default values.
func Load() *Config {
	return LoadFrom("config.json")
}

// LoadFrom is Load with an explicit config file path.
func LoadFrom(path string) *Config {
	cfg := Defaults()

	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			slog.Warn("failed to parse config file", "tag", "config", "path", path, "err", err)
		}
	}

	overrideInt(&cfg.BoardRows, "BOARD_ROWS")
	overrideInt(&cfg.BoardCols, "BOARD_COLS")
	overrideInt(&cfg.RevealDurationMS, "REVEAL_DURATION_MS")
	overrideInt(&cfg.MaxNameLength, "MAX_NAME_LENGTH")
	overrideInt(&cfg.WSPort, "WS_PORT")
	overrideInt(&cfg.HistoryLimit, "HISTORY_LIMIT")
	overrideInt(&cfg.FeedbackTimeoutMS, "FEEDBACK_TIMEOUT_MS")
	overrideInt(&cfg.ReconnectTimeoutSec, "RECONNECT_TIMEOUT_SEC")
	overrideInt(&cfg.RateLimitPerSec, "RATE_LIMIT_PER_SEC")
	overrideInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST")
	overrideString(&cfg.DatabaseURL, "DATABASE_URL")
	overrideString(&cfg.NeonAuthBaseURL, "NEON_AUTH_BASE_URL")
	overrideString(&cfg.NATSURL, "NATS_URL")
	overrideString(&cfg.NATSSubject, "NATS_SUBJECT")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")

	return cfg
}

func overrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*field = n
		} else {
			slog.Warn("invalid integer in environment", "tag", "config", "key", envKey, "value", val)
		}
	}
}

func overrideString(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}
