package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.BoardRows != 4 {
		t.Errorf("expected BoardRows=4, got %d", cfg.BoardRows)
	}
	if cfg.BoardCols != 4 {
		t.Errorf("expected BoardCols=4, got %d", cfg.BoardCols)
	}
	if cfg.TotalPairs() != 8 {
		t.Errorf("expected TotalPairs=8, got %d", cfg.TotalPairs())
	}
	if cfg.RevealDurationMS != 1000 {
		t.Errorf("expected RevealDurationMS=1000, got %d", cfg.RevealDurationMS)
	}
	if cfg.HistoryLimit != 20 {
		t.Errorf("expected HistoryLimit=20, got %d", cfg.HistoryLimit)
	}
	if cfg.WSPort != 8080 {
		t.Errorf("expected WSPort=8080, got %d", cfg.WSPort)
	}
	if cfg.ReconnectTimeoutSec != 120 {
		t.Errorf("expected ReconnectTimeoutSec=120, got %d", cfg.ReconnectTimeoutSec)
	}
	if cfg.NATSSubject != "memory.rounds.completed" {
		t.Errorf("unexpected NATSSubject %q", cfg.NATSSubject)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("BOARD_ROWS", "6")
	t.Setenv("BOARD_COLS", "6")
	t.Setenv("WS_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/memory")

	cfg := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))

	if cfg.BoardRows != 6 {
		t.Errorf("expected BoardRows=6 after env override, got %d", cfg.BoardRows)
	}
	if cfg.BoardCols != 6 {
		t.Errorf("expected BoardCols=6 after env override, got %d", cfg.BoardCols)
	}
	if cfg.WSPort != 9090 {
		t.Errorf("expected WSPort=9090 after env override, got %d", cfg.WSPort)
	}
	if cfg.DatabaseURL != "postgres://localhost/memory" {
		t.Errorf("expected DatabaseURL override, got %q", cfg.DatabaseURL)
	}
	// Non-overridden fields should remain default
	if cfg.RevealDurationMS != 1000 {
		t.Errorf("expected RevealDurationMS=1000 (default), got %d", cfg.RevealDurationMS)
	}
}

func TestLoadWithInvalidEnv(t *testing.T) {
	t.Setenv("BOARD_ROWS", "invalid")

	cfg := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))

	if cfg.BoardRows != 4 {
		t.Errorf("expected BoardRows=4 (default) with invalid env, got %d", cfg.BoardRows)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"board_rows": 2, "board_cols": 3, "history_limit": 5}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := LoadFrom(path)

	if cfg.BoardRows != 2 || cfg.BoardCols != 3 {
		t.Errorf("expected 2x3 board from file, got %dx%d", cfg.BoardRows, cfg.BoardCols)
	}
	if cfg.HistoryLimit != 5 {
		t.Errorf("expected HistoryLimit=5 from file, got %d", cfg.HistoryLimit)
	}
	if cfg.MaxNameLength != 24 {
		t.Errorf("fields absent from file should keep defaults, got MaxNameLength=%d", cfg.MaxNameLength)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		cols    int
		wantErr bool
	}{
		{"square", 4, 4, false},
		{"tiny", 1, 2, false},
		{"odd", 3, 3, true},
		{"empty", 0, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.BoardRows, cfg.BoardCols = tt.rows, tt.cols
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err=%v, wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "debug"
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
	cfg.LogLevel = "nonsense"
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected info fallback, got %v", cfg.SlogLevel())
	}
}
