package loghandler

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"
)

func TestCompactHandler_TagPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, slog.LevelInfo))

	logger.Info("round ended", "tag", "game", "perfect", true)

	line := buf.String()
	if !regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} \[game\] round ended perfect=true\n$`).MatchString(line) {
		t.Errorf("unexpected line %q", line)
	}
	if strings.Contains(line, "tag=") {
		t.Errorf("tag should not be repeated as key=value: %q", line)
	}
}

func TestCompactHandler_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, slog.LevelWarn))

	logger.Info("hidden")
	logger.Warn("shown", "tag", "ws")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "[ws] WARN: shown") {
		t.Errorf("expected warn record with marker, got %q", out)
	}
}

func TestCompactHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, slog.LevelDebug)).With("tag", "storage", "user", "u1")

	logger.Debug("saved")

	out := buf.String()
	if !strings.Contains(out, "[storage] saved user=u1") {
		t.Errorf("expected inherited tag and attrs, got %q", out)
	}
}
