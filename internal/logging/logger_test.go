package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dispatchscan/internal/config"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleHandlerLiftsComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))
	logger = NewComponentLogger(logger, "pipeline")

	logger.Info("scan submitted", String("order", "ORD-1"), String("note", "two words"))

	line := buf.String()
	if !strings.Contains(line, " INFO pipeline: scan submitted") {
		t.Fatalf("unexpected line %q", line)
	}
	if !strings.Contains(line, "order=ORD-1") {
		t.Fatalf("missing order attr in %q", line)
	}
	if !strings.Contains(line, `note="two words"`) {
		t.Fatalf("expected quoted value in %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be lifted into the prefix: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl, false))

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info line should be filtered: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "WARN shown") {
		t.Fatalf("warn line missing: %q", buf.String())
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newConsoleHandler(&buf, new(slog.LevelVar), false))
	logger.WithGroup("request").Info("call", String("path", "/dispatch/scan"))
	if !strings.Contains(buf.String(), "request.path=/dispatch/scan") {
		t.Fatalf("expected grouped key, got %q", buf.String())
	}
}

func TestJSONHandlerKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))
	logger.Warn("device lost", String(FieldEventType, "capture_device_removed"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload[FieldEventType] != "capture_device_removed" {
		t.Fatalf("unexpected event type %v", payload[FieldEventType])
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))
	WarnWithContext(logger, "ledger seed failed", "ledger_seed_failed", String(FieldImpact, "counter starts at zero"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload[FieldEventType] != "ledger_seed_failed" {
		t.Fatalf("event type = %v", payload[FieldEventType])
	}
	if payload[FieldErrorHint] == nil {
		t.Fatal("expected default error hint")
	}
	if payload[FieldImpact] != "counter starts at zero" {
		t.Fatalf("caller impact overwritten: %v", payload[FieldImpact])
	}
}

func TestNewFromConfigWritesSessionLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, path, err := NewFromConfig(&cfg, "sess-1")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"session_id":"sess-1"`) {
		t.Fatalf("session id missing from %s", data)
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.log")
	recent := filepath.Join(dir, "recent.log")
	current := filepath.Join(dir, "current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, recent, current, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().Add(-10 * 24 * time.Hour)
	for _, p := range []string{old, current, other} {
		if err := os.Chtimes(p, stale, stale); err != nil {
			t.Fatal(err)
		}
	}

	removed := CleanupOldLogs(NewNop(), dir, current, 7)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("old log should be removed")
	}
	for _, p := range []string{recent, current, other} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("%s should remain: %v", p, err)
		}
	}
}
