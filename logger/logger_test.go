package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "job.log")
	log, err := New(Config{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Info("Test MAE", zap.Float64("mae", 2.5))
	_ = log.Sync()

	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	line := strings.TrimSpace(string(payload))
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("expected json log line, got %q: %v", line, err)
	}
	if entry["msg"] != "Test MAE" || entry["mae"] != 2.5 {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	log, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.Core().Enabled(zap.DebugLevel) {
		t.Fatal("debug should be disabled by default")
	}
	if !log.Core().Enabled(zap.InfoLevel) {
		t.Fatal("info should be enabled by default")
	}
}
