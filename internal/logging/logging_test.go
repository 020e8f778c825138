package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
)

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		AppName:           "tvsync",
		LogLevel:          "info",
		LogFilePath:       filepath.Join(dir, "logs", "daemon.jsonl"),
		LogFileMaxMB:      1,
		LogFileMaxBackups: 1,
		LogFileMaxAgeDays: 1,
	}
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hello from test")
	_ = logger.Sync()

	data, err := os.ReadFile(cfg.LogFilePath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"app":"tvsync"`) {
		t.Fatalf("log file missing app field: %s", data)
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(&config.Config{LogLevel: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
