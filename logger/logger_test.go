package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"exchangeflow/config"
	"exchangeflow/logger"
)

// go test -v --run TestNewWithFile
func TestNewWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "flowstat.log")

	log, err := logger.New(config.LogConfig{Level: "debug", Format: "json", OutputFile: path})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	log.Info("hello")
	_ = log.Sync()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected log file to have content")
	}
}

// go test -v --run TestNewInvalidLevel
func TestNewInvalidLevel(t *testing.T) {
	if _, err := logger.New(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}
