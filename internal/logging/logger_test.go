package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitializeCreatesLogsDir(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, "development", "", false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if _, err := os.Stat(filepath.Join(dir, "logs")); err != nil {
		t.Fatalf("logs directory not created: %v", err)
	}
	if currentLevel() != LevelDebug {
		t.Errorf("expected debug level in development env, got %d", currentLevel())
	}
}

func TestInitializeProductionDefaultsToInfo(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, "production", "", false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	if currentLevel() != LevelInfo {
		t.Errorf("expected info level in production env, got %d", currentLevel())
	}
}

func TestGetWritesToFile(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, "development", "debug", false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	l := Get(CategoryStore)
	l.Info("hello %s", "world")

	path := filepath.Join(dir, "logs", "store.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("could not read log file: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty log file")
	}
}

func TestTimerStopWithThreshold(t *testing.T) {
	dir := t.TempDir()
	if err := Initialize(dir, "development", "debug", false); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer CloseAll()

	timer := StartTimer(CategoryStore, "TestOp")
	elapsed := timer.StopWithThreshold(0)
	if elapsed < 0 {
		t.Error("expected non-negative elapsed duration")
	}
}
