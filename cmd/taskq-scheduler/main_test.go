package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/robbitt07/taskqueue/internal/config"
)

func TestRun_InvalidConfigReturnsError(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RABBITMQ_HOST", "")

	if err := run(); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRun_MissingScheduleFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SCHEDULE_FILE", filepath.Join(dir, "missing.json"))

	if err := run(); err == nil {
		t.Error("expected schedule load error")
	}
}
