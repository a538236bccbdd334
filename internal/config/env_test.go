package config

import (
	"testing"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv("TASKMESH_MAX_CONCURRENCY", "")
	t.Setenv("TASKMESH_TASK_TIMEOUT_MS", "")
	Reset()

	e := Env()
	if e.MaxConcurrency != 4 {
		t.Errorf("expected default concurrency 4, got %d", e.MaxConcurrency)
	}
	if e.DefaultTimeoutMillis != 30000 {
		t.Errorf("expected default timeout 30000, got %d", e.DefaultTimeoutMillis)
	}
	if e.DataDir == "" {
		t.Error("expected non-empty data dir")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TASKMESH_MAX_CONCURRENCY", "8")
	t.Setenv("TASKMESH_TASK_TIMEOUT_MS", "5000")
	t.Setenv("TASKMESH_PROJECT", "demo")
	Reset()

	e := Env()
	if e.MaxConcurrency != 8 {
		t.Errorf("expected concurrency 8, got %d", e.MaxConcurrency)
	}
	if e.DefaultTimeoutMillis != 5000 {
		t.Errorf("expected timeout 5000, got %d", e.DefaultTimeoutMillis)
	}
	if e.Project != "demo" {
		t.Errorf("expected project demo, got %s", e.Project)
	}
}

func TestEnvInvalidInt(t *testing.T) {
	t.Setenv("TASKMESH_MAX_CONCURRENCY", "not-a-number")
	Reset()

	if got := Env().MaxConcurrency; got != 4 {
		t.Errorf("invalid value should fall back to 4, got %d", got)
	}
}
