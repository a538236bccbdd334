// Package config provides centralized configuration management.
// All TASKMESH_* environment lookups live here instead of being scattered
// across the codebase.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// MeshEnv holds all taskmesh environment variables.
type MeshEnv struct {
	// Project is the current project name (TASKMESH_PROJECT)
	Project string

	// SessionID is the current session identifier (TASKMESH_SESSION_ID)
	SessionID string

	// DataDir is the state directory root (TASKMESH_DATA_DIR)
	DataDir string

	// MaxConcurrency is the default scheduler concurrency (TASKMESH_MAX_CONCURRENCY)
	MaxConcurrency int

	// DefaultTimeoutMillis is the default per-task timeout (TASKMESH_TASK_TIMEOUT_MS)
	DefaultTimeoutMillis int

	// GraphURI is the graph database URI for run exports (TASKMESH_GRAPH_URI)
	GraphURI string

	// GraphUser is the graph database user (TASKMESH_GRAPH_USER)
	GraphUser string

	// GraphPassword is the graph database password (TASKMESH_GRAPH_PASSWORD)
	GraphPassword string

	// NoColor disables colored output (TASKMESH_NO_COLOR)
	NoColor bool
}

var (
	env     *MeshEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *MeshEnv {
	envOnce.Do(func() {
		env = load()
	})
	return env
}

// Reset clears the singleton so the next Env call reloads. Test helper.
func Reset() {
	envOnce = sync.Once{}
	env = nil
}

func load() *MeshEnv {
	return &MeshEnv{
		Project:              os.Getenv("TASKMESH_PROJECT"),
		SessionID:            os.Getenv("TASKMESH_SESSION_ID"),
		DataDir:              getEnvDefault("TASKMESH_DATA_DIR", defaultDataDir()),
		MaxConcurrency:       getEnvInt("TASKMESH_MAX_CONCURRENCY", 4),
		DefaultTimeoutMillis: getEnvInt("TASKMESH_TASK_TIMEOUT_MS", 30000),
		GraphURI:             os.Getenv("TASKMESH_GRAPH_URI"),
		GraphUser:            os.Getenv("TASKMESH_GRAPH_USER"),
		GraphPassword:        os.Getenv("TASKMESH_GRAPH_PASSWORD"),
		NoColor:              os.Getenv("TASKMESH_NO_COLOR") == "1",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".taskmesh")
}

func getEnvDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
