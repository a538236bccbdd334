// Package graphstore exports dependency graphs and run outcomes to a graph
// database for diagnostics. High-level code depends on the Driver
// abstraction, not on a concrete database client.
package graphstore

import (
	"context"

	"github.com/joss/taskmesh/internal/config"
)

// Record represents a single result row from a query.
type Record map[string]any

// Driver defines the interface for graph database operations.
type Driver interface {
	// Execute runs a read query and returns results.
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)

	// ExecuteWrite runs a write query (CREATE, MERGE, SET, DELETE).
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error

	// Close releases database resources.
	Close() error

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error
}

// Config holds database connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
}

// DefaultConfig returns configuration from the environment.
func DefaultConfig() Config {
	env := config.Env()
	uri := env.GraphURI
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	return Config{
		URI:      uri,
		Username: env.GraphUser,
		Password: env.GraphPassword,
	}
}

// GetString extracts a string value from a Record.
func GetString(r Record, key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt64 extracts an int64 value from a Record.
func GetInt64(r Record, key string) int64 {
	if v, ok := r[key]; ok {
		switch n := v.(type) {
		case int64:
			return n
		case int:
			return int64(n)
		case float64:
			return int64(n)
		}
	}
	return 0
}
