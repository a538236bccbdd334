package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joss/taskmesh/internal/config"
	"github.com/joss/taskmesh/internal/session"
)

// exitOnError prints the error and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// meshPath returns a path under the data directory.
func meshPath(subdir ...string) string {
	parts := append([]string{config.Env().DataDir}, subdir...)
	return filepath.Join(parts...)
}

// meshSessionsPath returns the session store directory.
func meshSessionsPath() string {
	return meshPath("sessions")
}

// meshCapabilitiesPath returns the capability manifest directory.
func meshCapabilitiesPath() string {
	return meshPath("capabilities")
}

// openStore opens the configured session store. backend is "file" or
// "sqlite".
func openStore(backend string) (session.Store, error) {
	switch backend {
	case "sqlite":
		return session.NewSQLiteStore(config.Env().DataDir)
	case "file", "":
		return session.NewFileStore(meshSessionsPath())
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// prettyJSON marshals with indentation.
func prettyJSON(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// truncateStr truncates a string to n characters with ellipsis.
func truncateStr(s string, n int) string {
	if n < 4 {
		n = 4
	}
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
