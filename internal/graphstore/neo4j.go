package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4j implements Driver for any Bolt-protocol graph database.
type Neo4j struct {
	driver neo4j.DriverWithContext
	config Config
}

var _ Driver = (*Neo4j)(nil)

// NewNeo4j creates a new driver from config.
func NewNeo4j(cfg Config) (*Neo4j, error) {
	var auth neo4j.AuthToken
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	} else {
		auth = neo4j.NoAuth()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	return &Neo4j{
		driver: driver,
		config: cfg,
	}, nil
}

// Connect creates a driver with default config.
func Connect() (*Neo4j, error) {
	return NewNeo4j(DefaultConfig())
}

// Execute runs a read query and returns results.
func (n *Neo4j) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var records []Record
	for result.Next(ctx) {
		rec := result.Record()
		record := make(Record)
		for _, key := range rec.Keys {
			val, _ := rec.Get(key)
			record[key] = val
		}
		records = append(records, record)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}

	return records, nil
}

// ExecuteWrite runs a write query.
func (n *Neo4j) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("write query failed: %w", err)
	}

	return nil
}

// Close releases the database driver.
func (n *Neo4j) Close() error {
	return n.driver.Close(context.Background())
}

// Ping checks database connectivity.
func (n *Neo4j) Ping(ctx context.Context) error {
	return n.driver.VerifyConnectivity(ctx)
}
