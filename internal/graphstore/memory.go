package graphstore

import (
	"context"
	"sync"
)

// MemoryDriver is an in-process Driver that records writes. It backs tests
// and runs where no graph database is configured.
type MemoryDriver struct {
	mu     sync.Mutex
	writes []WriteOp
}

// WriteOp is one recorded ExecuteWrite call.
type WriteOp struct {
	Query  string
	Params map[string]any
}

var _ Driver = (*MemoryDriver)(nil)

// NewMemoryDriver creates an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{}
}

// Execute returns no rows; the memory driver does not evaluate queries.
func (m *MemoryDriver) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	return nil, nil
}

// ExecuteWrite records the write.
func (m *MemoryDriver) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, WriteOp{Query: query, Params: params})
	return nil
}

// Writes returns a copy of every recorded write.
func (m *MemoryDriver) Writes() []WriteOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriteOp, len(m.writes))
	copy(out, m.writes)
	return out
}

// Close is a no-op.
func (m *MemoryDriver) Close() error {
	return nil
}

// Ping is always healthy.
func (m *MemoryDriver) Ping(ctx context.Context) error {
	return nil
}
