package querycache

import (
	"context"
	"errors"
	"sync"
)

var ErrNotFound = errors.New("question not cached")

// Store maps verbatim question text to SQL. Keys are compared exactly: case
// and whitespace differences are distinct questions.
type Store interface {
	Lookup(ctx context.Context, question string) (string, error)
	Store(ctx context.Context, question, sql string) error
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]string{}}
}

func (m *Memory) Lookup(_ context.Context, question string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sql, ok := m.entries[question]
	if !ok {
		return "", ErrNotFound
	}
	return sql, nil
}

func (m *Memory) Store(_ context.Context, question, sql string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[question] = sql
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
