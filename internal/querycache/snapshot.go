package querycache

import (
	"context"
	"fmt"
	"sync"

	"github.com/askmesh/askmesh/internal/observability"
)

// Persister reads and writes the whole question to SQL mapping at once.
type Persister interface {
	Load(ctx context.Context) (map[string]string, error)
	Save(ctx context.Context, entries map[string]string) error
}

// SnapshotStore keeps the mapping in memory, loaded once at open, and
// rewrites the persisted snapshot on every Store.
type SnapshotStore struct {
	mu      sync.RWMutex
	entries map[string]string
	persist Persister
}

func OpenSnapshot(ctx context.Context, persist Persister) (*SnapshotStore, error) {
	if persist == nil {
		return nil, fmt.Errorf("persister is required")
	}
	entries, err := persist.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load query cache: %w", err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	observability.SetCacheEntries(len(entries))
	return &SnapshotStore{entries: entries, persist: persist}, nil
}

func (s *SnapshotStore) Lookup(_ context.Context, question string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sql, ok := s.entries[question]
	if !ok {
		return "", ErrNotFound
	}
	return sql, nil
}

// Store records the entry in memory even when persisting it fails; the
// returned error reports the failed write.
func (s *SnapshotStore) Store(ctx context.Context, question, sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[question] = sql
	observability.SetCacheEntries(len(s.entries))

	snapshot := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		snapshot[k] = v
	}
	if err := s.persist.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("persist query cache: %w", err)
	}
	return nil
}

func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
