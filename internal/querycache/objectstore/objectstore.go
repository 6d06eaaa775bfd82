package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/askmesh/askmesh/internal/querycache"
	"github.com/askmesh/askmesh/internal/storage"
)

// Persister keeps the query cache snapshot as one JSON object in an object
// store, so several hosts can start from the same cache.
type Persister struct {
	store storage.ObjectStore
	key   string
}

func NewPersister(store storage.ObjectStore, key string) (*Persister, error) {
	if store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if err := storage.ValidateObjectKey(key); err != nil {
		return nil, err
	}
	return &Persister{store: store, key: key}, nil
}

// Open loads the snapshot at key and returns a store that rewrites it on
// every Store call.
func Open(ctx context.Context, store storage.ObjectStore, key string) (*querycache.SnapshotStore, error) {
	persist, err := NewPersister(store, key)
	if err != nil {
		return nil, err
	}
	return querycache.OpenSnapshot(ctx, persist)
}

func (p *Persister) Load(ctx context.Context) (map[string]string, error) {
	reader, err := p.store.Get(ctx, p.key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read cache object %s: %w", p.key, err)
	}
	return querycache.DecodeEntries(raw)
}

func (p *Persister) Save(ctx context.Context, entries map[string]string) error {
	raw, err := querycache.EncodeEntries(entries)
	if err != nil {
		return err
	}
	_, err = p.store.Put(ctx, p.key, bytes.NewReader(raw), int64(len(raw)), storage.PutOptions{ContentType: "application/json"})
	return err
}
