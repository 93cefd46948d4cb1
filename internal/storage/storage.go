// Package storage defines the durable document primitives the activity data
// is persisted through.
package storage

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"time"
)

// Document keys. Keys are slash separated and relative to the data root.
const (
	CurrentDocumentKey = "activity_heatmap_data/v1_0_5.json"
	LegacyDocumentKey  = "data.json"
	SettingsKey        = "settings.yaml"
)

// ErrNotFound is returned by Load when no document exists under a key.
var ErrNotFound = errors.New("document not found")

// DocumentStore reads and writes whole documents by key.
type DocumentStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the document. Readers never observe a partial write.
	Save(ctx context.Context, key string, data []byte) error
	// EnsureFolder creates whatever container key needs before Save.
	EnsureFolder(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// DocumentInfo describes a stored document.
type DocumentInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
	Hash    string
}

// Describer is implemented by stores that can report document metadata.
type Describer interface {
	Describe(ctx context.Context, key string) (DocumentInfo, error)
}

// Folder returns the folder part of key, or "" for a top-level key.
func Folder(key string) string {
	dir := path.Dir(key)
	if dir == "." {
		return ""
	}
	return dir
}

// MemoryStore is an in-process DocumentStore, used for mock rendering and
// tests.
type MemoryStore struct {
	mu      sync.RWMutex
	docs    map[string][]byte
	folders map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string][]byte),
		folders: make(map[string]struct{}),
	}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryStore) EnsureFolder(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if folder := Folder(key); folder != "" {
		m.folders[folder] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.docs[key]
	return ok, nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.docs))
	for key := range m.docs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
