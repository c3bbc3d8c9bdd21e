package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrCacheMiss indicates the requested key was not found in a store
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is one named cache holding responses keyed by request URL.
type Store interface {
	Name() string
	Match(ctx context.Context, key string) (*Entry, error)
	Put(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Storage manages the set of named stores.
type Storage interface {
	// Open returns the store with the given name, creating it if needed.
	Open(ctx context.Context, name string) (Store, error)

	// Names lists every existing store.
	Names(ctx context.Context) ([]string, error)

	// Remove deletes a store and all its entries. It reports whether the
	// store existed.
	Remove(ctx context.Context, name string) (bool, error)

	// Ping checks the backend.
	Ping(ctx context.Context) error
}

// MemoryStorage keeps all stores in process memory.
type MemoryStorage struct {
	mu     sync.Mutex
	stores map[string]*memoryStore
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{stores: make(map[string]*memoryStore)}
}

// Open returns the named store, creating it if needed.
func (s *MemoryStorage) Open(_ context.Context, name string) (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stores[name]
	if !ok {
		st = &memoryStore{name: name, entries: make(map[string]*Entry)}
		s.stores[name] = st
	}
	return st, nil
}

// Names lists stores in lexical order.
func (s *MemoryStorage) Names(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes the named store.
func (s *MemoryStorage) Remove(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.stores[name]
	delete(s.stores, name)
	return ok, nil
}

// Ping always succeeds.
func (s *MemoryStorage) Ping(context.Context) error { return nil }

type memoryStore struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Entry
}

func (m *memoryStore) Name() string { return m.name }

func (m *memoryStore) Match(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues(m.name).Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.WithLabelValues(m.name).Inc()
	return entry.Clone(), nil
}

func (m *memoryStore) Put(_ context.Context, key string, entry *Entry) error {
	if entry == nil {
		return errors.New("cache entry cannot be nil")
	}
	m.mu.Lock()
	m.entries[key] = entry.Clone()
	m.mu.Unlock()

	CacheWrites.WithLabelValues(m.name).Inc()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Keys(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
