package cache

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a test Redis client for testing.
// Integration tests in tests/integration use testcontainers-go instead.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func storageBackends(t *testing.T) map[string]func(t *testing.T) Storage {
	return map[string]func(t *testing.T) Storage{
		"memory": func(t *testing.T) Storage { return NewMemoryStorage() },
		"redis": func(t *testing.T) Storage {
			return NewRedisStorage(setupTestRedis(t), "test")
		},
	}
}

func TestStorage_PutAndMatch(t *testing.T) {
	for name, newStorage := range storageBackends(t) {
		t.Run(name, func(t *testing.T) {
			storage := newStorage(t)
			ctx := context.Background()

			store, err := storage.Open(ctx, "butterfly-images-v1")
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if store.Name() != "butterfly-images-v1" {
				t.Errorf("Name() = %q", store.Name())
			}

			key := "https://shop.example.com/hero.webp"
			if _, err := store.Match(ctx, key); !errors.Is(err, ErrCacheMiss) {
				t.Fatalf("Match before Put error = %v, want ErrCacheMiss", err)
			}

			entry := &Entry{
				URL:        key,
				StatusCode: 200,
				Headers:    http.Header{"Content-Type": []string{"image/webp"}},
				Data:       []byte("webp"),
				StoredAt:   time.Now(),
			}
			entry.Stamp(time.Now())

			if err := store.Put(ctx, key, entry); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			got, err := store.Match(ctx, key)
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if string(got.Data) != "webp" {
				t.Errorf("Data = %q, want webp", got.Data)
			}
			if got.StatusCode != 200 {
				t.Errorf("StatusCode = %d, want 200", got.StatusCode)
			}
			if _, ok := got.CachedAt(); !ok {
				t.Error("sw-cached-at header lost in round trip")
			}

			keys, err := store.Keys(ctx)
			if err != nil {
				t.Fatalf("Keys failed: %v", err)
			}
			if len(keys) != 1 || keys[0] != key {
				t.Errorf("Keys() = %v", keys)
			}

			if err := store.Delete(ctx, key); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if _, err := store.Match(ctx, key); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("Match after Delete error = %v, want ErrCacheMiss", err)
			}
		})
	}
}

func TestStorage_NamesAndRemove(t *testing.T) {
	for name, newStorage := range storageBackends(t) {
		t.Run(name, func(t *testing.T) {
			storage := newStorage(t)
			ctx := context.Background()

			for _, n := range []string{"butterfly-static-v1", "butterfly-static-v2"} {
				store, err := storage.Open(ctx, n)
				if err != nil {
					t.Fatalf("Open(%s) failed: %v", n, err)
				}
				if err := store.Put(ctx, "k", &Entry{StatusCode: 200}); err != nil {
					t.Fatalf("Put failed: %v", err)
				}
			}

			names, err := storage.Names(ctx)
			if err != nil {
				t.Fatalf("Names failed: %v", err)
			}
			if len(names) != 2 || names[0] != "butterfly-static-v1" || names[1] != "butterfly-static-v2" {
				t.Errorf("Names() = %v", names)
			}

			removed, err := storage.Remove(ctx, "butterfly-static-v1")
			if err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
			if !removed {
				t.Error("Remove() = false for existing store")
			}

			removed, _ = storage.Remove(ctx, "butterfly-static-v1")
			if removed {
				t.Error("Remove() = true for already removed store")
			}

			// Reopening a removed store yields an empty store.
			store, _ := storage.Open(ctx, "butterfly-static-v1")
			if _, err := store.Match(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
				t.Errorf("removed store kept entries: %v", err)
			}
		})
	}
}

func TestMemoryStore_PutIsolatesEntry(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryStorage().Open(ctx, "s")

	entry := &Entry{StatusCode: 200, Data: []byte("a")}
	_ = store.Put(ctx, "k", entry)
	entry.Data[0] = 'b'

	got, _ := store.Match(ctx, "k")
	if string(got.Data) != "a" {
		t.Errorf("stored entry mutated through caller: %q", got.Data)
	}
}

func TestStore_PutNil(t *testing.T) {
	ctx := context.Background()
	store, _ := NewMemoryStorage().Open(ctx, "s")
	if err := store.Put(ctx, "k", nil); err == nil {
		t.Error("Put with nil entry should return error")
	}
}

func TestNewRedisStorage_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStorage should panic with nil redis client")
		}
	}()
	NewRedisStorage(nil, "test")
}
