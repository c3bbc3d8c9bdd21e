package kv

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type item struct {
	ID  string `json:"id"`
	Qty int    `json:"qty"`
}

// v0 stored {"id","quantity"}; v1 renamed quantity to qty.
var itemsSchema = Schema[[]item]{
	Name:        "items",
	Version:     1,
	LegacyNames: []string{"old_items"},
	Migrations: map[int]Migration{
		0: func(data json.RawMessage) (json.RawMessage, error) {
			var old []map[string]any
			if err := json.Unmarshal(data, &old); err != nil {
				return nil, err
			}
			for _, o := range old {
				o["qty"] = o["quantity"]
				delete(o, "quantity")
			}
			return json.Marshal(old)
		},
	},
}

func TestSchema_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	want := []item{{ID: "a", Qty: 2}, {ID: "b", Qty: 1}}
	if err := itemsSchema.Save(ctx, store, "c1:", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := store.Get(ctx, "c1:items")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !strings.HasPrefix(string(raw), `{"version":1,`) {
		t.Errorf("stored payload = %s, want version envelope", raw)
	}

	got, err := itemsSchema.Load(ctx, store, "c1:")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestSchema_Load_NotFound(t *testing.T) {
	_, err := itemsSchema.Load(context.Background(), NewMemoryStore(), "c1:")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestSchema_Load_MigratesUnversionedPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "c1:items", []byte(`[{"id":"a","quantity":3}]`))

	got, err := itemsSchema.Load(ctx, store, "c1:")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || got[0].Qty != 3 {
		t.Fatalf("Load() = %+v, want qty 3", got)
	}

	raw, _ := store.Get(ctx, "c1:items")
	if !strings.HasPrefix(string(raw), `{"version":1,`) {
		t.Errorf("migrated payload not rewritten: %s", raw)
	}
}

func TestSchema_Load_MovesLegacyKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "c1:old_items", []byte(`[{"id":"a","quantity":1}]`))

	got, err := itemsSchema.Load(ctx, store, "c1:")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Load() = %+v", got)
	}

	if _, err := store.Get(ctx, "c1:old_items"); !errors.Is(err, ErrNotFound) {
		t.Errorf("legacy key should be deleted, Get error = %v", err)
	}
	if _, err := store.Get(ctx, "c1:items"); err != nil {
		t.Errorf("current key should exist after migration: %v", err)
	}
}

func TestSchema_Load_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "invalid json", payload: `{not json`},
		{name: "object instead of array", payload: `{"id":"a"}`},
		{name: "empty", payload: ``},
		{name: "future version", payload: `{"version":9,"data":[]}`},
		{name: "envelope with wrong data type", payload: `{"version":1,"data":"oops"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewMemoryStore()
			_ = store.Set(ctx, "c1:items", []byte(tt.payload))

			_, err := itemsSchema.Load(ctx, store, "c1:")
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Load() error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestSchema_Load_MissingMigration(t *testing.T) {
	s := Schema[[]item]{Name: "items", Version: 2}
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "items", []byte(`{"version":1,"data":[]}`))

	if _, err := s.Load(ctx, store, ""); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Load() error = %v, want ErrCorrupt", err)
	}
}

func TestSchema_Delete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "c1:items", []byte(`[]`))
	_ = store.Set(ctx, "c1:old_items", []byte(`[]`))

	if err := itemsSchema.Delete(ctx, store, "c1:"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	for _, key := range []string{"c1:items", "c1:old_items"} {
		if _, err := store.Get(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Errorf("key %s still present", key)
		}
	}
}
