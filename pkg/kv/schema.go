package kv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Migration upgrades a payload by exactly one schema version.
type Migration func(data json.RawMessage) (json.RawMessage, error)

// Schema describes a versioned JSON value stored under <prefix><Name>.
//
// Values are written as {"version":N,"data":...}. A payload without that
// envelope is treated as version 0. Migrations[n] turns version n data into
// version n+1; loading runs every step up to Version and writes the result
// back under the current key.
type Schema[T any] struct {
	// Name is the key suffix for the current layout.
	Name string

	// Version is the current schema version.
	Version int

	// LegacyNames are earlier key suffixes, consulted in order when Name is
	// absent. A value found under a legacy name is moved to Name.
	LegacyNames []string

	// Migrations maps a source version to its upgrade step.
	Migrations map[int]Migration
}

type envelope struct {
	Version *int            `json:"version"`
	Data    json.RawMessage `json:"data"`
}

// Key returns the full storage key for prefix.
func (s Schema[T]) Key(prefix string) string {
	return prefix + s.Name
}

// Load reads, migrates and decodes the value stored for prefix.
// It returns ErrNotFound when neither the current nor a legacy key exists and
// an error wrapping ErrCorrupt when the payload cannot be decoded.
func (s Schema[T]) Load(ctx context.Context, store Store, prefix string) (T, error) {
	var zero T

	raw, legacyKey, err := s.read(ctx, store, prefix)
	if err != nil {
		return zero, err
	}

	version, data := unwrap(raw)
	if version > s.Version {
		return zero, fmt.Errorf("%w: %s version %d is newer than %d", ErrCorrupt, s.Name, version, s.Version)
	}

	migrated := version != s.Version || legacyKey != ""
	for v := version; v < s.Version; v++ {
		step, ok := s.Migrations[v]
		if !ok {
			return zero, fmt.Errorf("%w: %s has no migration from version %d", ErrCorrupt, s.Name, v)
		}
		data, err = step(data)
		if err != nil {
			return zero, fmt.Errorf("%w: migrate %s from version %d: %v", ErrCorrupt, s.Name, v, err)
		}
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, fmt.Errorf("%w: decode %s: %v", ErrCorrupt, s.Name, err)
	}

	if migrated {
		if err := s.Save(ctx, store, prefix, value); err != nil {
			return zero, fmt.Errorf("persist migrated %s: %w", s.Name, err)
		}
		if legacyKey != "" {
			if err := store.Delete(ctx, legacyKey); err != nil {
				return zero, fmt.Errorf("delete legacy key %s: %w", legacyKey, err)
			}
		}
		schemaMigrations.WithLabelValues(s.Name).Inc()
	}

	return value, nil
}

// Save writes value under the current key and version.
func (s Schema[T]) Save(ctx context.Context, store Store, prefix string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.Name, err)
	}
	version := s.Version
	payload, err := json.Marshal(envelope{Version: &version, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", s.Name, err)
	}
	return store.Set(ctx, s.Key(prefix), payload)
}

// Delete removes the current key and every legacy key.
func (s Schema[T]) Delete(ctx context.Context, store Store, prefix string) error {
	if err := store.Delete(ctx, s.Key(prefix)); err != nil {
		return err
	}
	for _, name := range s.LegacyNames {
		if err := store.Delete(ctx, prefix+name); err != nil {
			return err
		}
	}
	return nil
}

// read returns the raw payload and, when it came from a legacy key, that key.
func (s Schema[T]) read(ctx context.Context, store Store, prefix string) ([]byte, string, error) {
	raw, err := store.Get(ctx, s.Key(prefix))
	if err == nil {
		return raw, "", nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	for _, name := range s.LegacyNames {
		key := prefix + name
		raw, err := store.Get(ctx, key)
		if err == nil {
			return raw, key, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, "", err
		}
	}
	return nil, "", ErrNotFound
}

// unwrap splits an enveloped payload; anything else is version 0.
func unwrap(raw []byte) (int, json.RawMessage) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return 0, trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Version == nil || env.Data == nil {
		return 0, trimmed
	}
	return *env.Version, env.Data
}
