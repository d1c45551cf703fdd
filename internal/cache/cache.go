// SPDX-License-Identifier: MIT

// Package cache provides TTL caches: a generic in-memory map with a janitor
// and byte stores (memory or Redis) for upstream responses.
package cache

import (
	"context"
	"time"
)

// Store caches serialized values with expiration.
type Store interface {
	// Get returns the value for key. ok is false if missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes key.
	Delete(ctx context.Context, key string)
	// Stats returns counters.
	Stats() Stats
	// Close releases resources.
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Hits        int64 // successful Get operations
	Misses      int64 // Get operations that found nothing or an expired entry
	Sets        int64
	Evictions   int64 // expired entries removed by the janitor
	CurrentSize int
}

// MemoryStore is a Store backed by Memory.
type MemoryStore struct {
	m *Memory[[]byte]
}

// NewMemoryStore creates an in-memory Store cleaning up every cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{m: NewMemory[[]byte](cleanupInterval)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) { return s.m.Get(key) }

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	s.m.Set(key, value, ttl)
}

func (s *MemoryStore) Delete(_ context.Context, key string) { s.m.Delete(key) }
func (s *MemoryStore) Stats() Stats                         { return s.m.Stats() }

func (s *MemoryStore) Close() error {
	s.m.Stop()
	return nil
}

// noopStore caches nothing.
type noopStore struct{}

// NewNoopStore returns a Store that never hits.
func NewNoopStore() Store { return noopStore{} }

func (noopStore) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (noopStore) Set(context.Context, string, []byte, time.Duration) {}
func (noopStore) Delete(context.Context, string)                     {}
func (noopStore) Stats() Stats                                       { return Stats{} }
func (noopStore) Close() error                                       { return nil }
