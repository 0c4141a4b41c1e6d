package snapshot

import (
	"context"
	"sync"
	"time"

	redisclient "vega/internal/adapters/redis"
	"vega/pkg/logger"
)

// Backend is the key/value memory behind the store. The store treats the
// in-process and external variants identically.
type Backend interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool)
	Exists(ctx context.Context, key string) bool
}

type memoryEntry struct {
	value    string
	storedAt time.Time
}

// MemoryBackend is a map with opportunistic TTL purging on write.
// No background sweeper; expired entries are dropped the next time
// anything is recorded.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend creates an in-process backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Put stores value and purges anything past its TTL
func (b *MemoryBackend) Put(_ context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.entries[key] = memoryEntry{value: value, storedAt: now}

	for k, e := range b.entries {
		if now.Sub(e.storedAt) > ttl {
			delete(b.entries, k)
		}
	}
	return nil
}

// Get returns the stored value, found=false on miss
func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[key]
	return e.value, ok
}

// Exists reports whether key is present
func (b *MemoryBackend) Exists(_ context.Context, key string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[key]
	return ok
}

// Len returns the number of live entries
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// RedisBackend keeps snapshots in Redis with native TTL expiry. Redis
// failures degrade to an in-process fallback so a flaky connection never
// costs the bot its history mid-session.
type RedisBackend struct {
	client   *redisclient.Client
	fallback *MemoryBackend
	log      *logger.Logger
}

// NewRedisBackend creates a Redis-backed store backend
func NewRedisBackend(client *redisclient.Client, log *logger.Logger) *RedisBackend {
	return &RedisBackend{
		client:   client,
		fallback: NewMemoryBackend(),
		log:      log.With("component", "snapshot_redis"),
	}
}

// Put stores value under TTL, falling back to memory on error
func (b *RedisBackend) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl); err != nil {
		b.log.Warnw("Redis write failed, using memory fallback", "key", key, "error", err)
		return b.fallback.Put(ctx, key, value, ttl)
	}
	// Mirror into the fallback so reads survive a later Redis outage
	_ = b.fallback.Put(ctx, key, value, ttl)
	return nil
}

// Get reads from Redis, then from the memory fallback
func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool) {
	val, found, err := b.client.Get(ctx, key)
	if err != nil {
		b.log.Warnw("Redis read failed, using memory fallback", "key", key, "error", err)
		return b.fallback.Get(ctx, key)
	}
	if !found {
		return b.fallback.Get(ctx, key)
	}
	return val, true
}

// Exists checks Redis, then the memory fallback
func (b *RedisBackend) Exists(ctx context.Context, key string) bool {
	ok, err := b.client.Exists(ctx, key)
	if err != nil {
		return b.fallback.Exists(ctx, key)
	}
	if !ok {
		return b.fallback.Exists(ctx, key)
	}
	return true
}
