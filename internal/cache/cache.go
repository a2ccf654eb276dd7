// Package cache stores serialized analysis results keyed by a hash of the
// request that produced them.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted in server configuration.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// CacheRepository is a string key/value store with per-entry expiry.
type CacheRepository interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// Key hashes the JSON encoding of payload under prefix.
func Key(prefix string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key payload: %w", err)
	}
	return prefix + ":" + strconv.FormatUint(xxhash.Sum64(raw), 16), nil
}

// RedisCache is backed by a Redis server.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects lazily to addr.
func NewRedisCache(addr, password string, db int) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb}
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// sweepInterval bounds how often Set scans for expired entries.
const sweepInterval = time.Second

// MemoryCache keeps entries in process. Expired entries are dropped on read
// and swept by Set once the earliest expiry has passed.
type MemoryCache struct {
	mu         sync.RWMutex
	data       map[string]memoryEntry
	now        func() time.Time
	nextExpiry time.Time
	lastSweep  time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if entry.expired(m.now()) {
		m.mu.Lock()
		// A Set may have replaced the entry since the read lock was released.
		if current, ok := m.data[key]; ok && current.expired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return "", false
	}
	return entry.value, true
}

// Set stores value. A non-positive ttl never expires.
func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	now := m.now()
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.nextExpiry.IsZero() && !now.Before(m.nextExpiry) && now.Sub(m.lastSweep) >= sweepInterval {
		m.sweep(now)
	}
	m.data[key] = entry
	if !entry.expires.IsZero() && (m.nextExpiry.IsZero() || entry.expires.Before(m.nextExpiry)) {
		m.nextExpiry = entry.expires
	}
	return nil
}

// sweep drops every expired entry. The caller holds the write lock.
func (m *MemoryCache) sweep(now time.Time) {
	m.nextExpiry = time.Time{}
	for key, entry := range m.data {
		if entry.expired(now) {
			delete(m.data, key)
			continue
		}
		if !entry.expires.IsZero() && (m.nextExpiry.IsZero() || entry.expires.Before(m.nextExpiry)) {
			m.nextExpiry = entry.expires
		}
	}
	m.lastSweep = now
}

// Len reports the number of stored entries, including expired ones not yet swept.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
