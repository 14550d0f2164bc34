// Package memory provides an in-memory cache repository for development
// and tests.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/mealforge/v1/internal/ports/outbound"
)

// CacheItem represents a cached item
type CacheItem struct {
	Value     []byte
	ExpiresAt time.Time
}

// CacheRepository implements in-memory cache repository
type CacheRepository struct {
	data  map[string]CacheItem
	mutex sync.RWMutex
}

// NewCacheRepository creates a new in-memory cache repository
func NewCacheRepository() *CacheRepository {
	repo := &CacheRepository{
		data: make(map[string]CacheItem),
	}

	go repo.cleanup()

	return repo
}

var _ outbound.CacheRepository = (*CacheRepository)(nil)

// Get retrieves a value from cache. A miss returns nil without an error.
func (r *CacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	item, exists := r.data[key]
	if !exists || time.Now().After(item.ExpiresAt) {
		return nil, nil
	}

	return item.Value, nil
}

// Set stores a value in cache with TTL
func (r *CacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	expiresAt := time.Now().Add(ttl)
	if ttl == 0 {
		expiresAt = time.Now().Add(24 * time.Hour) // Default to 24 hours
	}

	r.data[key] = CacheItem{
		Value:     value,
		ExpiresAt: expiresAt,
	}

	return nil
}

// Delete removes a key from cache
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.data, key)
	return nil
}

// Increment bumps a counter key, creating it with the TTL when absent
func (r *CacheRepository) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now()
	var count int64
	if item, exists := r.data[key]; exists && now.Before(item.ExpiresAt) {
		count, _ = strconv.ParseInt(string(item.Value), 10, 64)
		count++
		item.Value = []byte(strconv.FormatInt(count, 10))
		r.data[key] = item
		return count, nil
	}

	count = 1
	r.data[key] = CacheItem{
		Value:     []byte("1"),
		ExpiresAt: now.Add(ttl),
	}
	return count, nil
}

// cleanup periodically removes expired items
func (r *CacheRepository) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		r.mutex.Lock()
		now := time.Now()
		for key, item := range r.data {
			if now.After(item.ExpiresAt) {
				delete(r.data, key)
			}
		}
		r.mutex.Unlock()
	}
}
