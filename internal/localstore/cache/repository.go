// Package cache provides durable storage for previously fetched read
// results. An entry is only served when no live response is obtainable; it
// is never treated as more authoritative than the server.
package cache

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/avolkau/studysync/internal/entities"
	"github.com/avolkau/studysync/internal/localstore"
)

// Repository handles all cache entry database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new cache repository.
func NewRepository(store *localstore.Store) *Repository {
	return &Repository{db: store.DB}
}

// Put stores or refreshes the snapshot for a request identity. Called on
// every successful live read.
func (r *Repository) Put(method, resource, content string) error {
	key := entities.CacheKey(method, resource)

	var existing entities.CacheEntry
	result := r.db.Where("key = ?", key).First(&existing)

	now := time.Now()
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		entry := entities.CacheEntry{Key: key, Content: content, FetchedAt: now}
		return localstore.WrapStorage("cache put", r.db.Create(&entry).Error)
	} else if result.Error != nil {
		return localstore.WrapStorage("cache put", result.Error)
	}

	existing.Content = content
	existing.FetchedAt = now
	return localstore.WrapStorage("cache put", r.db.Save(&existing).Error)
}

// Get returns the cached snapshot for a request identity, or
// (nil, nil) when no entry exists.
func (r *Repository) Get(method, resource string) (*entities.CacheEntry, error) {
	var entry entities.CacheEntry
	err := r.db.Where("key = ?", entities.CacheKey(method, resource)).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, localstore.WrapStorage("cache get", err)
	}
	return &entry, nil
}

// InvalidateResource removes every cached read keyed by the given resource,
// so a subsequent read after a confirmed write is not served stale data.
func (r *Repository) InvalidateResource(resource string) error {
	err := r.db.Where("key LIKE ?", "% "+resource).Delete(&entities.CacheEntry{}).Error
	return localstore.WrapStorage("cache invalidate", err)
}

// PurgeOlderThan removes entries fetched before the retention cutoff and
// returns how many were removed.
func (r *Repository) PurgeOlderThan(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := r.db.Where("fetched_at < ?", cutoff).Delete(&entities.CacheEntry{})
	if result.Error != nil {
		return 0, localstore.WrapStorage("cache purge", result.Error)
	}
	return result.RowsAffected, nil
}
