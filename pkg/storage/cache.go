// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package storage

import (
	"sync"
	"time"
)

// Default cache bounds. The cache is a pure optimization and never
// authoritative; readers fall through to the store on miss.
const (
	DefaultCacheMaxEntries = 50
	DefaultCacheTTL        = 5 * time.Minute
)

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
	storedAt  time.Time
}

// SnapshotCache is a bounded TTL cache for read-path snapshots (focus
// analytics, tag summaries). Eviction is clock-based: expired entries are
// dropped on read and by EvictExpired; when full, the oldest entry is
// displaced.
type SnapshotCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	maxEntries int
	ttl        time.Duration
}

// NewSnapshotCache creates a cache with the given bounds. Non-positive
// arguments fall back to the defaults.
func NewSnapshotCache(maxEntries int, ttl time.Duration) *SnapshotCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &SnapshotCache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get returns the cached value for key if present and unexpired at now.
func (c *SnapshotCache) Get(key string, now time.Time) (interface{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || now.After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Put stores value under key. When the cache is full, the oldest entry is
// displaced to keep the bound.
func (c *SnapshotCache) Put(key string, value interface{}, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: now.Add(c.ttl),
		storedAt:  now,
	}
}

// EvictExpired drops every entry expired at now and returns the count.
func (c *SnapshotCache) EvictExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	return evicted
}

// Invalidate removes a single key.
func (c *SnapshotCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the current entry count.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *SnapshotCache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
