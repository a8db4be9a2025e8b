// Package cache holds recently scraped products in memory. Product pages
// change price and stock slowly enough that repeated lookups within the TTL
// can skip the browser entirely.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/mercavia/sheinscrape/models"
)

// entry holds a cached response with its creation timestamp.
type entry struct {
	response  *models.ScrapeResponse
	createdAt time.Time
}

// Cache is a TTL-bounded in-memory cache for scrape responses.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache. A background goroutine evicts expired entries every
// 5 minutes.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}

	go c.cleanupLoop()
	return c
}

// Key derives a cache key from the target URL and region hint. Two requests
// for the same URL with different region hints can resolve different
// currencies, so the hint is part of the key.
func Key(url, region string) string {
	h := sha256.New()
	h.Write([]byte(url))
	h.Write([]byte("|"))
	h.Write([]byte(region))
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves a cached response if it exists and has not expired.
func (c *Cache) Get(key string) (*models.ScrapeResponse, bool) {
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) > c.ttl {
		return nil, false
	}
	return e.response, true
}

// Set stores a response. If the cache is at capacity, a random entry is
// evicted to make room (map iteration order is random in Go).
func (c *Cache) Set(key string, resp *models.ScrapeResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		response:  resp,
		createdAt: time.Now(),
	}
}

// cleanupLoop evicts expired entries every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-c.ttl)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
