package discovery

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/backlogd/backlogd/internal/igdb"
)

// Cache holds catalog responses for a fixed TTL, keyed by endpoint and
// query text.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]cacheItem
	ttl      time.Duration
	maxItems int
	clock    clockwork.Clock
	stop     chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	value     any
	expiresAt time.Time
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	TTL      time.Duration
	MaxItems int
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:      10 * time.Minute,
		MaxItems: 500,
	}
}

// NewCache creates a cache and starts its cleanup loop. Call Stop to end it.
func NewCache(cfg CacheConfig, clock clockwork.Clock) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheConfig().TTL
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultCacheConfig().MaxItems
	}

	c := &Cache{
		items:    make(map[string]cacheItem),
		ttl:      cfg.TTL,
		maxItems: cfg.MaxItems,
		clock:    clock,
		stop:     make(chan struct{}),
	}

	go c.cleanup()

	return c
}

func cacheKey(endpoint, query string) string {
	return endpoint + "\x00" + query
}

// Get retrieves an unexpired item.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || !c.clock.Now().Before(item.expiresAt) {
		return nil, false
	}
	return item.value, true
}

// Set stores an item for the cache TTL.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxItems {
		c.evictOldest()
	}

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Delete removes an item.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes all items.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem)
}

// Len returns the number of stored items, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stop ends the cleanup loop.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// evictOldest drops expired items, then the oldest tenth if still full.
// Must be called with the lock held.
func (c *Cache) evictOldest() {
	c.removeExpired()
	if len(c.items) < c.maxItems {
		return
	}

	toRemove := max(c.maxItems/10, 1)
	for range toRemove {
		var oldestKey string
		var oldest time.Time
		for key, item := range c.items {
			if oldestKey == "" || item.expiresAt.Before(oldest) {
				oldestKey, oldest = key, item.expiresAt
			}
		}
		delete(c.items, oldestKey)
	}
}

func (c *Cache) removeExpired() {
	now := c.clock.Now()
	for key, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

func (c *Cache) cleanup() {
	ticker := c.clock.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			c.mu.Lock()
			c.removeExpired()
			c.mu.Unlock()
		}
	}
}

func (c *Cache) getGames(key string) ([]Game, bool) {
	val, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	games, ok := val.([]Game)
	return games, ok
}

func (c *Cache) getGenres(key string) ([]igdb.Genre, bool) {
	val, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	genres, ok := val.([]igdb.Genre)
	return genres, ok
}

func (c *Cache) getPlatforms(key string) ([]igdb.Platform, bool) {
	val, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	platforms, ok := val.([]igdb.Platform)
	return platforms, ok
}
