package news

import (
	"sync"
	"time"

	"shell-tracker/internal/types"
)

const (
	DefaultCacheTTL        = time.Hour
	DefaultCacheMaxEntries = 256
	cacheSweepInterval     = 10 * time.Minute
)

// sentimentCache stores analysis results keyed by headline fingerprint.
// Expired entries are swept periodically; when full, the oldest entry is evicted.
type sentimentCache struct {
	mu         sync.RWMutex
	data       map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheEntry struct {
	sentiment types.Sentiment
	timestamp time.Time
}

func newSentimentCache(ttl time.Duration, maxEntries int) *sentimentCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	c := &sentimentCache{
		data:       make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// get retrieves a cached result if it is still inside the TTL
func (c *sentimentCache) get(key string) (types.Sentiment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists || c.now().Sub(entry.timestamp) >= c.ttl {
		return types.Sentiment{}, false
	}
	return entry.sentiment, true
}

func (c *sentimentCache) set(key string, s types.Sentiment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.data[key] = &cacheEntry{sentiment: s, timestamp: c.now()}
}

func (c *sentimentCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.data {
		if oldestKey == "" || e.timestamp.Before(oldest) {
			oldestKey, oldest = k, e.timestamp
		}
	}
	delete(c.data, oldestKey)
}

func (c *sentimentCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// cleanupLoop periodically removes expired entries
func (c *sentimentCache) cleanupLoop() {
	ticker := time.NewTicker(cacheSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries
func (c *sentimentCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if now.Sub(entry.timestamp) >= c.ttl {
			delete(c.data, key)
		}
	}
}

func (c *sentimentCache) close() {
	c.stopOnce.Do(func() { close(c.stop) })
}
