package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/reelmates/match-server-go/internal/model"
)

const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	items     []Item
	expiresAt time.Time
}

// Cache is a pure performance cache for catalog responses, keyed by a
// filter fingerprint. Entries are written once and expire; duplicate
// concurrent population is tolerated, last writer wins. It carries no
// correctness: a miss just costs an upstream round trip.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Fingerprint derives a stable cache key from the filter set.
func Fingerprint(serverURL string, filters model.SessionFilters) string {
	data, _ := json.Marshal(filters)
	sum := sha256.Sum256(append([]byte(serverURL+"|"), data...))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Get(key string) ([]Item, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.items, true
}

func (c *Cache) Set(key string, items []Item) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{
		items:     items,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Prune drops expired entries. Called opportunistically; correctness
// never depends on it.
func (c *Cache) Prune() int {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	pruned := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			pruned++
		}
	}
	return pruned
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
