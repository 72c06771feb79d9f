package services

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultDedupTTL        = 5 * time.Second
	DefaultDedupMaxEntries = 512
)

// DedupCache remembers recently processed notification ids.
type DedupCache interface {
	Seen(ctx context.Context, id string) bool
	Remember(ctx context.Context, id string)
	// Claim remembers id and reports true only for the first caller inside the window.
	Claim(ctx context.Context, id string) bool
}

// MemoryDedupCache is bounded by entry count and by a per-entry TTL, whichever comes first.
// Entries hold their expiry and are dropped lazily when looked up, so the cache owns no
// goroutine. Seen does not refresh recency, so eviction is oldest-first.
type MemoryDedupCache struct {
	mu      sync.Mutex // serializes Claim
	entries *lru.Cache[string, time.Time]
	ttl     time.Duration
	now     func() time.Time
}

var _ DedupCache = (*MemoryDedupCache)(nil)

func NewMemoryDedupCache(maxEntries int, ttl time.Duration) *MemoryDedupCache {
	if maxEntries <= 0 {
		maxEntries = DefaultDedupMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, time.Time](maxEntries)
	return &MemoryDedupCache{entries: entries, ttl: ttl, now: time.Now}
}

func (c *MemoryDedupCache) Seen(ctx context.Context, id string) bool {
	expiresAt, ok := c.entries.Peek(id)
	if !ok {
		return false
	}
	if !c.now().Before(expiresAt) {
		c.entries.Remove(id)
		return false
	}
	return true
}

func (c *MemoryDedupCache) Remember(ctx context.Context, id string) {
	c.entries.Add(id, c.now().Add(c.ttl))
}

func (c *MemoryDedupCache) Claim(ctx context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Seen(ctx, id) {
		return false
	}
	c.Remember(ctx, id)
	return true
}

// Len counts stored entries, including expired ones not yet looked up.
func (c *MemoryDedupCache) Len() int {
	return c.entries.Len()
}
