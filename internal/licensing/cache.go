package licensing

import (
	"strings"
	"sync"
	"time"
)

// CacheEntry is a memoized license-check answer.
type CacheEntry struct {
	HasLicense bool
	LicenseID  string
}

type cacheRecord struct {
	entry     CacheEntry
	expiresAt time.Time
}

// CheckCache memoizes "does buyer X hold an active license for asset Y" for a
// short window so repeated checks skip the store. Keys combine the asset
// identifier with the lower-cased buyer address. Expired entries are treated
// as absent and purged lazily on access; Sweep bounds memory between accesses
// and is driven by a scheduler, not an internal timer, so tests can control
// time via the injected clock.
type CheckCache struct {
	mu      sync.Mutex
	entries map[string]cacheRecord
	ttl     time.Duration
	now     func() time.Time
}

// NewCheckCache builds a cache with the given TTL. A nil clock defaults to
// time.Now.
func NewCheckCache(ttl time.Duration, now func() time.Time) *CheckCache {
	if now == nil {
		now = time.Now
	}
	return &CheckCache{
		entries: make(map[string]cacheRecord),
		ttl:     ttl,
		now:     now,
	}
}

func cacheKey(assetID, buyerAddress string) string {
	return assetID + "|" + strings.ToLower(buyerAddress)
}

// Get returns the cached answer for (asset, buyer), or ok=false when absent
// or expired. An expired entry is removed on the way out.
func (c *CheckCache) Get(assetID, buyerAddress string) (CacheEntry, bool) {
	key := cacheKey(assetID, buyerAddress)

	c.mu.Lock()
	defer c.mu.Unlock()

	record, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	if !c.now().Before(record.expiresAt) {
		delete(c.entries, key)
		return CacheEntry{}, false
	}
	return record.entry, true
}

// Set stores the answer for (asset, buyer), overwriting unconditionally. The
// entry expires one TTL after insertion.
func (c *CheckCache) Set(assetID, buyerAddress string, entry CacheEntry) {
	key := cacheKey(assetID, buyerAddress)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheRecord{entry: entry, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops the entry for (asset, buyer) immediately. Called on every
// license-state change so a fresh purchase or revocation is never shadowed by
// a stale cached answer.
func (c *CheckCache) Invalidate(assetID, buyerAddress string) {
	key := cacheKey(assetID, buyerAddress)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep removes every expired entry and reports how many were dropped.
func (c *CheckCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, record := range c.entries {
		if !now.Before(record.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the current entry count, expired entries included.
func (c *CheckCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
