package tokens

import (
	"sync"
	"time"

	"github.com/ggonzalez94/defi-intents/internal/metrics"
)

// memoryCache holds resolved descriptors for one TTL generation. When the
// generation expires every entry is dropped at once.
type memoryCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	createdAt time.Time
	bySymbol  map[int64]map[string]Descriptor
	byAddress map[int64]map[string]Descriptor
	// listsLoaded marks that list sources were merged into this generation.
	listsLoaded bool
}

func newMemoryCache(ttl time.Duration, now func() time.Time) *memoryCache {
	c := &memoryCache{ttl: ttl, now: now}
	c.reset()
	return c
}

func (c *memoryCache) reset() {
	c.createdAt = c.now()
	c.bySymbol = map[int64]map[string]Descriptor{}
	c.byAddress = map[int64]map[string]Descriptor{}
	c.listsLoaded = false
}

// expireLocked must be called with the write lock held.
func (c *memoryCache) expireLocked() {
	if c.now().Sub(c.createdAt) > c.ttl {
		c.reset()
		metrics.TokenCacheInvalidations.Inc()
	}
}

func (c *memoryCache) expired() bool {
	return c.now().Sub(c.createdAt) > c.ttl
}

func (c *memoryCache) symbol(chainID int64, key string) (Descriptor, bool) {
	c.mu.RLock()
	if !c.expired() {
		d, ok := c.bySymbol[chainID][key]
		c.mu.RUnlock()
		return d, ok
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	d, ok := c.bySymbol[chainID][key]
	return d, ok
}

func (c *memoryCache) address(chainID int64, addr string) (Descriptor, bool) {
	c.mu.RLock()
	if !c.expired() {
		d, ok := c.byAddress[chainID][addr]
		c.mu.RUnlock()
		return d, ok
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	d, ok := c.byAddress[chainID][addr]
	return d, ok
}

func (c *memoryCache) loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	return c.listsLoaded
}

// fill merges list data into the current generation. The list's canonical pick
// replaces any symbol written back before the lists loaded.
func (c *memoryCache) fill(all []Descriptor, canonical map[chainSymbol]Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	for _, d := range all {
		c.putAddressLocked(d)
	}
	for key, d := range canonical {
		c.symbolBucketLocked(key.chainID)[key.symbol] = d
	}
	c.listsLoaded = true
}

// putAddress caches a resolution by contract address only. What a contract
// says its symbol is never decides what a symbol resolves to.
func (c *memoryCache) putAddress(d Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	c.putAddressLocked(d)
}

// putSymbol writes back a metadata resolution under the key it was queried by.
// List picks already in the generation are kept.
func (c *memoryCache) putSymbol(key string, d Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expireLocked()
	c.putAddressLocked(d)
	if key == "" {
		return
	}
	bucket := c.symbolBucketLocked(d.ChainID)
	if _, ok := bucket[key]; !ok {
		bucket[key] = d
	}
}

func (c *memoryCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	metrics.TokenCacheInvalidations.Inc()
}

func (c *memoryCache) putAddressLocked(d Descriptor) {
	bucket, ok := c.byAddress[d.ChainID]
	if !ok {
		bucket = map[string]Descriptor{}
		c.byAddress[d.ChainID] = bucket
	}
	bucket[d.Address] = d
}

func (c *memoryCache) symbolBucketLocked(chainID int64) map[string]Descriptor {
	bucket, ok := c.bySymbol[chainID]
	if !ok {
		bucket = map[string]Descriptor{}
		c.bySymbol[chainID] = bucket
	}
	return bucket
}
