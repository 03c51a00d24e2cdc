package seoconsole

import (
	"context"
	"sync"
	"time"
)

// RecordCache is an in-memory TTL cache of the record list. It serves the
// public sitemap.xml so crawlers do not hit the store on every request.
type RecordCache struct {
	mu      sync.RWMutex
	records []Record
	fetched time.Time
	ttl     time.Duration
	store   RecordStore
	now     func() time.Time
}

// NewRecordCache creates a RecordCache backed by the given store.
func NewRecordCache(s RecordStore, ttl time.Duration) *RecordCache {
	return &RecordCache{store: s, ttl: ttl, now: time.Now}
}

func (c *RecordCache) valid() bool {
	return c.records != nil && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *RecordCache) Invalidate() {
	c.mu.Lock()
	c.records = nil
	c.mu.Unlock()
}

// List returns cached records, reloading them from the store when stale.
// It tries a read lock first and only takes the write lock to reload.
func (c *RecordCache) List(ctx context.Context) ([]Record, error) {
	c.mu.RLock()
	if c.valid() {
		records := c.records
		c.mu.RUnlock()
		return records, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.records, nil
	}
	records, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	c.records = records
	c.fetched = c.now()
	return records, nil
}
