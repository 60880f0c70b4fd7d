package service

import (
	"sync"
	"time"

	"github.com/berfenger/ecusolar/pkg/apsystems_ecu"
)

// MetricsCache is a single slot holding the last successfully fetched
// record. The slot is replaced as a whole and never cleared, so a record
// outlives its TTL until the next successful fetch.
type MetricsCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	now       func() time.Time
	record    *apsystems_ecu.SolarMetrics
	fetchedAt time.Time
}

func NewMetricsCache(ttl time.Duration, clock func() time.Time) *MetricsCache {
	if clock == nil {
		clock = time.Now
	}
	return &MetricsCache{
		ttl: ttl,
		now: clock,
	}
}

// Fresh returns the cached record and true when it was fetched less than
// TTL ago.
func (c *MetricsCache) Fresh() (*apsystems_ecu.SolarMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.record == nil {
		return nil, false
	}
	return c.record, c.now().Sub(c.fetchedAt) < c.ttl
}

// Current returns the cached record regardless of its age.
func (c *MetricsCache) Current() *apsystems_ecu.SolarMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record
}

func (c *MetricsCache) Store(record *apsystems_ecu.SolarMetrics) {
	if record == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = record
	c.fetchedAt = c.now()
}

// Age returns the time since the last successful fetch.
func (c *MetricsCache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.record == nil {
		return 0, false
	}
	return c.now().Sub(c.fetchedAt), true
}

func (c *MetricsCache) TTL() time.Duration {
	return c.ttl
}
