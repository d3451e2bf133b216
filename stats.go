package memcache

import (
	"sync/atomic"
)

// ClientStats contains counters for client operations.
// All fields are safe for concurrent access.
//
// Operation counters count calls that completed without error (a Get
// miss included); a failed call only increments Errors.
//
// For Prometheus integration, expose these as:
//   - Counters: Gets, Sets, Adds, Deletes, Touches, Arithmetics, Errors
//   - Counter: GetHits (derive hit rate as GetHits/Gets)
type ClientStats struct {
	Gets        uint64 // Total Get operations
	GetHits     uint64 // Get operations that found the key
	Sets        uint64 // Total Set operations
	Adds        uint64 // Total Add operations
	Deletes     uint64 // Total Delete operations
	Touches     uint64 // Total Touch operations
	Arithmetics uint64 // Total Increment/Decrement operations
	Errors      uint64 // Total errors across all operations
}

// clientStatsCollector provides internal methods for updating client stats.
// Not exported - the client updates its own stats.
type clientStatsCollector struct {
	stats *ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{
		stats: &ClientStats{},
	}
}

func (c *clientStatsCollector) recordGet(found bool) {
	atomic.AddUint64(&c.stats.Gets, 1)
	if found {
		atomic.AddUint64(&c.stats.GetHits, 1)
	}
}

func (c *clientStatsCollector) recordSet() {
	atomic.AddUint64(&c.stats.Sets, 1)
}

func (c *clientStatsCollector) recordAdd() {
	atomic.AddUint64(&c.stats.Adds, 1)
}

func (c *clientStatsCollector) recordDelete() {
	atomic.AddUint64(&c.stats.Deletes, 1)
}

func (c *clientStatsCollector) recordTouch() {
	atomic.AddUint64(&c.stats.Touches, 1)
}

func (c *clientStatsCollector) recordArithmetic() {
	atomic.AddUint64(&c.stats.Arithmetics, 1)
}

func (c *clientStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Gets:        atomic.LoadUint64(&c.stats.Gets),
		GetHits:     atomic.LoadUint64(&c.stats.GetHits),
		Sets:        atomic.LoadUint64(&c.stats.Sets),
		Adds:        atomic.LoadUint64(&c.stats.Adds),
		Deletes:     atomic.LoadUint64(&c.stats.Deletes),
		Touches:     atomic.LoadUint64(&c.stats.Touches),
		Arithmetics: atomic.LoadUint64(&c.stats.Arithmetics),
		Errors:      atomic.LoadUint64(&c.stats.Errors),
	}
}
