// Package selcache memoizes recent routing decisions keyed by a stable
// fingerprint of the task's requirements.
package selcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/taskrouter/internal/model"
)

// Fingerprint returns a stable hash of the task's requirement set plus any
// caller-supplied preference context. Capabilities and context keys are
// sorted so field order never changes the key.
func Fingerprint(task model.TaskRequest, strategy model.Strategy, prefs map[string]string) string {
	caps := make([]string, 0, len(task.RequiredCapabilities))
	for _, c := range task.RequiredCapabilities {
		caps = append(caps, string(c))
	}
	sort.Strings(caps)

	var sb strings.Builder
	sb.WriteString(strings.Join(caps, ","))
	c := task.Constraints
	fmt.Fprintf(&sb, "|%.6f|%d|%.2f|%.2f|%.2f", c.MaxCostPerUnit, c.MaxLatencyMS, c.MinPrivacyLevel, c.QualityThreshold, c.Urgency)
	fmt.Fprintf(&sb, "|%s|%s|%s|%d", task.Domain, task.TaskType, strategy, task.EstimatedTokens)

	if len(prefs) > 0 {
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "|%s=%s", k, prefs[k])
		}
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

type entry struct {
	result   model.SelectionResult
	storedAt time.Time
}

// Cache is an in-memory TTL cache of SelectionResults. Safe for concurrent
// use. Expired entries are dropped lazily on read.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a Cache with the given TTL and entry cap. A maxEntries of 0
// means unbounded.
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// SetClock overrides the cache's time source, for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get returns the cached result for the fingerprint, if present and fresh.
func (c *Cache) Get(fingerprint string) (model.SelectionResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	now := c.now()
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return model.SelectionResult{}, false
	}
	if now.Sub(e.storedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; another writer may have refreshed it.
		if cur, still := c.entries[fingerprint]; still && c.now().Sub(cur.storedAt) >= c.ttl {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		c.misses.Add(1)
		return model.SelectionResult{}, false
	}

	c.hits.Add(1)
	return e.result, true
}

// Set stores a result under the fingerprint. When the cache is full the
// oldest entry is evicted.
func (c *Cache) Set(fingerprint string, result model.SelectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		if _, exists := c.entries[fingerprint]; !exists {
			c.evictOldestLocked()
		}
	}
	c.entries[fingerprint] = entry{result: result, storedAt: c.now()}
}

// Invalidate removes every cached decision, e.g. after a catalog reload.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Stats reports hit/miss counters and the current entry count.
func (c *Cache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	size = len(c.entries)
	c.mu.RUnlock()
	return c.hits.Load(), c.misses.Load(), size
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (c *Cache) HitRate() float64 {
	h, m := c.hits.Load(), c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.storedAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.storedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
