// Package cache provides a bounded, TTL-evicting result cache keyed by a
// fingerprint of issue, ruleset, and workflow configuration.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/menoncello/triage/internal/models"
)

// Cache stores prioritization results for identical engine inputs.
// Safe for concurrent use; a read never blocks writers on other keys
// longer than the map lock itself.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	max     int
	ttl     time.Duration

	hits   int64
	misses int64
}

type entry struct {
	value   models.IssuePrioritization
	expires time.Time
}

// New creates a cache holding at most max entries, each valid for ttl.
// A non-positive max disables bounding; a non-positive ttl means entries
// never expire.
func New(max int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		max:     max,
		ttl:     ttl,
	}
}

// Get returns the cached result for the key, if present and unexpired.
func (c *Cache) Get(key string) (models.IssuePrioritization, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && time.Now().After(e.expires)) {
		c.mu.Lock()
		if !ok {
			c.misses++
		} else {
			delete(c.entries, key)
			c.misses++
		}
		c.mu.Unlock()
		return models.IssuePrioritization{}, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return e.value, true
}

// Put stores a result, evicting the entry closest to expiry when full.
func (c *Cache) Put(key string, value models.IssuePrioritization) {
	var expires time.Time
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.max > 0 && len(c.entries) >= c.max {
		if _, exists := c.entries[key]; !exists {
			c.evictLocked()
		}
	}
	c.entries[key] = entry{value: value, expires: expires}
}

// evictLocked removes expired entries, falling back to the entry closest
// to expiry. Caller holds the write lock.
func (c *Cache) evictLocked() {
	now := time.Now()
	var oldestKey string
	var oldest time.Time

	for k, e := range c.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(c.entries, k)
			continue
		}
		if oldestKey == "" || (!e.expires.IsZero() && e.expires.Before(oldest)) {
			oldestKey = k
			oldest = e.expires
		}
	}
	if c.max > 0 && len(c.entries) >= c.max && oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Fingerprint derives the cache key for one issue under a given ruleset
// and workflow configuration. Rule identity covers id, version, weight,
// and enablement, so editing a rule invalidates affected entries.
func Fingerprint(issue models.Issue, ctx models.IssueContext, ruleset []*models.PrioritizationRule, prefs models.TeamPreferences) string {
	h := sha256.New()

	enc := json.NewEncoder(h)
	_ = enc.Encode(issue)
	_ = enc.Encode(ctx)

	for _, r := range ruleset {
		if r == nil {
			continue
		}
		fmt.Fprintf(h, "%s|%s|%g|%t;", r.ID, r.Metadata.Version, r.Weight, r.Enabled)
	}

	fmt.Fprintf(h, "wf=%s", prefs.Workflow)
	for _, cat := range models.Categories {
		if w, ok := prefs.Priorities[cat]; ok {
			fmt.Fprintf(h, "|%s=%g", cat, w)
		}
	}
	if s := prefs.CurrentSprint; s != nil {
		fmt.Fprintf(h, "|sprint=%d|%g|%g", s.Number, s.Capacity, s.CurrentLoad)
	}

	return hex.EncodeToString(h.Sum(nil))
}
