package rbac

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds how long a cached permission decision is served.
const DefaultCacheTTL = 5 * time.Minute

// DecisionCache memoises role/permission decisions for a fixed TTL. Entries
// are only ever invalidated by expiry; the policy is immutable, so a stale
// read within the TTL returns the same answer a fresh check would.
type DecisionCache struct {
	ttl   time.Duration
	clock func() time.Time
	mu    sync.RWMutex
	items map[decisionKey]decisionItem
}

type decisionKey struct {
	role Role
	perm Permission
}

type decisionItem struct {
	allowed bool
	expires time.Time
}

// NewDecisionCache builds a cache. A non-positive ttl selects DefaultCacheTTL
// and a nil clock selects time.Now.
func NewDecisionCache(ttl time.Duration, clock func() time.Time) *DecisionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &DecisionCache{
		ttl:   ttl,
		clock: clock,
		items: make(map[decisionKey]decisionItem),
	}
}

// TTL returns the configured expiry window.
func (c *DecisionCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// Get returns a cached decision. An entry is a miss from its expiry instant on.
func (c *DecisionCache) Get(role Role, perm Permission) (allowed bool, found bool) {
	if c == nil {
		return false, false
	}
	c.mu.RLock()
	item, ok := c.items[decisionKey{role: role, perm: perm}]
	c.mu.RUnlock()
	if !ok || !c.clock().Before(item.expires) {
		return false, false
	}
	return item.allowed, true
}

// Set stores a decision stamped with the current clock.
func (c *DecisionCache) Set(role Role, perm Permission, allowed bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items[decisionKey{role: role, perm: perm}] = decisionItem{allowed: allowed, expires: c.clock().Add(c.ttl)}
	c.mu.Unlock()
}

// Purge drops expired entries and returns how many were removed.
func (c *DecisionCache) Purge() int {
	if c == nil {
		return 0
	}
	now := c.clock()
	removed := 0
	c.mu.Lock()
	for key, item := range c.items {
		if !now.Before(item.expires) {
			delete(c.items, key)
			removed++
		}
	}
	c.mu.Unlock()
	return removed
}

// Reset drops every entry and returns how many were removed.
func (c *DecisionCache) Reset() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[decisionKey]decisionItem)
	return n
}

// Len returns the number of stored entries, expired ones included.
func (c *DecisionCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
