package rbac

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNewDecisionCacheDefaults(t *testing.T) {
	assert.Equal(t, DefaultCacheTTL, NewDecisionCache(0, nil).TTL())
	assert.Equal(t, DefaultCacheTTL, NewDecisionCache(-time.Second, nil).TTL())
	assert.Equal(t, time.Minute, NewDecisionCache(time.Minute, nil).TTL())
}

func TestDecisionCacheExpiresAtTTL(t *testing.T) {
	clock := newFakeClock()
	cache := NewDecisionCache(5*time.Minute, clock.Now)

	_, found := cache.Get(RoleCustomer, PermBrowseProducts)
	assert.False(t, found)

	cache.Set(RoleCustomer, PermBrowseProducts, true)
	allowed, found := cache.Get(RoleCustomer, PermBrowseProducts)
	require.True(t, found)
	assert.True(t, allowed)

	clock.Advance(5*time.Minute - time.Nanosecond)
	_, found = cache.Get(RoleCustomer, PermBrowseProducts)
	assert.True(t, found, "entry is fresh just before expiry")

	clock.Advance(time.Nanosecond)
	_, found = cache.Get(RoleCustomer, PermBrowseProducts)
	assert.False(t, found, "entry must miss at expiry")
}

func TestDecisionCacheKeysByRoleAndPermission(t *testing.T) {
	cache := NewDecisionCache(time.Minute, newFakeClock().Now)
	cache.Set(RoleAdmin, PermManageUsers, true)
	cache.Set(RoleCustomer, PermManageUsers, false)

	allowed, found := cache.Get(RoleAdmin, PermManageUsers)
	assert.True(t, found)
	assert.True(t, allowed)
	allowed, found = cache.Get(RoleCustomer, PermManageUsers)
	assert.True(t, found)
	assert.False(t, allowed)
	_, found = cache.Get(RoleStaff, PermManageUsers)
	assert.False(t, found)
}

func TestDecisionCachePurge(t *testing.T) {
	clock := newFakeClock()
	cache := NewDecisionCache(time.Minute, clock.Now)
	cache.Set(RoleAdmin, PermManageUsers, true)
	clock.Advance(30 * time.Second)
	cache.Set(RoleStaff, PermViewOrders, true)
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, cache.Purge())
	assert.Equal(t, 1, cache.Len())

	assert.Equal(t, 1, cache.Reset())
	assert.Zero(t, cache.Len())
}

func TestNilDecisionCacheIsInert(t *testing.T) {
	var cache *DecisionCache
	cache.Set(RoleAdmin, PermManageUsers, true)
	_, found := cache.Get(RoleAdmin, PermManageUsers)
	assert.False(t, found)
	assert.Zero(t, cache.Purge())
	assert.Zero(t, cache.Reset())
	assert.Zero(t, cache.Len())
	assert.Zero(t, cache.TTL())
}

func cacheLookups(t *testing.T, registry *prometheus.Registry, result string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "atelier_authz_cache_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestHasPermissionCachedRecomputesAfterExpiry(t *testing.T) {
	clock := newFakeClock()
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	authz := NewAuthorizer(DefaultPolicy(), NewDecisionCache(DefaultCacheTTL, clock.Now), metrics)

	assert.True(t, authz.HasPermissionCached(RoleCustomer, PermBrowseProducts))
	assert.True(t, authz.HasPermissionCached(RoleCustomer, PermBrowseProducts))
	clock.Advance(4 * time.Minute)
	assert.True(t, authz.HasPermissionCached(RoleCustomer, PermBrowseProducts))

	assert.Equal(t, float64(1), cacheLookups(t, registry, "miss"))
	assert.Equal(t, float64(2), cacheLookups(t, registry, "hit"))

	clock.Advance(time.Minute)
	assert.True(t, authz.HasPermissionCached(RoleCustomer, PermBrowseProducts))
	assert.Equal(t, float64(2), cacheLookups(t, registry, "miss"))
}

func TestDecisionCacheConcurrentReaders(t *testing.T) {
	cache := NewDecisionCache(time.Minute, nil)
	authz := NewAuthorizer(nil, cache, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			role := Roles()[i%len(Roles())]
			for _, p := range Catalog() {
				got := authz.HasPermissionCached(role, p)
				if got != HasPermission(role, p) {
					t.Errorf("cached decision diverged for %s/%s", role, p)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, len(Roles())*len(Catalog()), cache.Len())
}
