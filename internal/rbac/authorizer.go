package rbac

// Authorizer is the check surface used by guards: a policy plus an optional
// decision cache and metrics. Client-side checks made through it hide or
// redirect; they never replace the backend's own authorization.
type Authorizer struct {
	policy  *Policy
	cache   *DecisionCache
	metrics *Metrics
}

// NewAuthorizer wires an Authorizer. A nil policy selects DefaultPolicy; cache
// and metrics may be nil.
func NewAuthorizer(policy *Policy, cache *DecisionCache, metrics *Metrics) *Authorizer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Authorizer{policy: policy, cache: cache, metrics: metrics}
}

// Policy exposes the underlying policy.
func (a *Authorizer) Policy() *Policy {
	return a.policy
}

// HasPermissionCached answers HasPermission, serving from the cache while the
// entry is fresh.
func (a *Authorizer) HasPermissionCached(role Role, perm Permission) bool {
	if allowed, ok := a.cache.Get(role, perm); ok {
		a.metrics.cacheResult(true)
		return allowed
	}
	a.metrics.cacheResult(false)
	allowed := a.policy.HasPermission(role, perm)
	a.cache.Set(role, perm, allowed)
	return allowed
}

// Decide evaluates a requirement and records the outcome.
func (a *Authorizer) Decide(subject Subject, req Requirement) Decision {
	d := a.policy.Decide(subject, req)
	a.metrics.observe("requirement", d)
	return d
}

// DecideRoute evaluates navigation to path and records the outcome.
func (a *Authorizer) DecideRoute(subject Subject, path string) Decision {
	d := a.policy.DecideRoute(subject, path)
	a.metrics.observe("route", d)
	return d
}

// Can reports whether a resolved subject holds perm. Loading subjects get false.
func (a *Authorizer) Can(subject Subject, perm Permission) bool {
	if !subject.Authenticated() {
		return false
	}
	return a.HasPermissionCached(subject.Role, perm)
}
