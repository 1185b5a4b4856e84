package rbac

import (
	"errors"
	"fmt"
)

// Policy is the immutable authorization configuration: role map, route table
// and landing routes. It is built once at start-up and only read afterwards,
// so it is safe for concurrent use without locking.
type Policy struct {
	roles           map[Role]PermissionSet
	routes          RouteTable
	landings        map[Role]string
	segmentBoundary bool
}

// PolicyOption customises a Policy under construction.
type PolicyOption func(*Policy)

// WithRoutes replaces the default route table.
func WithRoutes(routes RouteTable) PolicyOption {
	return func(p *Policy) {
		p.routes = append(RouteTable(nil), routes...)
	}
}

// WithRoles replaces the default role map.
func WithRoles(roles map[Role]PermissionSet) PolicyOption {
	return func(p *Policy) {
		p.roles = make(map[Role]PermissionSet, len(roles))
		for r, s := range roles {
			p.roles[r] = s
		}
	}
}

// WithLandings replaces the default landing routes.
func WithLandings(landings map[Role]string) PolicyOption {
	return func(p *Policy) {
		p.landings = make(map[Role]string, len(landings))
		for r, l := range landings {
			p.landings[r] = l
		}
	}
}

// WithSegmentBoundary makes prefix rules match only on whole path segments,
// so /admin no longer matches /admin-panel.
func WithSegmentBoundary(enabled bool) PolicyOption {
	return func(p *Policy) {
		p.segmentBoundary = enabled
	}
}

// NewPolicy builds a policy from the storefront defaults and the given options.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{
		roles:    DefaultRolePermissions(),
		routes:   DefaultRouteTable(),
		landings: DefaultLandings(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultPolicy = NewPolicy()

// DefaultPolicy returns the process-wide storefront policy.
func DefaultPolicy() *Policy {
	return defaultPolicy
}

// PermissionSet returns the capability set of role. Unknown roles hold nothing.
func (p *Policy) PermissionSet(role Role) PermissionSet {
	return p.roles[role]
}

// UserPermissions lists role's permissions in catalog order.
func (p *Policy) UserPermissions(role Role) []Permission {
	return p.roles[role].Permissions()
}

// HasPermission reports whether role holds perm.
func (p *Policy) HasPermission(role Role, perm Permission) bool {
	return p.roles[role].Has(perm)
}

// HasAnyPermission reports whether role holds at least one of perms.
// An empty list is never satisfied.
func (p *Policy) HasAnyPermission(role Role, perms []Permission) bool {
	if len(perms) == 0 {
		return false
	}
	mask, _ := requirementMask(perms)
	return p.roles[role]&mask != 0
}

// HasAllPermissions reports whether role holds every one of perms.
// An empty list is always satisfied.
func (p *Policy) HasAllPermissions(role Role, perms []Permission) bool {
	if len(perms) == 0 {
		return true
	}
	mask, allKnown := requirementMask(perms)
	if !allKnown {
		return false
	}
	return p.roles[role].Contains(mask)
}

// MatchRoute returns the first route rule that applies to path.
func (p *Policy) MatchRoute(path string) (RouteRule, bool) {
	return p.routes.Match(path, p.segmentBoundary)
}

// CanAccessRoute decides navigation to path. Paths without a rule are open.
func (p *Policy) CanAccessRoute(role Role, path string) bool {
	rule, ok := p.MatchRoute(path)
	if !ok {
		return true
	}
	return p.HasAnyPermission(role, rule.Permissions)
}

// Landing returns role's default dashboard route, or "/" for unknown roles.
func (p *Policy) Landing(role Role) string {
	if l, ok := p.landings[role]; ok && l != "" {
		return l
	}
	return "/"
}

// Routes returns a copy of the route table.
func (p *Policy) Routes() RouteTable {
	return append(RouteTable(nil), p.routes...)
}

// AccessibleRoutes lists the rule paths role may visit, in table order.
func (p *Policy) AccessibleRoutes(role Role) []string {
	out := make([]string, 0, len(p.routes))
	for _, rule := range p.routes {
		if p.HasAnyPermission(role, rule.Permissions) {
			out = append(out, rule.Path)
		}
	}
	return out
}

// Validate checks the consistency of the policy tables.
func (p *Policy) Validate() error {
	var errs []error
	var granted PermissionSet
	for _, role := range Roles() {
		set, ok := p.roles[role]
		if !ok {
			errs = append(errs, fmt.Errorf("rbac: role %q has no permission entry", role))
			continue
		}
		granted = granted.Union(set)
	}
	for i, rule := range p.routes {
		if len(rule.Permissions) == 0 {
			errs = append(errs, fmt.Errorf("rbac: route %d (%s) lists no permissions", i, rule.Path))
		}
		for _, perm := range rule.Permissions {
			if !perm.Known() {
				errs = append(errs, fmt.Errorf("rbac: route %s references unknown permission %q", rule.Path, perm))
				continue
			}
			if !granted.Has(perm) {
				errs = append(errs, fmt.Errorf("rbac: route %s requires %q which no role holds", rule.Path, perm))
			}
		}
	}
	for role, landing := range p.landings {
		if !p.CanAccessRoute(role, landing) {
			errs = append(errs, fmt.Errorf("rbac: landing %s is not accessible to role %q", landing, role))
		}
	}
	return errors.Join(errs...)
}

// UserPermissions lists role's permissions under the default policy.
func UserPermissions(role Role) []Permission {
	return defaultPolicy.UserPermissions(role)
}

// HasPermission evaluates against the default policy.
func HasPermission(role Role, perm Permission) bool {
	return defaultPolicy.HasPermission(role, perm)
}

// HasAnyPermission evaluates against the default policy.
func HasAnyPermission(role Role, perms []Permission) bool {
	return defaultPolicy.HasAnyPermission(role, perms)
}

// HasAllPermissions evaluates against the default policy.
func HasAllPermissions(role Role, perms []Permission) bool {
	return defaultPolicy.HasAllPermissions(role, perms)
}

// CanAccessRoute evaluates against the default policy.
func CanAccessRoute(role Role, path string) bool {
	return defaultPolicy.CanAccessRoute(role, path)
}

// DefaultLanding returns role's landing route under the default policy.
func DefaultLanding(role Role) string {
	return defaultPolicy.Landing(role)
}
