package rbac

import (
	"bytes"
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	anonymous = Subject{}
	loading   = Subject{UserID: "u-1", Loading: true}
	customer  = Subject{UserID: "u-2", Role: RoleCustomer}
	designer  = Subject{UserID: "u-3", Role: RoleDesigner}
	admin     = Subject{UserID: "u-4", Role: RoleAdmin}
)

func TestDecideStates(t *testing.T) {
	policy := DefaultPolicy()
	cases := []struct {
		name    string
		subject Subject
		req     Requirement
		want    Decision
	}{
		{"loading beats everything", loading, AnyOf(PermBrowseProducts), Pending},
		{"loading with signed-in requirement", loading, SignedIn(), Pending},
		{"anonymous denied", anonymous, SignedIn(), Denied},
		{"signed in", customer, SignedIn(), Granted},
		{"empty any list", admin, AnyOf(), Denied},
		{"empty all list", customer, AllOf(), Granted},
		{"zero requirement is an empty any list", admin, Requirement{}, Denied},
		{"malformed token never matches", admin, AnyOf("MANAGE_USERS"), Denied},
		{"blank token never matches", admin, AnyOf("  "), Denied},
		{"any satisfied", customer, AnyOf(PermManageUsers, PermPlaceOrders), Granted},
		{"any unsatisfied", customer, AnyOf(PermManageUsers), Denied},
		{"all satisfied", admin, AllOf(PermManageUsers, PermViewAnalytics), Granted},
		{"all unsatisfied", designer, AllOf(PermUploadDesigns, PermManageUsers), Denied},
		{"role list matches", designer, OneOfRoles(RoleDesigner, RoleAdmin), Granted},
		{"role list misses", customer, OneOfRoles(RoleDesigner, RoleAdmin), Denied},
		{"role and permission", designer, Requirement{Roles: []Role{RoleDesigner}, Permissions: []Permission{PermManageUsers}}, Denied},
		{"unknown role", Subject{UserID: "u-5", Role: "ghost"}, AnyOf(PermBrowseProducts), Denied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, policy.Decide(tc.subject, tc.req))
		})
	}
}

func TestDecideRouteStates(t *testing.T) {
	policy := DefaultPolicy()
	assert.Equal(t, Pending, policy.DecideRoute(loading, "/products"))
	assert.Equal(t, Granted, policy.DecideRoute(anonymous, "/products"))
	assert.Equal(t, Denied, policy.DecideRoute(anonymous, "/account"))
	assert.Equal(t, Granted, policy.DecideRoute(customer, "/account"))
	assert.Equal(t, Denied, policy.DecideRoute(customer, "/admin/users"))
	assert.Equal(t, Granted, policy.DecideRoute(designer, "/designer/analytics"))
}

func TestRenderGuardOutcomes(t *testing.T) {
	authz := NewAuthorizer(nil, nil, nil)
	silent := RenderGuard{Requirement: AnyOf(PermManageUsers)}
	withFallback := RenderGuard{Requirement: AnyOf(PermManageUsers), Fallback: true}

	assert.Equal(t, OutcomeNothing, silent.Outcome(authz, loading))
	assert.Equal(t, OutcomeNothing, withFallback.Outcome(authz, loading))
	assert.Equal(t, OutcomeNothing, silent.Outcome(authz, customer))
	assert.Equal(t, OutcomeFallback, withFallback.Outcome(authz, customer))
	assert.Equal(t, OutcomeChildren, silent.Outcome(authz, admin))
	assert.Equal(t, OutcomeChildren, withFallback.Outcome(authz, admin))
}

func TestRenderGuardNothingWhileLoadingForAnyRequirement(t *testing.T) {
	authz := NewAuthorizer(nil, nil, nil)
	for _, p := range Catalog() {
		g := RenderGuard{Requirement: AnyOf(p), Fallback: true}
		assert.Equal(t, OutcomeNothing, g.Outcome(authz, Subject{Loading: true}), p)
	}
}

func TestTemplateFuncs(t *testing.T) {
	authz := NewAuthorizer(nil, NewDecisionCache(0, nil), nil)
	tpl, err := template.New("t").Funcs(TemplateFuncs(authz)).Parse(
		`{{if can . "manage_users"}}U{{end}}` +
			`{{if canAny . "manage_users" "browse_products"}}A{{end}}` +
			`{{if canAll . "browse_products" "place_orders"}}L{{end}}` +
			`{{if canVisit . "/admin"}}V{{end}}` +
			`{{if isLoading .}}…{{end}}` +
			`{{with guard . "any" "manage_users"}}{{if .ShowChildren}}C{{else if .ShowFallback}}F{{end}}{{end}}`)
	require.NoError(t, err)

	render := func(s Subject) string {
		var buf bytes.Buffer
		require.NoError(t, tpl.Execute(&buf, s))
		return buf.String()
	}

	assert.Equal(t, "UALVC", render(admin))
	assert.Equal(t, "ALF", render(customer))
	assert.Equal(t, "…", render(loading))
	assert.Equal(t, "F", render(anonymous))
}

func TestTemplateFuncsFollowPredicatesForEmptyLists(t *testing.T) {
	authz := NewAuthorizer(nil, nil, nil)
	tpl, err := template.New("t").Funcs(TemplateFuncs(authz)).Parse(
		`{{if canAny .}}A{{end}}{{if canAll .}}L{{end}}{{if canAny . "MANAGE_USERS"}}M{{end}}`)
	require.NoError(t, err)

	for _, s := range []Subject{customer, admin} {
		var buf bytes.Buffer
		require.NoError(t, tpl.Execute(&buf, s))
		assert.Equal(t, "L", buf.String(), s.Role)
		assert.False(t, HasAnyPermission(s.Role, nil))
		assert.True(t, HasAllPermissions(s.Role, nil))
	}
}

// Open-world routes stay reachable for anonymous visitors; protecting data
// behind them is the backend's job, not the storefront's.
func TestUnruledPathsAreNotProtected(t *testing.T) {
	policy := DefaultPolicy()
	for _, path := range []string{"/api/orders/export", "/products/9", "/lookbook"} {
		assert.Equal(t, Granted, policy.DecideRoute(Subject{}, path), path)
	}
}
