package rbac

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// RouteRule gates a path (or path prefix) behind any of its permissions.
type RouteRule struct {
	Path        string       `yaml:"path" json:"path"`
	Exact       bool         `yaml:"exact,omitempty" json:"exact,omitempty"`
	Permissions []Permission `yaml:"permissions" json:"permissions"`
}

// RouteTable is evaluated in order; the first matching rule wins.
type RouteTable []RouteRule

// matches reports whether the rule applies to path. Prefix rules use a plain
// string prefix unless segmentBoundary is set, in which case the character
// after the prefix must be '/' or the end of the path.
func (r RouteRule) matches(path string, segmentBoundary bool) bool {
	if r.Exact {
		return path == r.Path
	}
	if !strings.HasPrefix(path, r.Path) {
		return false
	}
	if !segmentBoundary || len(path) == len(r.Path) || strings.HasSuffix(r.Path, "/") {
		return true
	}
	return path[len(r.Path)] == '/'
}

// Match returns the first rule matching path.
func (t RouteTable) Match(path string, segmentBoundary bool) (RouteRule, bool) {
	for _, rule := range t {
		if rule.matches(path, segmentBoundary) {
			return rule, true
		}
	}
	return RouteRule{}, false
}

// DefaultRouteTable returns the storefront route rules. More specific prefixes
// are listed before their parents because the first match wins.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		{Path: "/admin/users", Permissions: []Permission{PermManageUsers}},
		{Path: "/admin/roles", Permissions: []Permission{PermManageRoles}},
		{Path: "/admin/analytics", Permissions: []Permission{PermViewAnalytics}},
		{Path: "/admin/settings", Permissions: []Permission{PermManageSettings}},
		{Path: "/admin/cache", Permissions: []Permission{PermManageSettings}},
		{Path: "/admin/designs", Permissions: []Permission{PermApproveDesigns}},
		{Path: "/admin", Permissions: []Permission{PermViewAdminDashboard}},

		{Path: "/designer/analytics", Permissions: []Permission{PermViewDesignAnalytics}},
		{Path: "/designer/earnings", Permissions: []Permission{PermViewDesignEarnings}},
		{Path: "/designer/designs/new", Permissions: []Permission{PermUploadDesigns}},
		{Path: "/designer/designs", Permissions: []Permission{PermManageOwnDesigns}},
		{Path: "/designer", Permissions: []Permission{PermViewDesignerDashboard}},

		{Path: "/inventory/reports", Permissions: []Permission{PermViewInventoryReports}},
		{Path: "/inventory/suppliers", Permissions: []Permission{PermManageSuppliers}},
		{Path: "/inventory/alerts", Permissions: []Permission{PermManageStockAlerts}},
		{Path: "/inventory", Permissions: []Permission{PermViewInventory, PermManageInventory}},

		{Path: "/staff/orders", Permissions: []Permission{PermViewOrders, PermManageOrders}},
		{Path: "/staff/returns", Permissions: []Permission{PermProcessReturns}},
		{Path: "/staff/support", Permissions: []Permission{PermManageCustomerSupport}},
		{Path: "/staff/designs", Permissions: []Permission{PermReviewDesigns}},
		{Path: "/staff", Permissions: []Permission{PermViewStaffDashboard}},

		{Path: "/account/orders", Permissions: []Permission{PermViewOwnOrders}},
		{Path: "/account/wishlist", Permissions: []Permission{PermManageWishlist}},
		{Path: "/account", Permissions: []Permission{PermManageProfile}},
		{Path: "/checkout", Permissions: []Permission{PermPlaceOrders}},

		{Path: "/reports", Exact: true, Permissions: []Permission{PermViewReports, PermViewInventoryReports}},
		{Path: "/jobs", Permissions: []Permission{PermManageSettings}},
	}
}

type routeFile struct {
	Routes []RouteRule `yaml:"routes"`
}

// LoadRouteTable decodes route rules from YAML, preserving file order:
//
//	routes:
//	  - path: /admin
//	    permissions: [view_admin_dashboard]
func LoadRouteTable(r io.Reader) (RouteTable, error) {
	var file routeFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("rbac: decode route rules: %w", err)
	}
	if len(file.Routes) == 0 {
		return nil, fmt.Errorf("rbac: route rules file has no routes")
	}
	for i, rule := range file.Routes {
		if !strings.HasPrefix(rule.Path, "/") {
			return nil, fmt.Errorf("rbac: route %d: path %q must start with /", i, rule.Path)
		}
	}
	return RouteTable(file.Routes), nil
}
