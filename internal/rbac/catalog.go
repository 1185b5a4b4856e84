// Package rbac decides what the storefront shows and where it navigates for
// each role. It hides and redirects only: the marketplace backend authorizes
// every call on its own, so nothing here is a security boundary.
package rbac

// Permission is an opaque capability token.
type Permission string

// Storefront permissions. The declaration order fixes each token's bit in a PermissionSet.
const (
	PermBrowseProducts        Permission = "browse_products"
	PermPlaceOrders           Permission = "place_orders"
	PermViewOwnOrders         Permission = "view_own_orders"
	PermManageWishlist        Permission = "manage_wishlist"
	PermWriteReviews          Permission = "write_reviews"
	PermManageProfile         Permission = "manage_profile"
	PermViewCustomerDashboard Permission = "view_customer_dashboard"

	PermUploadDesigns         Permission = "upload_designs"
	PermManageOwnDesigns      Permission = "manage_own_designs"
	PermViewDesignAnalytics   Permission = "view_design_analytics"
	PermViewDesignEarnings    Permission = "view_design_earnings"
	PermViewDesignerDashboard Permission = "view_designer_dashboard"

	PermViewInventory          Permission = "view_inventory"
	PermManageInventory        Permission = "manage_inventory"
	PermManageStockAlerts      Permission = "manage_stock_alerts"
	PermManageSuppliers        Permission = "manage_suppliers"
	PermViewInventoryReports   Permission = "view_inventory_reports"
	PermViewInventoryDashboard Permission = "view_inventory_dashboard"

	PermViewOrders            Permission = "view_orders"
	PermManageOrders          Permission = "manage_orders"
	PermProcessReturns        Permission = "process_returns"
	PermManageCustomerSupport Permission = "manage_customer_support"
	PermViewCustomers         Permission = "view_customers"
	PermReviewDesigns         Permission = "review_designs"
	PermViewStaffDashboard    Permission = "view_staff_dashboard"

	PermManageUsers        Permission = "manage_users"
	PermManageRoles        Permission = "manage_roles"
	PermViewAnalytics      Permission = "view_analytics"
	PermManageSettings     Permission = "manage_settings"
	PermViewReports        Permission = "view_reports"
	PermManagePromotions   Permission = "manage_promotions"
	PermManageCategories   Permission = "manage_categories"
	PermManageProducts     Permission = "manage_products"
	PermApproveDesigns     Permission = "approve_designs"
	PermViewAuditLogs      Permission = "view_audit_logs"
	PermViewAdminDashboard Permission = "view_admin_dashboard"
)

var catalog = []Permission{
	PermBrowseProducts,
	PermPlaceOrders,
	PermViewOwnOrders,
	PermManageWishlist,
	PermWriteReviews,
	PermManageProfile,
	PermViewCustomerDashboard,
	PermUploadDesigns,
	PermManageOwnDesigns,
	PermViewDesignAnalytics,
	PermViewDesignEarnings,
	PermViewDesignerDashboard,
	PermViewInventory,
	PermManageInventory,
	PermManageStockAlerts,
	PermManageSuppliers,
	PermViewInventoryReports,
	PermViewInventoryDashboard,
	PermViewOrders,
	PermManageOrders,
	PermProcessReturns,
	PermManageCustomerSupport,
	PermViewCustomers,
	PermReviewDesigns,
	PermViewStaffDashboard,
	PermManageUsers,
	PermManageRoles,
	PermViewAnalytics,
	PermManageSettings,
	PermViewReports,
	PermManagePromotions,
	PermManageCategories,
	PermManageProducts,
	PermApproveDesigns,
	PermViewAuditLogs,
	PermViewAdminDashboard,
}

var catalogIndex = func() map[Permission]uint {
	if len(catalog) > 64 {
		panic("rbac: permission catalog exceeds PermissionSet capacity")
	}
	idx := make(map[Permission]uint, len(catalog))
	for i, p := range catalog {
		idx[p] = uint(i)
	}
	return idx
}()

// Catalog returns every known permission in declaration order.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// Known reports whether p belongs to the catalog.
func (p Permission) Known() bool {
	_, ok := catalogIndex[p]
	return ok
}

func (p Permission) String() string {
	return string(p)
}
