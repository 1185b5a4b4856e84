package rbac

// Role classifies a user's relationship to the storefront.
type Role string

// Storefront roles.
const (
	RoleCustomer         Role = "customer"
	RoleDesigner         Role = "designer"
	RoleInventoryManager Role = "inventory_manager"
	RoleStaff            Role = "staff"
	RoleAdmin            Role = "admin"
)

// Roles returns the known roles.
func Roles() []Role {
	return []Role{RoleCustomer, RoleDesigner, RoleInventoryManager, RoleStaff, RoleAdmin}
}

// Known reports whether r is one of the storefront roles.
func (r Role) Known() bool {
	for _, known := range Roles() {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

var customerPermissions = []Permission{
	PermBrowseProducts,
	PermPlaceOrders,
	PermViewOwnOrders,
	PermManageWishlist,
	PermWriteReviews,
	PermManageProfile,
	PermViewCustomerDashboard,
}

var designerPermissions = []Permission{
	PermBrowseProducts,
	PermManageProfile,
	PermUploadDesigns,
	PermManageOwnDesigns,
	PermViewDesignAnalytics,
	PermViewDesignEarnings,
	PermViewDesignerDashboard,
}

var inventoryManagerPermissions = []Permission{
	PermBrowseProducts,
	PermManageProfile,
	PermViewInventory,
	PermManageInventory,
	PermManageStockAlerts,
	PermManageSuppliers,
	PermViewInventoryReports,
	PermViewInventoryDashboard,
}

var staffPermissions = []Permission{
	PermBrowseProducts,
	PermManageProfile,
	PermViewOrders,
	PermManageOrders,
	PermProcessReturns,
	PermManageCustomerSupport,
	PermViewCustomers,
	PermReviewDesigns,
	PermViewStaffDashboard,
}

// adminOnlyPermissions are granted to admin on top of every other role's set.
var adminOnlyPermissions = []Permission{
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

// DefaultRolePermissions returns the storefront role map. The admin set is the
// union of every other role plus the admin-only tokens.
func DefaultRolePermissions() map[Role]PermissionSet {
	roles := map[Role]PermissionSet{
		RoleCustomer:         NewPermissionSet(customerPermissions...),
		RoleDesigner:         NewPermissionSet(designerPermissions...),
		RoleInventoryManager: NewPermissionSet(inventoryManagerPermissions...),
		RoleStaff:            NewPermissionSet(staffPermissions...),
	}
	admin := NewPermissionSet(adminOnlyPermissions...)
	for _, set := range roles {
		admin = admin.Union(set)
	}
	roles[RoleAdmin] = admin
	return roles
}

// DefaultLandings maps each role to its dashboard entry point.
func DefaultLandings() map[Role]string {
	return map[Role]string{
		RoleCustomer:         "/account",
		RoleDesigner:         "/designer",
		RoleInventoryManager: "/inventory",
		RoleStaff:            "/staff",
		RoleAdmin:            "/admin",
	}
}
