package permission

import (
	"strings"

	"github.com/Itdepartment-b1g/B1G-Ordering-System-V2-sub003/internal/user"
)

// sysAdminPrefix is the reserved path segment for system-level routes.
const sysAdminPrefix = "/sys-admin"

// sysAdminRoutes is the fixed allow-list for system administrators; anything
// outside it (and outside the reserved prefix) is denied for that role.
var sysAdminRoutes = map[string]struct{}{
	"/sys-admin-dashboard": {},
	"/sys-admin/companies": {},
	"/sys-admin/users":     {},
	"/sys-admin/settings":  {},
}

// Allows is the access decision for (role, route-or-feature). It is evaluated
// fresh on every check; there is no cached state.
//
// system_administrator is confined to the system console. super_admin passes
// everywhere; tenant scoping is the row store's job, not this function's.
// Every other role currently resolves to allow; per-role route tables are an
// extension point that has not been filled in yet.
func Allows(role user.Role, routeOrFeature string) bool {
	switch role {
	case user.RoleSystemAdministrator:
		if _, ok := sysAdminRoutes[routeOrFeature]; ok {
			return true
		}
		// Match the reserved segment exactly: "/sys-admin" or anything below
		// it, but not lookalikes such as "/sys-administration".
		return routeOrFeature == sysAdminPrefix ||
			strings.HasPrefix(routeOrFeature, sysAdminPrefix+"/")
	case user.RoleSuperAdmin:
		return true
	default:
		return true
	}
}
