package auth

import "context"

const (
	RoleStaff        = "staff"
	RoleManager      = "manager"
	RolePayrollAdmin = "payroll_admin"
	RoleSystemAdmin  = "system_admin"
)

const (
	PermPayrollRead      = "payroll.read"
	PermPayrollCalculate = "payroll.calculate"
	PermPayrollApprove   = "payroll.approve"
	PermPayrollExport    = "payroll.export"
	PermAmendmentsWrite  = "amendments.write"
	PermAmendmentsReview = "amendments.review"
	PermBonusesRead      = "bonuses.read"
	PermBonusesWrite     = "bonuses.write"
	PermVendAllocate     = "vend.allocate"
	PermXeroSync         = "xero.sync"
	PermReportsRead      = "reports.read"
	PermAuditRead        = "audit.read"
	PermSystemAdmin      = "admin.system"
)

var DefaultPermissions = []string{
	PermPayrollRead,
	PermPayrollCalculate,
	PermPayrollApprove,
	PermPayrollExport,
	PermAmendmentsWrite,
	PermAmendmentsReview,
	PermBonusesRead,
	PermBonusesWrite,
	PermVendAllocate,
	PermXeroSync,
	PermReportsRead,
	PermAuditRead,
	PermSystemAdmin,
}

var RolePermissions = map[string][]string{
	RoleStaff: {
		PermAmendmentsWrite,
		PermBonusesRead,
	},
	RoleManager: {
		PermPayrollRead,
		PermAmendmentsWrite,
		PermAmendmentsReview,
		PermBonusesRead,
		PermBonusesWrite,
		PermReportsRead,
	},
	RolePayrollAdmin: {
		PermPayrollRead,
		PermPayrollCalculate,
		PermPayrollApprove,
		PermPayrollExport,
		PermAmendmentsWrite,
		PermAmendmentsReview,
		PermBonusesRead,
		PermBonusesWrite,
		PermVendAllocate,
		PermXeroSync,
		PermReportsRead,
		PermAuditRead,
	},
	RoleSystemAdmin: DefaultPermissions,
}

var rolePermissionSet = func() map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(RolePermissions))
	for role, perms := range RolePermissions {
		set := make(map[string]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		out[role] = set
	}
	return out
}()

// RoleHasPermission reports whether the built-in role grants permission.
func RoleHasPermission(role, permission string) bool {
	return rolePermissionSet[role][permission]
}

// StaticPermissions answers permission checks from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	return RoleHasPermission(role, permission), nil
}
