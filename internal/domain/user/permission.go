package user

type Permission string

const (
	// Pre-run gate
	PermissionPhase0View   Permission = "phase0.view"
	PermissionPhase0Decide Permission = "phase0.decide"

	// Run lifecycle
	PermissionRunView       Permission = "run.view"
	PermissionRunPrepare    Permission = "run.prepare" // initiate, calculate, submit
	PermissionRunReview     Permission = "run.review"  // manager approve/reject
	PermissionRunFinance    Permission = "run.finance" // finance approve/reject
	PermissionRunExecute    Permission = "run.execute"
	PermissionRunUnfreeze   Permission = "run.unfreeze"
	PermissionPayslipEdit   Permission = "payslip.edit"
	PermissionAnomalyReview Permission = "anomaly.review"

	// Reports
	PermissionReportsView Permission = "reports.view"
	PermissionExport      Permission = "export.bank_transfer"
	PermissionAuditView   Permission = "audit.view"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleSpecialist: {
		PermissionPhase0View,
		PermissionPhase0Decide,
		PermissionRunView,
		PermissionRunPrepare,
		PermissionPayslipEdit,
		PermissionAnomalyReview,
		PermissionReportsView,
		PermissionAuditView,
	},
	RoleManager: {
		PermissionPhase0View,
		PermissionRunView,
		PermissionRunReview,
		PermissionRunUnfreeze,
		PermissionAnomalyReview,
		PermissionReportsView,
		PermissionAuditView,
	},
	RoleFinance: {
		PermissionRunView,
		PermissionRunFinance,
		PermissionRunExecute,
		PermissionReportsView,
		PermissionExport,
	},
}

// HasPermission checks if a role has a specific permission. Admin has all of them.
func HasPermission(role Role, permission Permission) bool {
	if role == RoleAdmin {
		return true
	}

	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
