package user

type Role string

const (
	RoleSpecialist Role = "specialist" // Payroll specialist - prepares runs
	RoleManager    Role = "manager"    // Payroll manager - reviews and unfreezes
	RoleFinance    Role = "finance"    // Finance staff - approves and executes
	RoleAdmin      Role = "admin"      // Full access
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSpecialist, RoleManager, RoleFinance, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor is the authenticated caller as read from the access token.
type Actor struct {
	UserID string
	Role   Role
}
