package entity

// User roles
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// Status constants shared by expenses and approval steps
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// History action constants
const (
	ActionSubmit      = "SUBMIT"
	ActionAutoApprove = "AUTO_APPROVE"
	ActionApprove     = "APPROVE"
	ActionReject      = "REJECT"
	ActionForward     = "FORWARD"
	ActionUpdate      = "UPDATE"
)

var validRoles = map[string]bool{
	RoleEmployee: true,
	RoleManager:  true,
	RoleAdmin:    true,
}

var validStatuses = map[string]bool{
	StatusPending:  true,
	StatusApproved: true,
	StatusRejected: true,
}

// IsValidRole reports whether role is one of the known user roles
func IsValidRole(role string) bool {
	return validRoles[role]
}

// IsValidStatus reports whether status is one of the three expense/step statuses
func IsValidStatus(status string) bool {
	return validStatuses[status]
}

// IsTerminalStatus reports whether no further decision can change the status
func IsTerminalStatus(status string) bool {
	return status == StatusApproved || status == StatusRejected
}
