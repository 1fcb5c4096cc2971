package entity

import "time"

// User is an employee, manager or admin. ManagerID is a weak reference to the
// user's direct approver.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ManagerID *int64    `json:"manager_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasManager reports whether the user has a designated direct approver
func (u *User) HasManager() bool {
	return u.ManagerID != nil && *u.ManagerID != 0
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
