package entity

import "time"

// ApprovalRule escalates matching expenses to a user holding NextApproverRole.
// Condition is a stored comparison such as "amount > 1000" or
// "category == 'Travel'"; it is parsed, never executed.
type ApprovalRule struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Condition        string    `json:"condition"`
	NextApproverRole string    `json:"next_approver_role,omitempty"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
