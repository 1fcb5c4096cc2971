package entity

import "time"

// ApprovalStep is one approval hop of an expense. Steps are ordered by
// Sequence (1-based, gap-free) and at most one per expense is pending.
type ApprovalStep struct {
	ID         int64      `json:"id"`
	ExpenseID  int64      `json:"expense_id"`
	ApproverID int64      `json:"approver_id"`
	Sequence   int        `json:"sequence"`
	Status     string     `json:"status"`
	Comments   string     `json:"comments,omitempty"`
	DecidedAt  *time.Time `json:"decided_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsPending reports whether the step still awaits its approver
func (s *ApprovalStep) IsPending() bool {
	return s.Status == StatusPending
}
