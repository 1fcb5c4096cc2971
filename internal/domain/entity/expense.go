package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a claim submitted by a user. Status moves from pending to
// approved or rejected exactly once.
type Expense struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	ReceiptURL  *string         `json:"receipt_url,omitempty"`
	Status      string          `json:"status"`
	SubmittedAt time.Time       `json:"submitted_at"`

	// Finalization fields
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	ApprovedBy *int64     `json:"approved_by,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	RejectedBy *int64     `json:"rejected_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPending reports whether the expense is still waiting on a decision
func (e *Expense) IsPending() bool {
	return e.Status == StatusPending
}

// ExpenseFilter narrows expense listings
type ExpenseFilter struct {
	UserID *int64
	Status string
	Limit  int
	Offset int
}
