package workflow

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// Engine is the expense lifecycle API
type Engine interface {
	// CreateExpense submits a claim. Without a manager the claim is
	// self-approved; otherwise it waits on the manager's step.
	CreateExpense(ctx context.Context, input CreateExpenseInput) (*entity.Expense, error)

	// Decide records the current approver's decision and escalates or finalizes
	Decide(ctx context.Context, input DecisionInput) (*DecisionResult, error)

	// GetApprovalProgress returns the steps of an expense in sequence order
	GetApprovalProgress(ctx context.Context, expenseID int64) ([]*entity.ApprovalStep, error)

	// ListPendingForApprover returns expenses whose pending step belongs to approverID
	ListPendingForApprover(ctx context.Context, approverID int64) ([]*entity.Expense, error)

	// GetExpense returns an expense or ErrExpenseNotFound
	GetExpense(ctx context.Context, expenseID int64) (*entity.Expense, error)
}

// CreateExpenseInput carries the claim fields of a new expense
type CreateExpenseInput struct {
	SubmitterID int64
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Description string
	ReceiptURL  *string
}

// DecisionInput is an approver's decision on an expense
type DecisionInput struct {
	ExpenseID int64
	ActorID   int64
	Decision  string // entity.StatusApproved or entity.StatusRejected
	Comments  string
}

// Outcome describes what a decision did to the expense
type Outcome string

const (
	OutcomeApproved  Outcome = "approved"
	OutcomeRejected  Outcome = "rejected"
	OutcomeForwarded Outcome = "forwarded"
)

// DecisionResult is returned by Decide. NextStep is set only when the
// expense was forwarded.
type DecisionResult struct {
	Expense  *entity.Expense      `json:"expense"`
	Outcome  Outcome              `json:"outcome"`
	NextStep *entity.ApprovalStep `json:"next_step,omitempty"`
}
