package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	ListByRole(ctx context.Context, role string) ([]*entity.User, error)
	ListByManagerID(ctx context.Context, managerID int64) ([]*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	Delete(ctx context.Context, id int64) error
}

// ExpenseRepository defines persistence operations for Expense
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	GetByID(ctx context.Context, id int64) (*entity.Expense, error)
	ListByUserID(ctx context.Context, userID int64) ([]*entity.Expense, error)
	List(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	// ListPendingForApprover returns pending expenses whose current pending
	// step is assigned to approverID
	ListPendingForApprover(ctx context.Context, approverID int64) ([]*entity.Expense, error)
	// UpdateStatus finalizes an expense. Approved sets approved_at/approved_by,
	// rejected sets rejected_at/rejected_by.
	UpdateStatus(ctx context.Context, id int64, status string, actorID int64, at time.Time) error
	// Update persists editable fields (amount, currency, category, description, receipt)
	Update(ctx context.Context, expense *entity.Expense) error
	Delete(ctx context.Context, id int64) error
}

// ApprovalRuleRepository defines persistence operations for ApprovalRule
type ApprovalRuleRepository interface {
	Create(ctx context.Context, rule *entity.ApprovalRule) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error)
	// List returns rules in definition order (ascending id)
	List(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error)
	Update(ctx context.Context, rule *entity.ApprovalRule) error
	Delete(ctx context.Context, id int64) error
}

// ApprovalStepRepository defines persistence operations for ApprovalStep
type ApprovalStepRepository interface {
	Create(ctx context.Context, step *entity.ApprovalStep) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalStep, error)
	// ListByExpenseID returns steps ordered by sequence
	ListByExpenseID(ctx context.Context, expenseID int64) ([]*entity.ApprovalStep, error)
	// GetPending returns the lowest-sequence pending step, or nil
	GetPending(ctx context.Context, expenseID int64) (*entity.ApprovalStep, error)
	MaxSequence(ctx context.Context, expenseID int64) (int, error)
	// Decide moves a pending step to status. It reports false when the step
	// was no longer pending.
	Decide(ctx context.Context, id int64, status, comments string, at time.Time) (bool, error)
	CountPendingByApprover(ctx context.Context, approverID int64) (int, error)
}

// HistoryRepository defines persistence operations for ExpenseHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ExpenseHistory) error
	// ListByExpenseID returns history in insertion order
	ListByExpenseID(ctx context.Context, expenseID int64) ([]*entity.ExpenseHistory, error)
}

// TransactionManager manages database transactions
type TransactionManager interface {
	// WithTransaction runs fn inside a transaction carried by ctx.
	// Nested calls join the outer transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
