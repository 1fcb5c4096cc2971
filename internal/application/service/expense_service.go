package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/workflow"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// UpdateExpenseInput carries the fields a submitter may edit while the claim is pending
type UpdateExpenseInput struct {
	Amount      decimal.Decimal
	Currency    string
	Category    string
	Description string
	ReceiptURL  *string
}

// ExpenseService covers reads and owner edits outside the approval flow
type ExpenseService interface {
	// Get returns an expense the viewer may see: their own, one they are an
	// approver on, or any expense for an admin
	Get(ctx context.Context, viewer *entity.User, id int64) (*entity.Expense, error)
	ListMine(ctx context.Context, userID int64) ([]*entity.Expense, error)
	ListAll(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error)
	History(ctx context.Context, viewer *entity.User, id int64) ([]*entity.ExpenseHistory, error)
	Update(ctx context.Context, actorID, id int64, input UpdateExpenseInput) (*entity.Expense, error)
	Delete(ctx context.Context, actorID, id int64) error
}

type expenseServiceImpl struct {
	expenses  port.ExpenseRepository
	steps     port.ApprovalStepRepository
	history   port.HistoryRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	expenses port.ExpenseRepository,
	steps port.ApprovalStepRepository,
	history port.HistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
) ExpenseService {
	return &expenseServiceImpl{
		expenses:  expenses,
		steps:     steps,
		history:   history,
		txManager: txManager,
		logger:    orNop(logger),
	}
}

func (s *expenseServiceImpl) load(ctx context.Context, id int64) (*entity.Expense, error) {
	expense, err := s.expenses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: %d", entity.ErrExpenseNotFound, id)
	}
	return expense, nil
}

// Get implements ExpenseService
func (s *expenseServiceImpl) Get(ctx context.Context, viewer *entity.User, id int64) (*entity.Expense, error) {
	expense, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkVisible(ctx, viewer, expense); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *expenseServiceImpl) checkVisible(ctx context.Context, viewer *entity.User, expense *entity.Expense) error {
	if viewer.IsAdmin() || viewer.ID == expense.UserID {
		return nil
	}

	steps, err := s.steps.ListByExpenseID(ctx, expense.ID)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if step.ApproverID == viewer.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: user %d cannot view expense %d", domainwf.ErrNotAuthorized, viewer.ID, expense.ID)
}

// ListMine returns the expenses submitted by userID, newest first
func (s *expenseServiceImpl) ListMine(ctx context.Context, userID int64) ([]*entity.Expense, error) {
	return s.ListAll(ctx, entity.ExpenseFilter{UserID: &userID})
}

// ListAll returns expenses matching filter, newest first
func (s *expenseServiceImpl) ListAll(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	if filter.Status != "" && !entity.IsValidStatus(filter.Status) {
		return nil, entity.NewValidationError("status", "%q is not a known status", filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, entity.NewValidationError("limit", "limit and offset must not be negative")
	}

	list, err := s.expenses.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*entity.Expense{}
	}
	return list, nil
}

// History returns the audit trail of an expense the viewer may see
func (s *expenseServiceImpl) History(ctx context.Context, viewer *entity.User, id int64) ([]*entity.ExpenseHistory, error) {
	if _, err := s.Get(ctx, viewer, id); err != nil {
		return nil, err
	}
	history, err := s.history.ListByExpenseID(ctx, id)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []*entity.ExpenseHistory{}
	}
	return history, nil
}

// loadOwnedPending loads an expense only its submitter may still change
func (s *expenseServiceImpl) loadOwnedPending(ctx context.Context, actorID, id int64) (*entity.Expense, error) {
	expense, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if expense.UserID != actorID {
		return nil, fmt.Errorf("%w: expense %d belongs to user %d", domainwf.ErrNotAuthorized, id, expense.UserID)
	}
	if !expense.IsPending() {
		return nil, fmt.Errorf("%w: expense %d is %s", domainwf.ErrInvalidState, id, expense.Status)
	}
	return expense, nil
}

// Update edits a pending expense and records an UPDATE history row
func (s *expenseServiceImpl) Update(ctx context.Context, actorID, id int64, input UpdateExpenseInput) (*entity.Expense, error) {
	if err := workflow.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	currency, err := workflow.NormalizeCurrency(input.Currency)
	if err != nil {
		return nil, err
	}
	category, err := workflow.ValidateCategory(input.Category)
	if err != nil {
		return nil, err
	}
	description := workflow.NormalizeDescription(input.Description)
	if input.ReceiptURL != nil && strings.TrimSpace(*input.ReceiptURL) == "" {
		input.ReceiptURL = nil
	}

	var expense *entity.Expense
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		expense, err = s.loadOwnedPending(txCtx, actorID, id)
		if err != nil {
			return err
		}

		changed := changedFields(expense, input.Amount, currency, category, description)

		expense.Amount = input.Amount
		expense.Currency = currency
		expense.Category = category
		expense.Description = description
		expense.ReceiptURL = input.ReceiptURL

		if err := s.expenses.Update(txCtx, expense); err != nil {
			return err
		}

		return s.history.Create(txCtx, &entity.ExpenseHistory{
			ExpenseID:      expense.ID,
			ActorID:        actorID,
			Action:         entity.ActionUpdate,
			PreviousStatus: expense.Status,
			NewStatus:      expense.Status,
			Comments:       changed,
		})
	})
	if err != nil {
		s.logger.Error("Failed to update expense", "error", err, "expense_id", id, "actor_id", actorID)
		return nil, err
	}

	s.logger.Info("Expense updated", "expense_id", id, "actor_id", actorID)
	return expense, nil
}

// Delete removes a pending expense with its steps and history
func (s *expenseServiceImpl) Delete(ctx context.Context, actorID, id int64) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.loadOwnedPending(txCtx, actorID, id); err != nil {
			return err
		}
		return s.expenses.Delete(txCtx, id)
	})
	if err != nil {
		s.logger.Error("Failed to delete expense", "error", err, "expense_id", id, "actor_id", actorID)
		return err
	}

	s.logger.Info("Expense deleted", "expense_id", id, "actor_id", actorID)
	return nil
}

func changedFields(e *entity.Expense, amount decimal.Decimal, currency, category, description string) string {
	var changed []string
	if !e.Amount.Equal(amount) {
		changed = append(changed, fmt.Sprintf("amount %s -> %s", e.Amount.StringFixed(2), amount.StringFixed(2)))
	}
	if e.Currency != currency {
		changed = append(changed, fmt.Sprintf("currency %s -> %s", e.Currency, currency))
	}
	if e.Category != category {
		changed = append(changed, fmt.Sprintf("category %s -> %s", e.Category, category))
	}
	if e.Description != description {
		changed = append(changed, "description")
	}
	if len(changed) == 0 {
		return "no changes"
	}
	return "updated " + strings.Join(changed, ", ")
}
