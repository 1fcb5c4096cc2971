package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqldb"
)

const expenseColumns = `e.id, e.user_id, e.amount, e.currency, e.category, e.description, e.receipt_url,
	e.status, e.submitted_at, e.approved_at, e.approved_by, e.rejected_at, e.rejected_by,
	e.created_at, e.updated_at`

// ExpenseRepository implements port.ExpenseRepository
type ExpenseRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sqldb.DB, logger *zap.Logger) port.ExpenseRepository {
	return &ExpenseRepository{db: db, logger: logger}
}

// Create inserts an expense. Status defaults to pending and SubmittedAt to now;
// an expense created already approved carries its approver fields.
func (r *ExpenseRepository) Create(ctx context.Context, expense *entity.Expense) error {
	ts := now()
	if expense.Status == "" {
		expense.Status = entity.StatusPending
	}
	if expense.SubmittedAt.IsZero() {
		expense.SubmittedAt = ts
	}

	query := r.db.Rebind(`
		INSERT INTO expenses (
			user_id, amount, currency, category, description, receipt_url,
			status, submitted_at, approved_at, approved_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	var approvedAt sql.NullTime
	if expense.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *expense.ApprovedAt, Valid: true}
	}

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		expense.UserID,
		expense.Amount,
		expense.Currency,
		expense.Category,
		expense.Description,
		nullString(expense.ReceiptURL),
		expense.Status,
		expense.SubmittedAt,
		approvedAt,
		nullInt64(expense.ApprovedBy),
		ts,
		ts,
	).Scan(&expense.ID)
	if err != nil {
		r.logger.Error("Failed to create expense",
			zap.Int64("user_id", expense.UserID),
			zap.String("amount", expense.Amount.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create expense: %w", err)
	}

	expense.CreatedAt = ts
	expense.UpdatedAt = ts
	return nil
}

// GetByID returns the expense or nil when it does not exist
func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*entity.Expense, error) {
	query := r.db.Rebind(`SELECT ` + expenseColumns + ` FROM expenses e WHERE e.id = ?`)

	expense, err := scanExpense(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get expense", zap.Int64("expense_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// ListByUserID returns a user's expenses, newest first
func (r *ExpenseRepository) ListByUserID(ctx context.Context, userID int64) ([]*entity.Expense, error) {
	return r.List(ctx, entity.ExpenseFilter{UserID: &userID})
}

// List returns expenses matching filter, newest first
func (r *ExpenseRepository) List(ctx context.Context, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != nil {
		where = append(where, "e.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != "" {
		where = append(where, "e.status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses e`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY e.submitted_at DESC, e.id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	return r.query(ctx, "Failed to list expenses", query, args...)
}

// ListPendingForApprover returns pending expenses whose pending step is
// assigned to approverID, oldest submission first
func (r *ExpenseRepository) ListPendingForApprover(ctx context.Context, approverID int64) ([]*entity.Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses e
		JOIN expense_approvals a ON a.expense_id = e.id
		WHERE a.approver_id = ? AND a.status = 'pending' AND e.status = 'pending'
		ORDER BY e.submitted_at ASC, e.id ASC
	`
	return r.query(ctx, "Failed to list pending expenses for approver", query, approverID)
}

func (r *ExpenseRepository) query(ctx context.Context, failMsg, query string, args ...interface{}) ([]*entity.Expense, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error(failMsg, zap.Error(err))
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*entity.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	return expenses, rows.Err()
}

// UpdateStatus finalizes a pending expense as approved or rejected
func (r *ExpenseRepository) UpdateStatus(ctx context.Context, id int64, status string, actorID int64, at time.Time) error {
	var query string
	switch status {
	case entity.StatusApproved:
		query = `UPDATE expenses SET status = ?, approved_at = ?, approved_by = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'`
	case entity.StatusRejected:
		query = `UPDATE expenses SET status = ?, rejected_at = ?, rejected_by = ?, updated_at = ?
			WHERE id = ? AND status = 'pending'`
	default:
		return entity.NewValidationError("status", "cannot finalize expense as %q", status)
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(query), status, at, actorID, at, id)
	if err != nil {
		r.logger.Error("Failed to update expense status",
			zap.Int64("expense_id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to update expense status: %w", err)
	}

	return r.requirePendingHit(ctx, result, id)
}

// Update persists the editable fields of a pending expense. Finalized
// expenses are refused with workflow.ErrInvalidState.
func (r *ExpenseRepository) Update(ctx context.Context, expense *entity.Expense) error {
	ts := now()
	query := r.db.Rebind(`
		UPDATE expenses
		SET amount = ?, currency = ?, category = ?, description = ?, receipt_url = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		expense.Amount,
		expense.Currency,
		expense.Category,
		expense.Description,
		nullString(expense.ReceiptURL),
		ts,
		expense.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update expense", zap.Int64("expense_id", expense.ID), zap.Error(err))
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if err := r.requirePendingHit(ctx, result, expense.ID); err != nil {
		return err
	}

	expense.UpdatedAt = ts
	return nil
}

// Delete removes a pending expense together with its steps and history
func (r *ExpenseRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM expenses WHERE id = ? AND status = 'pending'`)
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to delete expense", zap.Int64("expense_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return r.requirePendingHit(ctx, result, id)
}

// requirePendingHit turns a write guarded by status = 'pending' that touched
// no row into ErrExpenseNotFound or workflow.ErrInvalidState
func (r *ExpenseRepository) requirePendingHit(ctx context.Context, result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = r.db.Executor(ctx).QueryRowContext(ctx, r.db.Rebind(`SELECT status FROM expenses WHERE id = ?`), id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", entity.ErrExpenseNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to load expense status: %w", err)
	}
	return fmt.Errorf("%w: expense %d is %s", workflow.ErrInvalidState, id, status)
}

func scanExpense(row rowScanner) (*entity.Expense, error) {
	var (
		expense    entity.Expense
		receiptURL sql.NullString
		approvedAt sql.NullTime
		approvedBy sql.NullInt64
		rejectedAt sql.NullTime
		rejectedBy sql.NullInt64
	)
	if err := row.Scan(
		&expense.ID,
		&expense.UserID,
		&expense.Amount,
		&expense.Currency,
		&expense.Category,
		&expense.Description,
		&receiptURL,
		&expense.Status,
		&expense.SubmittedAt,
		&approvedAt,
		&approvedBy,
		&rejectedAt,
		&rejectedBy,
		&expense.CreatedAt,
		&expense.UpdatedAt,
	); err != nil {
		return nil, err
	}

	expense.Currency = strings.TrimSpace(expense.Currency)
	expense.ReceiptURL = stringPtr(receiptURL)
	expense.ApprovedAt = timePtr(approvedAt)
	expense.ApprovedBy = int64Ptr(approvedBy)
	expense.RejectedAt = timePtr(rejectedAt)
	expense.RejectedBy = int64Ptr(rejectedBy)
	return &expense, nil
}

var _ port.ExpenseRepository = (*ExpenseRepository)(nil)
