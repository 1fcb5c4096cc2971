package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqldb"
)

const stepColumns = `id, expense_id, approver_id, sequence, status, comments, decided_at, created_at, updated_at`

// ApprovalStepRepository implements port.ApprovalStepRepository
type ApprovalStepRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewApprovalStepRepository creates a new approval step repository
func NewApprovalStepRepository(db *sqldb.DB, logger *zap.Logger) port.ApprovalStepRepository {
	return &ApprovalStepRepository{db: db, logger: logger}
}

// Create inserts a step. Status defaults to pending.
func (r *ApprovalStepRepository) Create(ctx context.Context, step *entity.ApprovalStep) error {
	ts := now()
	if step.Status == "" {
		step.Status = entity.StatusPending
	}

	query := r.db.Rebind(`
		INSERT INTO expense_approvals (
			expense_id, approver_id, sequence, status, comments, decided_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	var decidedAt sql.NullTime
	if step.DecidedAt != nil {
		decidedAt = sql.NullTime{Time: *step.DecidedAt, Valid: true}
	}

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		step.ExpenseID,
		step.ApproverID,
		step.Sequence,
		step.Status,
		step.Comments,
		decidedAt,
		ts,
		ts,
	).Scan(&step.ID)
	if err != nil {
		r.logger.Error("Failed to create approval step",
			zap.Int64("expense_id", step.ExpenseID),
			zap.Int64("approver_id", step.ApproverID),
			zap.Int("sequence", step.Sequence),
			zap.Error(err))
		return fmt.Errorf("failed to create approval step: %w", err)
	}

	step.CreatedAt = ts
	step.UpdatedAt = ts
	return nil
}

// GetByID returns the step or nil when it does not exist
func (r *ApprovalStepRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalStep, error) {
	query := r.db.Rebind(`SELECT ` + stepColumns + ` FROM expense_approvals WHERE id = ?`)

	step, err := scanStep(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval step", zap.Int64("step_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval step: %w", err)
	}
	return step, nil
}

// ListByExpenseID returns an expense's steps ordered by sequence
func (r *ApprovalStepRepository) ListByExpenseID(ctx context.Context, expenseID int64) ([]*entity.ApprovalStep, error) {
	query := r.db.Rebind(`SELECT ` + stepColumns + ` FROM expense_approvals WHERE expense_id = ? ORDER BY sequence ASC`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to list approval steps", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval steps: %w", err)
	}
	defer rows.Close()

	var steps []*entity.ApprovalStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// GetPending returns the lowest-sequence pending step of an expense or nil
func (r *ApprovalStepRepository) GetPending(ctx context.Context, expenseID int64) (*entity.ApprovalStep, error) {
	query := r.db.Rebind(`
		SELECT ` + stepColumns + `
		FROM expense_approvals
		WHERE expense_id = ? AND status = 'pending'
		ORDER BY sequence ASC
		LIMIT 1
	`)

	step, err := scanStep(r.db.Executor(ctx).QueryRowContext(ctx, query, expenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get pending approval step", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get pending approval step: %w", err)
	}
	return step, nil
}

// MaxSequence returns the highest sequence of an expense, 0 when it has no steps
func (r *ApprovalStepRepository) MaxSequence(ctx context.Context, expenseID int64) (int, error) {
	query := r.db.Rebind(`SELECT COALESCE(MAX(sequence), 0) FROM expense_approvals WHERE expense_id = ?`)

	var seq int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, expenseID).Scan(&seq); err != nil {
		r.logger.Error("Failed to get max approval sequence", zap.Int64("expense_id", expenseID), zap.Error(err))
		return 0, fmt.Errorf("failed to get max approval sequence: %w", err)
	}
	return seq, nil
}

// Decide records the outcome of a pending step. The update only applies
// while the step is pending, so a concurrent decision makes it return false.
func (r *ApprovalStepRepository) Decide(ctx context.Context, id int64, status, comments string, at time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE expense_approvals
		SET status = ?, comments = ?, decided_at = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, comments, at, at, id)
	if err != nil {
		r.logger.Error("Failed to decide approval step",
			zap.Int64("step_id", id),
			zap.String("status", status),
			zap.Error(err))
		return false, fmt.Errorf("failed to decide approval step: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// CountPendingByApprover counts pending steps assigned to approverID
func (r *ApprovalStepRepository) CountPendingByApprover(ctx context.Context, approverID int64) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM expense_approvals WHERE approver_id = ? AND status = 'pending'`)

	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, approverID).Scan(&n); err != nil {
		r.logger.Error("Failed to count pending approval steps", zap.Int64("approver_id", approverID), zap.Error(err))
		return 0, fmt.Errorf("failed to count pending approval steps: %w", err)
	}
	return n, nil
}

func scanStep(row rowScanner) (*entity.ApprovalStep, error) {
	var (
		step      entity.ApprovalStep
		decidedAt sql.NullTime
	)
	if err := row.Scan(
		&step.ID,
		&step.ExpenseID,
		&step.ApproverID,
		&step.Sequence,
		&step.Status,
		&step.Comments,
		&decidedAt,
		&step.CreatedAt,
		&step.UpdatedAt,
	); err != nil {
		return nil, err
	}
	step.DecidedAt = timePtr(decidedAt)
	return &step, nil
}

var _ port.ApprovalStepRepository = (*ApprovalStepRepository)(nil)
