package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqldb"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqldb.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Create appends a history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ExpenseHistory) error {
	ts := now()
	query := r.db.Rebind(`
		INSERT INTO expense_history (
			expense_id, actor_id, action, previous_status, new_status, comments, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		history.ExpenseID,
		history.ActorID,
		history.Action,
		history.PreviousStatus,
		history.NewStatus,
		history.Comments,
		ts,
	).Scan(&history.ID)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.Int64("expense_id", history.ExpenseID),
			zap.String("action", history.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	history.CreatedAt = ts
	return nil
}

// ListByExpenseID returns an expense's history in insertion order
func (r *HistoryRepository) ListByExpenseID(ctx context.Context, expenseID int64) ([]*entity.ExpenseHistory, error) {
	query := r.db.Rebind(`
		SELECT id, expense_id, actor_id, action, previous_status, new_status, comments, created_at
		FROM expense_history
		WHERE expense_id = ?
		ORDER BY id ASC
	`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, expenseID)
	if err != nil {
		r.logger.Error("Failed to get history by expense ID", zap.Int64("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var records []*entity.ExpenseHistory
	for rows.Next() {
		var record entity.ExpenseHistory
		if err := rows.Scan(
			&record.ID,
			&record.ExpenseID,
			&record.ActorID,
			&record.Action,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Comments,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
