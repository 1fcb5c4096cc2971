package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqldb"
)

const ruleColumns = `id, name, condition, next_approver_role, is_active, created_at, updated_at`

// ApprovalRuleRepository implements port.ApprovalRuleRepository
type ApprovalRuleRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewApprovalRuleRepository creates a new approval rule repository
func NewApprovalRuleRepository(db *sqldb.DB, logger *zap.Logger) port.ApprovalRuleRepository {
	return &ApprovalRuleRepository{db: db, logger: logger}
}

// Create inserts a rule
func (r *ApprovalRuleRepository) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	ts := now()
	query := r.db.Rebind(`
		INSERT INTO approval_rules (name, condition, next_approver_role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		rule.Name,
		rule.Condition,
		nullStringFromValue(rule.NextApproverRole),
		rule.IsActive,
		ts,
		ts,
	).Scan(&rule.ID)
	if err != nil {
		r.logger.Error("Failed to create approval rule", zap.String("name", rule.Name), zap.Error(err))
		return fmt.Errorf("failed to create approval rule: %w", err)
	}

	rule.CreatedAt = ts
	rule.UpdatedAt = ts
	return nil
}

// GetByID returns the rule or nil when it does not exist
func (r *ApprovalRuleRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error) {
	query := r.db.Rebind(`SELECT ` + ruleColumns + ` FROM approval_rules WHERE id = ?`)

	rule, err := scanRule(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval rule", zap.Int64("rule_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval rule: %w", err)
	}
	return rule, nil
}

// List returns rules in definition order
func (r *ApprovalRuleRepository) List(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM approval_rules`
	var args []interface{}
	if activeOnly {
		query += ` WHERE is_active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to list approval rules", zap.Bool("active_only", activeOnly), zap.Error(err))
		return nil, fmt.Errorf("failed to list approval rules: %w", err)
	}
	defer rows.Close()

	var rules []*entity.ApprovalRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// Update persists every field of a rule
func (r *ApprovalRuleRepository) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	ts := now()
	query := r.db.Rebind(`
		UPDATE approval_rules
		SET name = ?, condition = ?, next_approver_role = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		rule.Name,
		rule.Condition,
		nullStringFromValue(rule.NextApproverRole),
		rule.IsActive,
		ts,
		rule.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update approval rule", zap.Int64("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update approval rule: %w", err)
	}
	if err := requireRow(result, entity.ErrRuleNotFound, rule.ID); err != nil {
		return err
	}

	rule.UpdatedAt = ts
	return nil
}

// Delete removes a rule
func (r *ApprovalRuleRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(`DELETE FROM approval_rules WHERE id = ?`), id)
	if err != nil {
		r.logger.Error("Failed to delete approval rule", zap.Int64("rule_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete approval rule: %w", err)
	}
	if err := requireRow(result, entity.ErrRuleNotFound, id); err != nil {
		return err
	}
	return nil
}

func scanRule(row rowScanner) (*entity.ApprovalRule, error) {
	var (
		rule entity.ApprovalRule
		role sql.NullString
	)
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Condition,
		&role,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rule.NextApproverRole = role.String
	return &rule, nil
}

var _ port.ApprovalRuleRepository = (*ApprovalRuleRepository)(nil)
