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

const userColumns = `id, name, email, role, manager_id, created_at, updated_at`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqldb.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a user and sets its ID and timestamps
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	ts := now()
	query := r.db.Rebind(`
		INSERT INTO users (name, email, role, manager_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.Role,
		nullInt64(user.ManagerID),
		ts,
		ts,
	).Scan(&user.ID)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

// GetByID returns the user or nil when it does not exist
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	user, err := scanUser(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail returns the user with the given email or nil
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)

	user, err := scanUser(r.db.Executor(ctx).QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// List returns all users ordered by name
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
}

// ListByRole returns users holding role, lowest id first
func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY id`, role)
}

// ListByManagerID returns the direct reports of managerID
func (r *UserRepository) ListByManagerID(ctx context.Context, managerID int64) ([]*entity.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE manager_id = ? ORDER BY id`, managerID)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Update persists name, email, role and manager
func (r *UserRepository) Update(ctx context.Context, user *entity.User) error {
	ts := now()
	query := r.db.Rebind(`
		UPDATE users
		SET name = ?, email = ?, role = ?, manager_id = ?, updated_at = ?
		WHERE id = ?
	`)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		user.Name,
		user.Email,
		user.Role,
		nullInt64(user.ManagerID),
		ts,
		user.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update user", zap.Int64("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to update user: %w", err)
	}
	if err := requireRow(result, entity.ErrUserNotFound, user.ID); err != nil {
		return err
	}

	user.UpdatedAt = ts
	return nil
}

// Delete removes a user
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		r.logger.Error("Failed to delete user", zap.Int64("user_id", id), zap.Error(err))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := requireRow(result, entity.ErrUserNotFound, id); err != nil {
		return err
	}
	return nil
}

func scanUser(row rowScanner) (*entity.User, error) {
	var (
		user      entity.User
		managerID sql.NullInt64
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&managerID,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.ManagerID = int64Ptr(managerID)
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
