// Package testutil wires a migrated temp-file SQLite store for tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-workflow/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/expense-workflow/pkg/database"
)

// Store bundles a migrated database with every repository
type Store struct {
	Raw      *database.DB
	DB       *sqldb.DB
	Users    port.UserRepository
	Expenses port.ExpenseRepository
	Rules    port.ApprovalRuleRepository
	Steps    port.ApprovalStepRepository
	History  port.HistoryRepository
}

// NewStore opens a fresh SQLite database under t.TempDir and runs the migrations
func NewStore(t *testing.T) *Store {
	t.Helper()

	logger := zap.NewNop()
	raw, err := database.New(database.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "expenses.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })

	require.NoError(t, database.NewMigrator(raw, logger).Run(context.Background()))

	db := sqldb.New(raw, logger)
	return &Store{
		Raw:      raw,
		DB:       db,
		Users:    repository.NewUserRepository(db, logger),
		Expenses: repository.NewExpenseRepository(db, logger),
		Rules:    repository.NewApprovalRuleRepository(db, logger),
		Steps:    repository.NewApprovalStepRepository(db, logger),
		History:  repository.NewHistoryRepository(db, logger),
	}
}

// CreateUser inserts a user, optionally reporting to managerID
func (s *Store) CreateUser(t *testing.T, name, role string, managerID *int64) *entity.User {
	t.Helper()
	user := &entity.User{
		Name:      name,
		Email:     name + "@example.com",
		Role:      role,
		ManagerID: managerID,
	}
	require.NoError(t, s.Users.Create(context.Background(), user))
	return user
}

// CreateRule inserts an active rule
func (s *Store) CreateRule(t *testing.T, name, condition, role string) *entity.ApprovalRule {
	t.Helper()
	rule := &entity.ApprovalRule{
		Name:             name,
		Condition:        condition,
		NextApproverRole: role,
		IsActive:         true,
	}
	require.NoError(t, s.Rules.Create(context.Background(), rule))
	return rule
}

// CreateExpense inserts a pending expense directly, bypassing the workflow
func (s *Store) CreateExpense(t *testing.T, userID int64, amount, category string) *entity.Expense {
	t.Helper()
	expense := &entity.Expense{
		UserID:   userID,
		Amount:   decimal.RequireFromString(amount),
		Currency: "USD",
		Category: category,
	}
	require.NoError(t, s.Expenses.Create(context.Background(), expense))
	return expense
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}
