package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

type mockRuleRepo struct {
	createFunc  func(ctx context.Context, rule *entity.ApprovalRule) error
	getByIDFunc func(ctx context.Context, id int64) (*entity.ApprovalRule, error)
	listFunc    func(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error)
	updateFunc  func(ctx context.Context, rule *entity.ApprovalRule) error
	deleteFunc  func(ctx context.Context, id int64) error
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, rule)
	}
	rule.ID = 1
	return nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockRuleRepo) List(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, activeOnly)
	}
	return nil, nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, rule)
	}
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func boolPtr(v bool) *bool { return &v }

func TestRuleService_Create(t *testing.T) {
	var stored *entity.ApprovalRule
	repo := &mockRuleRepo{
		createFunc: func(ctx context.Context, rule *entity.ApprovalRule) error {
			rule.ID = 7
			stored = rule
			return nil
		},
	}
	svc := NewRuleService(repo, nil)

	rule, err := svc.Create(context.Background(), RuleInput{
		Name:             " Large claims ",
		Condition:        " amount > 1000 ",
		NextApproverRole: "Admin",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), rule.ID)
	assert.Same(t, stored, rule)
	assert.Equal(t, "Large claims", rule.Name)
	assert.Equal(t, "amount > 1000", rule.Condition)
	assert.Equal(t, entity.RoleAdmin, rule.NextApproverRole)
	assert.True(t, rule.IsActive)
}

func TestRuleService_CreateValidation(t *testing.T) {
	called := false
	repo := &mockRuleRepo{
		createFunc: func(ctx context.Context, rule *entity.ApprovalRule) error {
			called = true
			return nil
		},
	}
	svc := NewRuleService(repo, nil)

	tests := []struct {
		name  string
		input RuleInput
	}{
		{"missing name", RuleInput{Condition: "amount > 1"}},
		{"unparsable condition", RuleInput{Name: "r", Condition: "amount >> 1"}},
		{"unknown field", RuleInput{Name: "r", Condition: "vendor == 'ACME'"}},
		{"non-numeric amount", RuleInput{Name: "r", Condition: "amount > lots"}},
		{"unknown role", RuleInput{Name: "r", Condition: "amount > 1", NextApproverRole: "cfo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, entity.ErrValidation)
		})
	}
	assert.False(t, called, "invalid rules never reach the repository")

	t.Run("inactive without role", func(t *testing.T) {
		rule, err := svc.Create(context.Background(), RuleInput{Name: "note", Condition: "category == 'Travel'", IsActive: boolPtr(false)})
		require.NoError(t, err)
		assert.False(t, rule.IsActive)
		assert.Empty(t, rule.NextApproverRole)
	})
}

func TestRuleService_Update(t *testing.T) {
	existing := &entity.ApprovalRule{ID: 3, Name: "old", Condition: "amount > 1", NextApproverRole: entity.RoleManager, IsActive: false}
	var updated *entity.ApprovalRule
	repo := &mockRuleRepo{
		getByIDFunc: func(ctx context.Context, id int64) (*entity.ApprovalRule, error) {
			if id == existing.ID {
				cp := *existing
				return &cp, nil
			}
			return nil, nil
		},
		updateFunc: func(ctx context.Context, rule *entity.ApprovalRule) error {
			updated = rule
			return nil
		},
	}
	logger := &mockLogger{}
	svc := NewRuleService(repo, logger)

	rule, err := svc.Update(context.Background(), 3, RuleInput{Name: "new", Condition: "amount >= 500", NextApproverRole: entity.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, "amount >= 500", rule.Condition)
	assert.False(t, rule.IsActive, "nil IsActive keeps the stored flag")
	assert.Same(t, updated, rule)
	assert.Contains(t, logger.infos, "Rule updated")

	_, err = svc.Update(context.Background(), 99, RuleInput{Name: "x", Condition: "amount > 1"})
	assert.ErrorIs(t, err, entity.ErrRuleNotFound)
}

func TestRuleService_ListAndDelete(t *testing.T) {
	var activeOnlyArg *bool
	boom := errors.New("disk full")
	repo := &mockRuleRepo{
		listFunc: func(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error) {
			activeOnlyArg = &activeOnly
			return nil, nil
		},
		deleteFunc: func(ctx context.Context, id int64) error {
			return boom
		},
	}
	logger := &mockLogger{}
	svc := NewRuleService(repo, logger)

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	require.NotNil(t, activeOnlyArg)
	assert.False(t, *activeOnlyArg, "admins see inactive rules too")

	assert.ErrorIs(t, svc.Delete(context.Background(), 1), boom)
	assert.Contains(t, logger.errors, "Failed to delete rule")
}
