package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

type mockRuleRepo struct {
	listFunc func(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error)
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *entity.ApprovalRule) error { return nil }

func (m *mockRuleRepo) GetByID(ctx context.Context, id int64) (*entity.ApprovalRule, error) {
	return nil, nil
}

func (m *mockRuleRepo) List(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, activeOnly)
	}
	return nil, nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *entity.ApprovalRule) error { return nil }

func (m *mockRuleRepo) Delete(ctx context.Context, id int64) error { return nil }

func expense(amount, category string) *entity.Expense {
	return &entity.Expense{Amount: decimal.RequireFromString(amount), Category: category}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		raw      string
		field    Field
		op       Operator
		literal  string
		wantFail bool
	}{
		{raw: "amount > 1000", field: FieldAmount, op: OpGreater, literal: "1000"},
		{raw: "  amount>=250.50 ", field: FieldAmount, op: OpGreaterEqual, literal: "250.50"},
		{raw: "category == 'Travel'", field: FieldCategory, op: OpEqual, literal: "Travel"},
		{raw: `category != "Office Supplies"`, field: FieldCategory, op: OpNotEqual, literal: "Office Supplies"},
		{raw: "category<=Meals", field: FieldCategory, op: OpLessEqual, literal: "Meals"},
		{raw: "amount >> 100", wantFail: true},
		{raw: "amount => 100", wantFail: true},
		{raw: "amount = 100", wantFail: true},
		{raw: "amount > lots", wantFail: true},
		{raw: "currency == 'USD'", wantFail: true},
		{raw: "category == ''", wantFail: true},
		{raw: "amount >", wantFail: true},
		{raw: "", wantFail: true},
		{raw: "(() => true)()", wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cond, err := ParseCondition(tt.raw)
			if tt.wantFail {
				assert.ErrorIs(t, err, ErrMalformedCondition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.field, cond.Field)
			assert.Equal(t, tt.op, cond.Operator)
			assert.Equal(t, tt.literal, cond.Literal)
		})
	}
}

func TestCondition_Matches(t *testing.T) {
	tests := []struct {
		condition string
		expense   *entity.Expense
		want      bool
	}{
		{"amount > 1000", expense("1500", "Travel"), true},
		{"amount > 1000", expense("1000", "Travel"), false},
		{"amount >= 1000", expense("1000.00", "Travel"), true},
		{"amount < 10", expense("9.99", "Meals"), true},
		{"amount <= 10", expense("10.01", "Meals"), false},
		{"amount == 50", expense("50.00", "Meals"), true},
		{"amount != 50", expense("50", "Meals"), false},
		{"category == 'Travel'", expense("1", "Travel"), true},
		{"category == 'Travel'", expense("1", "travel"), false},
		{"category != 'Travel'", expense("1", "Meals"), true},
		{"category < 'N'", expense("1", "Meals"), true},
	}

	for _, tt := range tests {
		t.Run(tt.condition+"/"+tt.expense.Amount.String()+"/"+tt.expense.Category, func(t *testing.T) {
			cond, err := ParseCondition(tt.condition)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cond.Matches(tt.expense))
		})
	}
}

func TestEvaluator_Match(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	evaluator := NewEvaluator(&mockRuleRepo{}, nil, zap.New(core))

	candidates := []*entity.ApprovalRule{
		{ID: 1, Name: "broken", Condition: "amount >> 100", NextApproverRole: entity.RoleAdmin},
		{ID: 2, Name: "travel", Condition: "category == 'Travel'", NextApproverRole: entity.RoleManager},
		{ID: 3, Name: "big", Condition: "amount > 1000", NextApproverRole: entity.RoleAdmin},
	}

	matches := evaluator.Match(context.Background(), expense("1500", "Travel"), candidates)
	require.Len(t, matches, 2)
	assert.Equal(t, int64(2), matches[0].ID, "definition order is kept")
	assert.Equal(t, int64(3), matches[1].ID)

	skipped := logs.FilterMessage("Rule evaluation skipped").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, int64(1), skipped[0].ContextMap()["rule_id"])

	assert.Empty(t, evaluator.Match(context.Background(), expense("5", "Meals"), candidates))
}

func TestEvaluator_MatchingRules(t *testing.T) {
	t.Run("loads active rules only", func(t *testing.T) {
		var askedActive bool
		repo := &mockRuleRepo{
			listFunc: func(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error) {
				askedActive = activeOnly
				return []*entity.ApprovalRule{
					{ID: 1, Condition: "amount > 100", NextApproverRole: entity.RoleAdmin},
				}, nil
			},
		}
		evaluator := NewEvaluator(repo, nil, zap.NewNop())

		matches, err := evaluator.MatchingRules(context.Background(), expense("150", "Meals"))
		require.NoError(t, err)
		assert.True(t, askedActive)
		assert.Len(t, matches, 1)
	})

	t.Run("propagates repository errors", func(t *testing.T) {
		boom := errors.New("db down")
		repo := &mockRuleRepo{
			listFunc: func(ctx context.Context, activeOnly bool) ([]*entity.ApprovalRule, error) {
				return nil, boom
			},
		}
		evaluator := NewEvaluator(repo, nil, zap.NewNop())

		_, err := evaluator.MatchingRules(context.Background(), expense("150", "Meals"))
		assert.ErrorIs(t, err, boom)
	})
}

func TestEscalationRole(t *testing.T) {
	adminRule := &entity.ApprovalRule{ID: 1, NextApproverRole: entity.RoleAdmin}
	managerRule := &entity.ApprovalRule{ID: 2, NextApproverRole: entity.RoleManager}
	noRole := &entity.ApprovalRule{ID: 3}

	tests := []struct {
		name      string
		matches   []*entity.ApprovalRule
		satisfied map[string]bool
		want      string
	}{
		{"no matches", nil, nil, ""},
		{"first match decides", []*entity.ApprovalRule{adminRule, managerRule}, nil, entity.RoleAdmin},
		{"first match without role stops escalation", []*entity.ApprovalRule{noRole, adminRule}, nil, ""},
		{"signed-off role is passed over", []*entity.ApprovalRule{adminRule, managerRule}, map[string]bool{entity.RoleAdmin: true}, entity.RoleManager},
		{"every role signed off", []*entity.ApprovalRule{adminRule}, map[string]bool{entity.RoleAdmin: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscalationRole(tt.matches, tt.satisfied))
		})
	}
}

func TestConditionCache(t *testing.T) {
	cache, err := NewConditionCache(100)
	require.NoError(t, err)
	defer cache.Close()

	cond, hit, err := cache.Parse("amount > 10")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, FieldAmount, cond.Field)
	cache.Wait()

	cond, hit, err = cache.Parse("amount > 10")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.True(t, cond.Matches(expense("11", "x")))

	_, _, err = cache.Parse("amount >> 10")
	assert.ErrorIs(t, err, ErrMalformedCondition)
	cache.Wait()

	_, hit, err = cache.Parse("amount >> 10")
	assert.True(t, hit)
	assert.ErrorIs(t, err, ErrMalformedCondition)
}

func TestEvaluator_WithCache(t *testing.T) {
	cache, err := NewConditionCache(10)
	require.NoError(t, err)
	defer cache.Close()

	evaluator := NewEvaluator(&mockRuleRepo{}, cache, zap.NewNop())
	rules := []*entity.ApprovalRule{{ID: 1, Condition: "category == 'Travel'"}}

	for i := 0; i < 3; i++ {
		assert.Len(t, evaluator.Match(context.Background(), expense("1", "Travel"), rules), 1)
		cache.Wait()
	}
}
