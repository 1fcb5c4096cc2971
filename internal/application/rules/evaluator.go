package rules

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// Evaluator decides which approval rules match an expense
type Evaluator struct {
	rules  port.ApprovalRuleRepository
	cache  *ConditionCache
	logger *zap.Logger
}

// NewEvaluator creates an evaluator. cache may be nil, in which case every
// condition is parsed on each evaluation.
func NewEvaluator(rules port.ApprovalRuleRepository, cache *ConditionCache, logger *zap.Logger) *Evaluator {
	return &Evaluator{rules: rules, cache: cache, logger: logger}
}

// MatchingRules loads the active rules and returns those matching expense
func (e *Evaluator) MatchingRules(ctx context.Context, expense *entity.Expense) ([]*entity.ApprovalRule, error) {
	active, err := e.rules.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval rules: %w", err)
	}
	return e.Match(ctx, expense, active), nil
}

// Match returns the rules whose condition holds for expense, in the order
// given. Malformed conditions are logged and never match.
func (e *Evaluator) Match(ctx context.Context, expense *entity.Expense, candidates []*entity.ApprovalRule) []*entity.ApprovalRule {
	var matches []*entity.ApprovalRule
	for _, rule := range candidates {
		cond, err := e.parse(rule.Condition)
		if err != nil {
			e.logger.Warn("Rule evaluation skipped",
				zap.Int64("rule_id", rule.ID),
				zap.String("rule_name", rule.Name),
				zap.String("condition", rule.Condition),
				zap.Error(err))
			continue
		}
		if cond.Matches(expense) {
			matches = append(matches, rule)
		}
	}
	return matches
}

func (e *Evaluator) parse(raw string) (Condition, error) {
	if e.cache == nil {
		return ParseCondition(raw)
	}
	cond, _, err := e.cache.Parse(raw)
	return cond, err
}

// EscalationRole picks the role the expense escalates to. Rules whose role
// has already signed off on the expense are passed over; the first remaining
// match decides, and an empty role there means no escalation.
func EscalationRole(matches []*entity.ApprovalRule, satisfied map[string]bool) string {
	for _, rule := range matches {
		if rule.NextApproverRole != "" && satisfied[rule.NextApproverRole] {
			continue
		}
		return rule.NextApproverRole
	}
	return ""
}
