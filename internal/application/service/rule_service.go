package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/rules"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
)

// RuleInput carries the writable fields of an approval rule. A nil IsActive
// means active on create and unchanged on update.
type RuleInput struct {
	Name             string `json:"name"`
	Condition        string `json:"condition"`
	NextApproverRole string `json:"next_approver_role"`
	IsActive         *bool  `json:"is_active"`
}

// RuleService manages escalation rules
type RuleService interface {
	List(ctx context.Context) ([]*entity.ApprovalRule, error)
	Get(ctx context.Context, id int64) (*entity.ApprovalRule, error)
	Create(ctx context.Context, input RuleInput) (*entity.ApprovalRule, error)
	Update(ctx context.Context, id int64, input RuleInput) (*entity.ApprovalRule, error)
	Delete(ctx context.Context, id int64) error
}

type ruleServiceImpl struct {
	rules  port.ApprovalRuleRepository
	logger Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(rulesRepo port.ApprovalRuleRepository, logger Logger) RuleService {
	return &ruleServiceImpl{
		rules:  rulesRepo,
		logger: orNop(logger),
	}
}

func (in *RuleInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return entity.NewValidationError("name", "is required")
	}

	in.Condition = strings.TrimSpace(in.Condition)
	if _, err := rules.ParseCondition(in.Condition); err != nil {
		return entity.NewValidationError("condition", "%v", err)
	}

	in.NextApproverRole = strings.ToLower(strings.TrimSpace(in.NextApproverRole))
	if in.NextApproverRole != "" && !entity.IsValidRole(in.NextApproverRole) {
		return entity.NewValidationError("next_approver_role", "%q is not one of employee, manager, admin", in.NextApproverRole)
	}
	return nil
}

// List returns all rules, active or not, in evaluation order
func (s *ruleServiceImpl) List(ctx context.Context) ([]*entity.ApprovalRule, error) {
	list, err := s.rules.List(ctx, false)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*entity.ApprovalRule{}
	}
	return list, nil
}

// Get retrieves a rule by ID
func (s *ruleServiceImpl) Get(ctx context.Context, id int64) (*entity.ApprovalRule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, fmt.Errorf("%w: %d", entity.ErrRuleNotFound, id)
	}
	return rule, nil
}

// Create stores a rule after checking its condition parses
func (s *ruleServiceImpl) Create(ctx context.Context, input RuleInput) (*entity.ApprovalRule, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}

	rule := &entity.ApprovalRule{
		Name:             input.Name,
		Condition:        input.Condition,
		NextApproverRole: input.NextApproverRole,
		IsActive:         input.IsActive == nil || *input.IsActive,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		s.logger.Error("Failed to create rule", "error", err, "name", input.Name)
		return nil, err
	}

	s.logger.Info("Rule created", "rule_id", rule.ID, "condition", rule.Condition)
	return rule, nil
}

// Update replaces a rule's fields
func (s *ruleServiceImpl) Update(ctx context.Context, id int64, input RuleInput) (*entity.ApprovalRule, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}

	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.Name = input.Name
	rule.Condition = input.Condition
	rule.NextApproverRole = input.NextApproverRole
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if err := s.rules.Update(ctx, rule); err != nil {
		s.logger.Error("Failed to update rule", "error", err, "rule_id", id)
		return nil, err
	}

	s.logger.Info("Rule updated", "rule_id", id)
	return rule, nil
}

// Delete removes a rule
func (s *ruleServiceImpl) Delete(ctx context.Context, id int64) error {
	if err := s.rules.Delete(ctx, id); err != nil {
		s.logger.Error("Failed to delete rule", "error", err, "rule_id", id)
		return err
	}
	s.logger.Info("Rule deleted", "rule_id", id)
	return nil
}
