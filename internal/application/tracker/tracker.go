package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// Tracker enforces the sequencing of approval steps for a single expense:
// steps are numbered 1..n without gaps and at most one is pending.
type Tracker struct {
	steps  port.ApprovalStepRepository
	logger *zap.Logger
	now    func() time.Time
}

// New creates a step tracker
func New(steps port.ApprovalStepRepository, logger *zap.Logger) *Tracker {
	return &Tracker{
		steps:  steps,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CurrentApprover returns the outstanding step of an expense, or nil
func (t *Tracker) CurrentApprover(ctx context.Context, expenseID int64) (*entity.ApprovalStep, error) {
	step, err := t.steps.GetPending(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get current approver: %w", err)
	}
	return step, nil
}

// RecordDecision durably records decidingUserID's decision on a pending step
func (t *Tracker) RecordDecision(ctx context.Context, stepID, decidingUserID int64, decision, comments string) (*entity.ApprovalStep, error) {
	if decision != entity.StatusApproved && decision != entity.StatusRejected {
		return nil, entity.NewValidationError("decision", "must be %q or %q, got %q",
			entity.StatusApproved, entity.StatusRejected, decision)
	}

	step, err := t.steps.GetByID(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval step: %w", err)
	}
	if step == nil {
		return nil, fmt.Errorf("%w: step %d does not exist", workflow.ErrNoPendingApproval, stepID)
	}
	if step.ApproverID != decidingUserID {
		return nil, fmt.Errorf("%w: step %d is assigned to user %d", workflow.ErrNotAuthorized, stepID, step.ApproverID)
	}
	if !step.IsPending() {
		return nil, fmt.Errorf("%w: step %d is already %s", workflow.ErrNoPendingApproval, stepID, step.Status)
	}

	at := t.now()
	ok, err := t.steps.Decide(ctx, stepID, decision, comments, at)
	if err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}
	if !ok {
		// another decision landed between the read and the update
		return nil, fmt.Errorf("%w: step %d was decided concurrently", workflow.ErrNoPendingApproval, stepID)
	}

	step.Status = decision
	step.Comments = comments
	step.DecidedAt = &at
	step.UpdatedAt = at

	t.logger.Debug("Approval step decided",
		zap.Int64("step_id", stepID),
		zap.Int64("expense_id", step.ExpenseID),
		zap.String("decision", decision))

	return step, nil
}

// AppendStep adds the next pending step for approverID
func (t *Tracker) AppendStep(ctx context.Context, expenseID, approverID int64) (*entity.ApprovalStep, error) {
	pending, err := t.steps.GetPending(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending step: %w", err)
	}
	if pending != nil {
		return nil, fmt.Errorf("%w: expense %d already has pending step %d", workflow.ErrInvalidState, expenseID, pending.ID)
	}

	maxSeq, err := t.steps.MaxSequence(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get next sequence: %w", err)
	}

	step := &entity.ApprovalStep{
		ExpenseID:  expenseID,
		ApproverID: approverID,
		Sequence:   maxSeq + 1,
		Status:     entity.StatusPending,
	}
	if err := t.steps.Create(ctx, step); err != nil {
		return nil, fmt.Errorf("failed to append approval step: %w", err)
	}
	return step, nil
}

// Progress returns every step of an expense in sequence order
func (t *Tracker) Progress(ctx context.Context, expenseID int64) ([]*entity.ApprovalStep, error) {
	steps, err := t.steps.ListByExpenseID(ctx, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to get approval progress: %w", err)
	}
	if steps == nil {
		steps = []*entity.ApprovalStep{}
	}
	return steps, nil
}
