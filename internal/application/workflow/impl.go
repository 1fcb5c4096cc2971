package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/rules"
	"github.com/garyjia/expense-workflow/internal/application/tracker"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

// engineImpl keeps no state between calls; everything lives in the store
type engineImpl struct {
	users     port.UserRepository
	expenses  port.ExpenseRepository
	history   port.HistoryRepository
	tracker   *tracker.Tracker
	evaluator *rules.Evaluator
	txManager port.TransactionManager

	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the dispatcher committed transitions are published to
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = logger
	}
}

// WithClock overrides the time source used for decision timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	users port.UserRepository,
	expenses port.ExpenseRepository,
	history port.HistoryRepository,
	stepTracker *tracker.Tracker,
	evaluator *rules.Evaluator,
	txManager port.TransactionManager,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		users:     users,
		expenses:  expenses,
		history:   history,
		tracker:   stepTracker,
		evaluator: evaluator,
		txManager: txManager,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CreateExpense implements Engine
func (e *engineImpl) CreateExpense(ctx context.Context, input CreateExpenseInput) (*entity.Expense, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}

	var (
		expense *entity.Expense
		events  []*event.Event
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		submitter, err := e.users.GetByID(txCtx, input.SubmitterID)
		if err != nil {
			return fmt.Errorf("failed to load submitter: %w", err)
		}
		if submitter == nil {
			return fmt.Errorf("%w: submitter %d", entity.ErrUserNotFound, input.SubmitterID)
		}

		expense = &entity.Expense{
			UserID:      submitter.ID,
			Amount:      input.Amount,
			Currency:    input.Currency,
			Category:    input.Category,
			Description: input.Description,
			ReceiptURL:  input.ReceiptURL,
			SubmittedAt: e.now(),
		}

		if !submitter.HasManager() {
			evt, err := e.autoApprove(txCtx, submitter, expense)
			if err != nil {
				return err
			}
			events = append(events, evt)
			return nil
		}

		evt, err := e.submit(txCtx, submitter, expense)
		if err != nil {
			return err
		}
		events = append(events, evt)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	return expense, nil
}

// autoApprove persists a claim that has nobody to approve it
func (e *engineImpl) autoApprove(ctx context.Context, submitter *entity.User, expense *entity.Expense) (*event.Event, error) {
	tr, err := BuildExpenseStateMachine(domainwf.StateDraft).Fire(ctx, domainwf.TriggerAutoApprove)
	if err != nil {
		return nil, err
	}

	at := expense.SubmittedAt
	expense.Status = tr.To.String()
	expense.ApprovedAt = &at
	expense.ApprovedBy = &submitter.ID

	if err := e.expenses.Create(ctx, expense); err != nil {
		return nil, err
	}
	if err := e.recordHistory(ctx, expense.ID, submitter.ID, entity.ActionAutoApprove, tr, ""); err != nil {
		return nil, err
	}

	e.logger.Info("Expense auto-approved",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("user_id", submitter.ID),
		zap.String("amount", expense.Amount.String()))

	return event.NewEventWithCorrelation(event.TypeExpenseApproved, expense.ID, submitter.ID,
		map[string]interface{}{
			"status":        expense.Status,
			"auto_approved": true,
		}, event.CorrelationIDFromContext(ctx)), nil
}

// submit persists a pending claim and its first step for the direct manager
func (e *engineImpl) submit(ctx context.Context, submitter *entity.User, expense *entity.Expense) (*event.Event, error) {
	managerID := *submitter.ManagerID
	if managerID == submitter.ID {
		return nil, entity.NewValidationError("manager_id", "user %d is configured as their own manager", submitter.ID)
	}

	manager, err := e.users.GetByID(ctx, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load manager: %w", err)
	}
	if manager == nil {
		return nil, fmt.Errorf("%w: manager %d of user %d", entity.ErrUserNotFound, managerID, submitter.ID)
	}

	tr, err := BuildExpenseStateMachine(domainwf.StateDraft).Fire(ctx, domainwf.TriggerSubmit)
	if err != nil {
		return nil, err
	}

	expense.Status = tr.To.String()
	if err := e.expenses.Create(ctx, expense); err != nil {
		return nil, err
	}

	step, err := e.tracker.AppendStep(ctx, expense.ID, manager.ID)
	if err != nil {
		return nil, err
	}

	if err := e.recordHistory(ctx, expense.ID, submitter.ID, entity.ActionSubmit, tr, ""); err != nil {
		return nil, err
	}

	e.logger.Info("Expense submitted",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("user_id", submitter.ID),
		zap.Int64("approver_id", manager.ID))

	return event.NewEventWithCorrelation(event.TypeExpenseSubmitted, expense.ID, submitter.ID,
		map[string]interface{}{
			"status":      expense.Status,
			"approver_id": step.ApproverID,
			"sequence":    step.Sequence,
		}, event.CorrelationIDFromContext(ctx)), nil
}

// Decide implements Engine
func (e *engineImpl) Decide(ctx context.Context, input DecisionInput) (*DecisionResult, error) {
	var trigger domainwf.Trigger
	switch input.Decision {
	case entity.StatusApproved:
		trigger = domainwf.TriggerApprove
	case entity.StatusRejected:
		trigger = domainwf.TriggerReject
	default:
		return nil, entity.NewValidationError("decision", "must be %q or %q", entity.StatusApproved, entity.StatusRejected)
	}

	var (
		result *DecisionResult
		events []*event.Event
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		expense, err := e.expenses.GetByID(txCtx, input.ExpenseID)
		if err != nil {
			return fmt.Errorf("failed to load expense: %w", err)
		}
		if expense == nil {
			return fmt.Errorf("%w: %d", entity.ErrExpenseNotFound, input.ExpenseID)
		}

		// Re-validated inside the transaction so a concurrent decision is seen
		step, err := e.tracker.CurrentApprover(txCtx, expense.ID)
		if err != nil {
			return err
		}
		if step == nil {
			return fmt.Errorf("%w: expense %d is %s", domainwf.ErrNoPendingApproval, expense.ID, expense.Status)
		}
		if step.ApproverID != input.ActorID {
			return fmt.Errorf("%w: expense %d awaits user %d", domainwf.ErrNotAuthorized, expense.ID, step.ApproverID)
		}

		machine := BuildExpenseStateMachine(domainwf.State(expense.Status))
		if !machine.CanFire(trigger) {
			return fmt.Errorf("%w: expense %d is %s", domainwf.ErrNoPendingApproval, expense.ID, expense.Status)
		}

		if _, err := e.tracker.RecordDecision(txCtx, step.ID, input.ActorID, input.Decision, input.Comments); err != nil {
			return err
		}

		var evt *event.Event
		if input.Decision == entity.StatusRejected {
			result, evt, err = e.finalize(txCtx, machine, expense, input, domainwf.TriggerReject)
		} else {
			result, evt, err = e.approveOrForward(txCtx, machine, expense, input)
		}
		if err != nil {
			return err
		}
		events = append(events, evt)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.publish(ctx, events)
	return result, nil
}

// approveOrForward runs the rules against the freshly approved expense and
// either appends an escalation step or finalizes it
func (e *engineImpl) approveOrForward(ctx context.Context, machine domainwf.StateMachine, expense *entity.Expense, input DecisionInput) (*DecisionResult, *event.Event, error) {
	expense, err := e.expenses.GetByID(ctx, expense.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload expense: %w", err)
	}
	if expense == nil {
		return nil, nil, fmt.Errorf("%w: %d", entity.ErrExpenseNotFound, input.ExpenseID)
	}

	approver, err := e.escalationApprover(ctx, expense)
	if err != nil {
		return nil, nil, err
	}
	ctx = withEscalation(ctx, approver != nil)
	if approver == nil {
		return e.finalize(ctx, machine, expense, input, domainwf.TriggerApprove)
	}

	tr, err := machine.Fire(ctx, domainwf.TriggerForward)
	if err != nil {
		return nil, nil, e.mapTransitionError(err)
	}

	next, err := e.tracker.AppendStep(ctx, expense.ID, approver.ID)
	if err != nil {
		return nil, nil, err
	}

	comments := fmt.Sprintf("forwarded to %s %d", approver.Role, approver.ID)
	if input.Comments != "" {
		comments = input.Comments + "; " + comments
	}
	if err := e.recordHistory(ctx, expense.ID, input.ActorID, entity.ActionForward, tr, comments); err != nil {
		return nil, nil, err
	}

	e.logger.Info("Expense forwarded",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("actor_id", input.ActorID),
		zap.Int64("next_approver_id", approver.ID),
		zap.String("next_approver_role", approver.Role),
		zap.Int("sequence", next.Sequence))

	evt := event.NewEventWithCorrelation(event.TypeExpenseForwarded, expense.ID, input.ActorID,
		map[string]interface{}{
			"status":           expense.Status,
			"next_approver_id": approver.ID,
			"sequence":         next.Sequence,
		}, event.CorrelationIDFromContext(ctx))

	return &DecisionResult{Expense: expense, Outcome: OutcomeForwarded, NextStep: next}, evt, nil
}

// escalationApprover resolves who approves next, or nil when the expense
// needs no further approval
func (e *engineImpl) escalationApprover(ctx context.Context, expense *entity.Expense) (*entity.User, error) {
	matches, err := e.evaluator.MatchingRules(ctx, expense)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	steps, err := e.tracker.Progress(ctx, expense.ID)
	if err != nil {
		return nil, err
	}

	deciders := make(map[int64]bool, len(steps))
	satisfied := make(map[string]bool)
	for _, s := range steps {
		deciders[s.ApproverID] = true
		if s.Status != entity.StatusApproved {
			continue
		}
		signer, err := e.users.GetByID(ctx, s.ApproverID)
		if err != nil {
			return nil, fmt.Errorf("failed to load approver: %w", err)
		}
		if signer != nil {
			satisfied[signer.Role] = true
		}
	}

	role := rules.EscalationRole(matches, satisfied)
	if role == "" {
		return nil, nil
	}

	candidates, err := e.users.ListByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s users: %w", role, err)
	}

	// candidates are ordered by id, so the lowest eligible id wins
	for _, u := range candidates {
		if u.ID == expense.UserID || deciders[u.ID] {
			continue
		}
		return u, nil
	}

	e.logger.Warn("No approver available for escalation role",
		zap.Int64("expense_id", expense.ID),
		zap.String("role", role))
	return nil, nil
}

// finalize moves the expense to approved or rejected
func (e *engineImpl) finalize(ctx context.Context, machine domainwf.StateMachine, expense *entity.Expense, input DecisionInput, trigger domainwf.Trigger) (*DecisionResult, *event.Event, error) {
	tr, err := machine.Fire(ctx, trigger)
	if err != nil {
		return nil, nil, e.mapTransitionError(err)
	}

	at := e.now()
	if err := e.expenses.UpdateStatus(ctx, expense.ID, tr.To.String(), input.ActorID, at); err != nil {
		return nil, nil, err
	}

	action, evtType, outcome := entity.ActionApprove, event.TypeExpenseApproved, OutcomeApproved
	if trigger == domainwf.TriggerReject {
		action, evtType, outcome = entity.ActionReject, event.TypeExpenseRejected, OutcomeRejected
	}

	if err := e.recordHistory(ctx, expense.ID, input.ActorID, action, tr, input.Comments); err != nil {
		return nil, nil, err
	}

	updated, err := e.expenses.GetByID(ctx, expense.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reload expense: %w", err)
	}
	if updated == nil {
		return nil, nil, fmt.Errorf("%w: %d", entity.ErrExpenseNotFound, expense.ID)
	}

	e.logger.Info("Expense finalized",
		zap.Int64("expense_id", expense.ID),
		zap.Int64("actor_id", input.ActorID),
		zap.String("status", updated.Status))

	evt := event.NewEventWithCorrelation(evtType, expense.ID, input.ActorID,
		map[string]interface{}{
			"status":   updated.Status,
			"comments": input.Comments,
		}, event.CorrelationIDFromContext(ctx))

	return &DecisionResult{Expense: updated, Outcome: outcome}, evt, nil
}

func (e *engineImpl) recordHistory(ctx context.Context, expenseID, actorID int64, action string, tr domainwf.Transition, comments string) error {
	previous := ""
	if tr.From != domainwf.StateDraft {
		previous = tr.From.String()
	}

	if err := e.history.Create(ctx, &entity.ExpenseHistory{
		ExpenseID:      expenseID,
		ActorID:        actorID,
		Action:         action,
		PreviousStatus: previous,
		NewStatus:      tr.To.String(),
		Comments:       comments,
	}); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

// mapTransitionError reports a transition out of a terminal state as
// nothing left to decide
func (e *engineImpl) mapTransitionError(err error) error {
	if errors.Is(err, domainwf.ErrInvalidTransition) {
		return fmt.Errorf("%w: %v", domainwf.ErrNoPendingApproval, err)
	}
	return err
}

// publish dispatches events of a committed transaction
func (e *engineImpl) publish(ctx context.Context, events []*event.Event) {
	if e.dispatcher == nil {
		return
	}
	for _, evt := range events {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

// GetApprovalProgress implements Engine
func (e *engineImpl) GetApprovalProgress(ctx context.Context, expenseID int64) ([]*entity.ApprovalStep, error) {
	if _, err := e.GetExpense(ctx, expenseID); err != nil {
		return nil, err
	}
	return e.tracker.Progress(ctx, expenseID)
}

// ListPendingForApprover implements Engine
func (e *engineImpl) ListPendingForApprover(ctx context.Context, approverID int64) ([]*entity.Expense, error) {
	expenses, err := e.expenses.ListPendingForApprover(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []*entity.Expense{}
	}
	return expenses, nil
}

// GetExpense implements Engine
func (e *engineImpl) GetExpense(ctx context.Context, expenseID int64) (*entity.Expense, error) {
	expense, err := e.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, fmt.Errorf("%w: %d", entity.ErrExpenseNotFound, expenseID)
	}
	return expense, nil
}
