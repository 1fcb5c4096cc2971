package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-workflow/internal/application/dispatcher"
	"github.com/garyjia/expense-workflow/internal/application/port"
	"github.com/garyjia/expense-workflow/internal/application/rules"
	"github.com/garyjia/expense-workflow/internal/application/tracker"
	"github.com/garyjia/expense-workflow/internal/domain/entity"
	"github.com/garyjia/expense-workflow/internal/domain/event"
	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
	"github.com/garyjia/expense-workflow/internal/testutil"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recordedEvents) handler(ctx context.Context, evt *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recordedEvents) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Type
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store      *testutil.Store
	engine     Engine
	dispatcher dispatcher.Dispatcher
	events     *recordedEvents
}

func newFixture(t *testing.T, opts ...func(*fixtureDeps)) *fixture {
	t.Helper()
	store := testutil.NewStore(t)

	deps := &fixtureDeps{history: store.History}
	for _, opt := range opts {
		opt(deps)
	}

	recorded := &recordedEvents{}
	d := dispatcher.NewDispatcher()
	d.SubscribeAll("recorder", recorded.handler)
	t.Cleanup(func() { _ = d.Close() })

	logger := zap.NewNop()
	engine := NewEngine(
		store.Users,
		store.Expenses,
		deps.history,
		tracker.New(store.Steps, logger),
		rules.NewEvaluator(store.Rules, nil, logger),
		store.DB,
		WithDispatcher(d),
		WithLogger(logger),
	)

	return &fixture{store: store, engine: engine, dispatcher: d, events: recorded}
}

type fixtureDeps struct {
	history port.HistoryRepository
}

// failingHistory fails every insert so the surrounding transaction rolls back
type failingHistory struct {
	port.HistoryRepository
	err error
}

func (f *failingHistory) Create(ctx context.Context, h *entity.ExpenseHistory) error {
	return f.err
}

// org is a submitter reporting to a manager, plus an admin
type org struct {
	employee *entity.User
	manager  *entity.User
	admin    *entity.User
}

func (f *fixture) org(t *testing.T) org {
	t.Helper()
	admin := f.store.CreateUser(t, "admin", entity.RoleAdmin, nil)
	manager := f.store.CreateUser(t, "manager", entity.RoleManager, nil)
	employee := f.store.CreateUser(t, "employee", entity.RoleEmployee, testutil.Int64(manager.ID))
	return org{employee: employee, manager: manager, admin: admin}
}

func (f *fixture) create(t *testing.T, submitterID int64, amount, category string) *entity.Expense {
	t.Helper()
	expense, err := f.engine.CreateExpense(context.Background(), CreateExpenseInput{
		SubmitterID: submitterID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "usd",
		Category:    category,
		Description: "test claim",
	})
	require.NoError(t, err)
	return expense
}

func decide(f *fixture, expenseID, actorID int64, decision string) (*DecisionResult, error) {
	return f.engine.Decide(context.Background(), DecisionInput{
		ExpenseID: expenseID,
		ActorID:   actorID,
		Decision:  decision,
		Comments:  "reviewed",
	})
}

func (f *fixture) steps(t *testing.T, expenseID int64) []*entity.ApprovalStep {
	t.Helper()
	steps, err := f.engine.GetApprovalProgress(context.Background(), expenseID)
	require.NoError(t, err)
	return steps
}

// assertStepInvariants checks at most one pending step and gap-free sequences
func assertStepInvariants(t *testing.T, steps []*entity.ApprovalStep) {
	t.Helper()
	pending := 0
	for i, s := range steps {
		assert.Equal(t, i+1, s.Sequence, "sequences start at 1 without gaps")
		if s.IsPending() {
			pending++
		}
	}
	assert.LessOrEqual(t, pending, 1)
}

func TestBuildExpenseStateMachine(t *testing.T) {
	plain := context.Background()
	escalated := withEscalation(plain, true)

	tests := []struct {
		name    string
		ctx     context.Context
		from    domainwf.State
		trigger domainwf.Trigger
		to      domainwf.State
		wantErr error
	}{
		{"submit", plain, domainwf.StateDraft, domainwf.TriggerSubmit, domainwf.StatePending, nil},
		{"auto approve", plain, domainwf.StateDraft, domainwf.TriggerAutoApprove, domainwf.StateApproved, nil},
		{"forward keeps pending", escalated, domainwf.StatePending, domainwf.TriggerForward, domainwf.StatePending, nil},
		{"forward needs an escalation", plain, domainwf.StatePending, domainwf.TriggerForward, "", domainwf.ErrGuardFailed},
		{"approve", plain, domainwf.StatePending, domainwf.TriggerApprove, domainwf.StateApproved, nil},
		{"approve blocked while escalating", escalated, domainwf.StatePending, domainwf.TriggerApprove, "", domainwf.ErrGuardFailed},
		{"reject", escalated, domainwf.StatePending, domainwf.TriggerReject, domainwf.StateRejected, nil},
		{"approved is terminal", plain, domainwf.StateApproved, domainwf.TriggerReject, "", domainwf.ErrInvalidTransition},
		{"rejected is terminal", plain, domainwf.StateRejected, domainwf.TriggerApprove, "", domainwf.ErrInvalidTransition},
		{"draft cannot approve", plain, domainwf.StateDraft, domainwf.TriggerApprove, "", domainwf.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := BuildExpenseStateMachine(tt.from).Fire(tt.ctx, tt.trigger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, tr.To)
		})
	}
}

func TestCreateExpense_AutoApprovesWithoutManager(t *testing.T) {
	f := newFixture(t)
	solo := f.store.CreateUser(t, "solo", entity.RoleEmployee, nil)

	expense := f.create(t, solo.ID, "50", "Meals")

	assert.Equal(t, entity.StatusApproved, expense.Status)
	require.NotNil(t, expense.ApprovedBy)
	assert.Equal(t, solo.ID, *expense.ApprovedBy)
	assert.NotNil(t, expense.ApprovedAt)
	assert.Equal(t, "USD", expense.Currency)
	assert.Empty(t, f.steps(t, expense.ID))

	history, err := f.store.History.ListByExpenseID(context.Background(), expense.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.ActionAutoApprove, history[0].Action)
	assert.Equal(t, entity.StatusApproved, history[0].NewStatus)

	require.NoError(t, f.dispatcher.Close())
	assert.Equal(t, []event.Type{event.TypeExpenseApproved}, f.events.types())
}

func TestCreateExpense_SanitizesDescription(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)

	expense, err := f.engine.CreateExpense(context.Background(), CreateExpenseInput{
		SubmitterID: o.employee.ID,
		Amount:      decimal.RequireFromString("12"),
		Category:    "Meals",
		Description: "  lunch\x00 with\x1b client\n ",
	})
	require.NoError(t, err)
	assert.Equal(t, "lunch with client", expense.Description)

	stored, err := f.engine.GetExpense(context.Background(), expense.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.Description, stored.Description)
	assert.Equal(t, NormalizeDescription("  lunch\x00 with\x1b client\n "), stored.Description)
}

func TestCreateExpense_PendingWithManagerStep(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)

	expense := f.create(t, o.employee.ID, "120.50", "Travel")

	assert.Equal(t, entity.StatusPending, expense.Status)
	assert.Nil(t, expense.ApprovedBy)

	steps := f.steps(t, expense.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, o.manager.ID, steps[0].ApproverID)
	assert.Equal(t, 1, steps[0].Sequence)
	assert.True(t, steps[0].IsPending())

	queue, err := f.engine.ListPendingForApprover(context.Background(), o.manager.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, expense.ID, queue[0].ID)
}

func TestCreateExpense_Failures(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateExpenseInput
		wantErr error
	}{
		{"zero amount", CreateExpenseInput{SubmitterID: o.employee.ID, Amount: decimal.Zero, Category: "Meals"}, entity.ErrInvalidAmount},
		{"negative amount", CreateExpenseInput{SubmitterID: o.employee.ID, Amount: decimal.NewFromInt(-5), Category: "Meals"}, entity.ErrInvalidAmount},
		{"sub-cent amount", CreateExpenseInput{SubmitterID: o.employee.ID, Amount: decimal.RequireFromString("1.005"), Category: "Meals"}, entity.ErrValidation},
		{"bad currency", CreateExpenseInput{SubmitterID: o.employee.ID, Amount: decimal.NewFromInt(5), Currency: "dollars", Category: "Meals"}, entity.ErrValidation},
		{"blank category", CreateExpenseInput{SubmitterID: o.employee.ID, Amount: decimal.NewFromInt(5), Category: "  "}, entity.ErrValidation},
		{"unknown submitter", CreateExpenseInput{SubmitterID: 9999, Amount: decimal.NewFromInt(5), Category: "Meals"}, entity.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateExpense(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("dangling manager is not auto-approved", func(t *testing.T) {
		orphan := f.store.CreateUser(t, "orphan", entity.RoleEmployee, testutil.Int64(424242))

		_, err := f.engine.CreateExpense(ctx, CreateExpenseInput{SubmitterID: orphan.ID, Amount: decimal.NewFromInt(5), Category: "Meals"})
		assert.ErrorIs(t, err, entity.ErrUserNotFound)

		mine, err := f.store.Expenses.ListByUserID(ctx, orphan.ID)
		require.NoError(t, err)
		assert.Empty(t, mine)
	})

	t.Run("self-managed submitter", func(t *testing.T) {
		self := f.store.CreateUser(t, "self", entity.RoleManager, nil)
		self.ManagerID = testutil.Int64(self.ID)
		require.NoError(t, f.store.Users.Update(ctx, self))

		_, err := f.engine.CreateExpense(ctx, CreateExpenseInput{SubmitterID: self.ID, Amount: decimal.NewFromInt(5), Category: "Meals"})
		assert.ErrorIs(t, err, entity.ErrValidation)
	})
}

func TestCreateExpense_RollsBackOnFailure(t *testing.T) {
	boom := errors.New("history unavailable")
	f := newFixture(t, func(d *fixtureDeps) {
		d.history = &failingHistory{HistoryRepository: d.history, err: boom}
	})
	o := f.org(t)
	ctx := context.Background()

	_, err := f.engine.CreateExpense(ctx, CreateExpenseInput{SubmitterID: o.employee.ID, Amount: decimal.NewFromInt(10), Category: "Meals"})
	require.ErrorIs(t, err, boom)

	all, err := f.store.Expenses.List(ctx, entity.ExpenseFilter{})
	require.NoError(t, err)
	assert.Empty(t, all, "no orphan expense without its step")

	n, err := f.store.Steps.CountPendingByApprover(ctx, o.manager.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, f.dispatcher.Close())
	assert.Empty(t, f.events.types(), "nothing is published for a rolled back transaction")
}

func TestDecide_RoundTrip(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	expense := f.create(t, o.employee.ID, "80", "Meals")

	result, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApproved, result.Outcome)
	assert.Nil(t, result.NextStep)
	assert.Equal(t, entity.StatusApproved, result.Expense.Status)
	require.NotNil(t, result.Expense.ApprovedBy)
	assert.Equal(t, o.manager.ID, *result.Expense.ApprovedBy)

	steps := f.steps(t, expense.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, entity.StatusApproved, steps[0].Status)
	assert.Equal(t, "reviewed", steps[0].Comments)

	require.NoError(t, f.dispatcher.Close())
	assert.ElementsMatch(t, []event.Type{event.TypeExpenseSubmitted, event.TypeExpenseApproved}, f.events.types())
}

func TestDecide_RejectionIsTerminal(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	f.store.CreateRule(t, "big", "amount > 10", entity.RoleAdmin)
	expense := f.create(t, o.employee.ID, "500", "Travel")

	result, err := decide(f, expense.ID, o.manager.ID, entity.StatusRejected)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Equal(t, entity.StatusRejected, result.Expense.Status)
	require.NotNil(t, result.Expense.RejectedBy)
	assert.Equal(t, o.manager.ID, *result.Expense.RejectedBy)
	assert.Nil(t, result.Expense.ApprovedBy)

	for _, actor := range []int64{o.manager.ID, o.admin.ID, o.employee.ID} {
		_, err := decide(f, expense.ID, actor, entity.StatusApproved)
		assert.ErrorIs(t, err, domainwf.ErrNoPendingApproval)
	}

	assert.Len(t, f.steps(t, expense.ID), 1, "rejection never escalates")
}

func TestDecide_EscalatesToAdmin(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	f.store.CreateRule(t, "large claims", "amount > 1000", entity.RoleAdmin)
	expense := f.create(t, o.employee.ID, "1500", "Travel")

	result, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
	require.NoError(t, err)

	assert.Equal(t, OutcomeForwarded, result.Outcome)
	assert.Equal(t, entity.StatusPending, result.Expense.Status)
	require.NotNil(t, result.NextStep)
	assert.Equal(t, 2, result.NextStep.Sequence)
	assert.Equal(t, o.admin.ID, result.NextStep.ApproverID)

	_, err = decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
	assert.ErrorIs(t, err, domainwf.ErrNotAuthorized, "the manager's turn is over")

	queue, err := f.engine.ListPendingForApprover(context.Background(), o.admin.ID)
	require.NoError(t, err)
	require.Len(t, queue, 1)

	result, err = decide(f, expense.ID, o.admin.ID, entity.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, result.Outcome, "a role that signed off is not asked again")
	assert.Equal(t, entity.StatusApproved, result.Expense.Status)
	require.NotNil(t, result.Expense.ApprovedBy)
	assert.Equal(t, o.admin.ID, *result.Expense.ApprovedBy)

	steps := f.steps(t, expense.ID)
	require.Len(t, steps, 2)
	assertStepInvariants(t, steps)

	history, err := f.store.History.ListByExpenseID(context.Background(), expense.ID)
	require.NoError(t, err)
	var actions []string
	for _, h := range history {
		actions = append(actions, h.Action)
	}
	assert.Equal(t, []string{entity.ActionSubmit, entity.ActionForward, entity.ActionApprove}, actions)

	require.NoError(t, f.dispatcher.Close())
	assert.ElementsMatch(t, []event.Type{
		event.TypeExpenseSubmitted,
		event.TypeExpenseForwarded,
		event.TypeExpenseApproved,
	}, f.events.types())
}

func TestDecide_EscalationTargetSelection(t *testing.T) {
	t.Run("lowest id admin other than the submitter", func(t *testing.T) {
		f := newFixture(t)
		manager := f.store.CreateUser(t, "manager", entity.RoleManager, nil)
		firstAdmin := f.store.CreateUser(t, "first-admin", entity.RoleAdmin, testutil.Int64(manager.ID))
		secondAdmin := f.store.CreateUser(t, "second-admin", entity.RoleAdmin, nil)
		f.store.CreateRule(t, "large", "amount > 100", entity.RoleAdmin)

		expense := f.create(t, firstAdmin.ID, "500", "Travel")
		result, err := decide(f, expense.ID, manager.ID, entity.StatusApproved)
		require.NoError(t, err)
		require.Equal(t, OutcomeForwarded, result.Outcome)
		assert.Equal(t, secondAdmin.ID, result.NextStep.ApproverID)
	})

	t.Run("no eligible approver finalizes", func(t *testing.T) {
		f := newFixture(t)
		manager := f.store.CreateUser(t, "manager", entity.RoleManager, nil)
		onlyAdmin := f.store.CreateUser(t, "admin", entity.RoleAdmin, testutil.Int64(manager.ID))
		f.store.CreateRule(t, "large", "amount > 100", entity.RoleAdmin)

		expense := f.create(t, onlyAdmin.ID, "500", "Travel")
		result, err := decide(f, expense.ID, manager.ID, entity.StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, OutcomeApproved, result.Outcome)
		assert.Len(t, f.steps(t, expense.ID), 1)
	})

	t.Run("role already signed off finalizes", func(t *testing.T) {
		f := newFixture(t)
		o := f.org(t)
		f.store.CreateUser(t, "other-manager", entity.RoleManager, nil)
		f.store.CreateRule(t, "travel", "category == 'Travel'", entity.RoleManager)

		expense := f.create(t, o.employee.ID, "500", "Travel")
		result, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, OutcomeApproved, result.Outcome)
	})

	t.Run("first match without a role does not escalate", func(t *testing.T) {
		f := newFixture(t)
		o := f.org(t)
		f.store.CreateRule(t, "informational", "amount > 1", "")
		f.store.CreateRule(t, "large", "amount > 100", entity.RoleAdmin)

		expense := f.create(t, o.employee.ID, "500", "Travel")
		result, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, OutcomeApproved, result.Outcome)
	})

	t.Run("inactive rules are ignored", func(t *testing.T) {
		f := newFixture(t)
		o := f.org(t)
		rule := f.store.CreateRule(t, "large", "amount > 100", entity.RoleAdmin)
		rule.IsActive = false
		require.NoError(t, f.store.Rules.Update(context.Background(), rule))

		expense := f.create(t, o.employee.ID, "500", "Travel")
		result, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, OutcomeApproved, result.Outcome)
	})
}

func TestDecide_MalformedRuleNeverMatches(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	f.store.CreateRule(t, "broken", "amount >> 100", entity.RoleAdmin)
	expense := f.create(t, o.employee.ID, "5000", "Travel")

	result, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, result.Outcome)
	assert.Equal(t, entity.StatusApproved, result.Expense.Status)
}

func TestDecide_WrongActorChangesNothing(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	expense := f.create(t, o.employee.ID, "75", "Meals")

	before := f.steps(t, expense.ID)

	for _, actor := range []int64{o.employee.ID, o.admin.ID} {
		_, err := decide(f, expense.ID, actor, entity.StatusApproved)
		assert.ErrorIs(t, err, domainwf.ErrNotAuthorized)
		assert.NotErrorIs(t, err, domainwf.ErrNoPendingApproval)
	}

	after := f.steps(t, expense.ID)
	assert.Equal(t, before, after)

	reloaded, err := f.engine.GetExpense(context.Background(), expense.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, reloaded.Status)
}

func TestDecide_IdempotentFailureOnFinalized(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	expense := f.create(t, o.employee.ID, "40", "Meals")

	_, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
	require.NoError(t, err)

	snapshot, err := f.engine.GetExpense(context.Background(), expense.ID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
		assert.ErrorIs(t, err, domainwf.ErrNoPendingApproval)
	}

	again, err := f.engine.GetExpense(context.Background(), expense.ID)
	require.NoError(t, err)
	assert.Equal(t, snapshot, again)
}

func TestDecide_InputErrors(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	expense := f.create(t, o.employee.ID, "40", "Meals")

	_, err := decide(f, 9999, o.manager.ID, entity.StatusApproved)
	assert.ErrorIs(t, err, entity.ErrExpenseNotFound)

	_, err = decide(f, expense.ID, o.manager.ID, "maybe")
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.engine.GetApprovalProgress(context.Background(), 9999)
	assert.ErrorIs(t, err, entity.ErrExpenseNotFound)

	queue, err := f.engine.ListPendingForApprover(context.Background(), o.admin.ID)
	require.NoError(t, err)
	assert.NotNil(t, queue)
	assert.Empty(t, queue)
}

func TestDecide_ConcurrentDecisionsOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	o := f.org(t)
	expense := f.create(t, o.employee.ID, "60", "Meals")

	const callers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		results []error
	)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := decide(f, expense.ID, o.manager.ID, entity.StatusApproved)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			results = append(results, err)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, wins)
	for _, err := range results {
		assert.True(t,
			errors.Is(err, domainwf.ErrNoPendingApproval) || errors.Is(err, domainwf.ErrNotAuthorized),
			"unexpected error: %v", err)
	}

	steps := f.steps(t, expense.ID)
	require.Len(t, steps, 1)
	assertStepInvariants(t, steps)

	reloaded, err := f.engine.GetExpense(context.Background(), expense.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, reloaded.Status)
}

func TestEngine_CorrelationIDReachesEvents(t *testing.T) {
	f := newFixture(t)
	solo := f.store.CreateUser(t, "solo", entity.RoleEmployee, nil)

	ctx := event.ContextWithCorrelationID(context.Background(), "req-abc")
	_, err := f.engine.CreateExpense(ctx, CreateExpenseInput{SubmitterID: solo.ID, Amount: decimal.NewFromInt(5), Category: "Meals"})
	require.NoError(t, err)

	require.NoError(t, f.dispatcher.Close())
	f.events.mu.Lock()
	defer f.events.mu.Unlock()
	require.Len(t, f.events.events, 1)
	assert.Equal(t, "req-abc", f.events.events[0].CorrelationID)
}
