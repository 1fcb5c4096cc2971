package workflow

import (
	"context"

	domainwf "github.com/garyjia/expense-workflow/internal/domain/workflow"
)

type escalationKey struct{}

// withEscalation records whether the rules require another approver
func withEscalation(ctx context.Context, escalate bool) context.Context {
	return context.WithValue(ctx, escalationKey{}, escalate)
}

func escalating(ctx context.Context) bool {
	v, _ := ctx.Value(escalationKey{}).(bool)
	return v
}

func notEscalating(ctx context.Context) bool {
	return !escalating(ctx)
}

// BuildExpenseStateMachine creates the expense lifecycle state machine.
// draft is the virtual state of a claim that has not been persisted yet.
// From pending, FORWARD requires an escalation and APPROVE requires none.
func BuildExpenseStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StateDraft).
		Permit(domainwf.TriggerSubmit, domainwf.StatePending).
		Permit(domainwf.TriggerAutoApprove, domainwf.StateApproved)

	builder.Configure(domainwf.StatePending).
		PermitReentryIf(domainwf.TriggerForward, escalating).
		PermitIf(domainwf.TriggerApprove, domainwf.StateApproved, notEscalating).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// APPROVED and REJECTED are terminal

	return builder.Build(initialState)
}
