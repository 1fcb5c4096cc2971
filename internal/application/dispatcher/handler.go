package dispatcher

import (
	"context"

	"github.com/garyjia/expense-workflow/internal/domain/event"
)

// Handler processes a committed expense event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

// NewAuditHandler returns a handler that writes every event it receives
// to the audit log
func NewAuditHandler(logger Logger) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Expense event",
			"event_id", evt.ID,
			"event_type", evt.Type.String(),
			"expense_id", evt.ExpenseID,
			"actor_id", evt.ActorID,
			"correlation_id", evt.CorrelationID,
			"payload", evt.Payload,
		)
		return nil
	}
}
