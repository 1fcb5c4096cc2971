package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		eventType Type
		expected  bool
	}{
		{TypeExpenseSubmitted, true},
		{TypeExpenseForwarded, true},
		{TypeExpenseApproved, true},
		{TypeExpenseRejected, true},
		{Type("expense.deleted"), false},
		{Type(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.eventType.IsValid())
		})
	}
}

func TestNewEvent(t *testing.T) {
	evt := NewEvent(TypeExpenseForwarded, 42, 7, map[string]interface{}{
		"sequence": 2,
	})

	require.NotNil(t, evt)
	assert.NotEmpty(t, evt.ID)
	assert.NotEmpty(t, evt.CorrelationID)
	assert.Equal(t, TypeExpenseForwarded, evt.Type)
	assert.Equal(t, int64(42), evt.ExpenseID)
	assert.Equal(t, int64(7), evt.ActorID)
	assert.Equal(t, int64(2), evt.GetPayloadInt("sequence"))
	assert.False(t, evt.Timestamp.IsZero())
}

func TestNewEventWithCorrelation_NilPayload(t *testing.T) {
	evt := NewEventWithCorrelation(TypeExpenseApproved, 1, 2, nil, "req-123")

	assert.Equal(t, "req-123", evt.CorrelationID)
	assert.NotNil(t, evt.Payload)
	assert.Equal(t, "", evt.GetPayloadString("missing"))
}

func TestEvent_WithPayloadDoesNotMutateOriginal(t *testing.T) {
	original := NewEvent(TypeExpenseRejected, 1, 2, map[string]interface{}{"comments": "no receipt"})

	updated := original.WithPayload("status", "rejected")

	assert.Equal(t, "rejected", updated.GetPayloadString("status"))
	assert.Equal(t, "no receipt", updated.GetPayloadString("comments"))
	assert.Equal(t, "", original.GetPayloadString("status"))
	assert.Equal(t, original.ID, updated.ID)
}

func TestEvent_GetPayloadInt(t *testing.T) {
	evt := NewEvent(TypeExpenseSubmitted, 1, 1, map[string]interface{}{
		"int":     3,
		"int64":   int64(4),
		"float":   float64(5),
		"string":  "6",
		"missing": nil,
	})

	assert.Equal(t, int64(3), evt.GetPayloadInt("int"))
	assert.Equal(t, int64(4), evt.GetPayloadInt("int64"))
	assert.Equal(t, int64(5), evt.GetPayloadInt("float"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("string"))
	assert.Equal(t, int64(0), evt.GetPayloadInt("missing"))
}

func TestEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeExpenseSubmitted, int64(i), 1, nil)
		require.False(t, seen[evt.ID], "duplicate event id %s", evt.ID)
		seen[evt.ID] = true
	}
}

func TestCorrelationIDContext(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "req-9")
	assert.Equal(t, "req-9", CorrelationIDFromContext(ctx))
	assert.Equal(t, "", CorrelationIDFromContext(context.Background()))
}
