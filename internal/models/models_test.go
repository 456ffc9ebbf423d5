package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		allowed  bool
	}{
		{OrderStatusCreated, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusCreated, OrderStatusShipped, false},
		{OrderStatusPaid, OrderStatusDelivered, false},

		// CANCELLED is reachable from any non-terminal state.
		{OrderStatusCreated, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCancelled, true},

		// Terminal states never move.
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusDelivered, OrderStatusPaid, false},

		// Redelivery of the current status is a no-op, not a violation.
		{OrderStatusPaid, OrderStatusPaid, true},
		{OrderStatusCancelled, OrderStatusCancelled, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{OrderStatusCreated, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled} {
		assert.True(t, ValidStatus(s), s)
	}
	assert.False(t, ValidStatus("PENDING"))
	assert.False(t, ValidStatus(""))
}

func TestValidEventType(t *testing.T) {
	for _, et := range []string{EventTypeOrderCreated, EventTypeOrderStatusUpdate, EventTypeOrderCancelled} {
		assert.True(t, ValidEventType(et), et)
	}
	assert.False(t, ValidEventType(EventTypeOrderReceived), "internal event types are not accepted inbound")
	assert.False(t, ValidEventType(""))
}
