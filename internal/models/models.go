package models

import (
	"encoding/json"
	"time"
)

// OrderSnapshot is the stored view of an order, updated monotonically
// by the platform's update_time.
type OrderSnapshot struct {
	OrderID     string          `db:"order_id" json:"order_id"`
	ShopID      string          `db:"shop_id" json:"shop_id"`
	Status      string          `db:"status" json:"status"`
	Items       json.RawMessage `db:"items" json:"items"`
	TotalAmount int64           `db:"total_amount" json:"total_amount"`
	RawPayload  json.RawMessage `db:"raw_payload" json:"raw_payload,omitempty"`
	UpdateTime  int64           `db:"update_time" json:"update_time"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// ProcessingRecord tracks at-most-once processing per event identity.
// The event_identity column carries a unique constraint; claiming an
// event is an insert-if-absent against it. RawPayload keeps the claimed
// delivery's body so the reconciliation sweep can rebuild the order
// snapshot when a crash or persist failure struck between claim and
// upsert.
type ProcessingRecord struct {
	EventIdentity string          `db:"event_identity" json:"event_identity"`
	ShopID        string          `db:"shop_id" json:"shop_id"`
	EventType     string          `db:"event_type" json:"event_type"`
	OrderID       string          `db:"order_id" json:"order_id"`
	RawPayload    json.RawMessage `db:"raw_payload" json:"raw_payload,omitempty"`
	ReceivedAt    time.Time       `db:"received_at" json:"received_at"`
	Processed     bool            `db:"processed" json:"processed"`
	Success       bool            `db:"success" json:"success"`
	ErrorMessage  string          `db:"error_message" json:"error_message,omitempty"`
}

// Order statuses, following the platform's status graph.
const (
	OrderStatusCreated   = "CREATED"
	OrderStatusPaid      = "PAID"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// TerminalStatus reports whether s is an end state of the status graph.
func TerminalStatus(s string) bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransition reports whether the status graph permits from -> to.
// CANCELLED is reachable from any non-terminal state.
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	if TerminalStatus(from) {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	switch from {
	case OrderStatusCreated:
		return to == OrderStatusPaid
	case OrderStatusPaid:
		return to == OrderStatusShipped
	case OrderStatusShipped:
		return to == OrderStatusDelivered
	}
	return false
}
