package models

import (
	"encoding/json"
	"time"
)

// Webhook event types accepted from the commerce platform.
const (
	EventTypeOrderCreated      = "ORDER_CREATED"
	EventTypeOrderStatusUpdate = "ORDER_STATUS_UPDATE"
	EventTypeOrderCancelled    = "ORDER_CANCELLED"
)

// ValidEventType reports whether t is a known webhook event type.
func ValidEventType(t string) bool {
	switch t {
	case EventTypeOrderCreated, EventTypeOrderStatusUpdate, EventTypeOrderCancelled:
		return true
	}
	return false
}

// WebhookEvent is the parsed body of an inbound delivery.
type WebhookEvent struct {
	Timestamp int64          `json:"timestamp"`
	Type      string         `json:"type"`
	ShopID    string         `json:"shop_id"`
	Data      OrderEventData `json:"data"`
}

// OrderEventData is the order payload carried by a webhook event.
type OrderEventData struct {
	OrderID     string          `json:"order_id"`
	Status      string          `json:"status"`
	Items       json.RawMessage `json:"items"`
	TotalAmount int64           `json:"total_amount"`
	UpdateTime  int64           `json:"update_time"`
}

// Internal event types published to the broker after ingestion.
const (
	EventTypeOrderReceived      = "ORDER_RECEIVED"
	EventTypeOrderProcessed     = "ORDER_PROCESSED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all published events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderReceivedEvent hands a claimed, persisted delivery to the
// processing worker.
type OrderReceivedEvent struct {
	BaseEvent
	EventIdentity string `json:"event_identity"`
	OrderID       string `json:"order_id"`
	ShopID        string `json:"shop_id"`
}

// OrderProcessedEvent reports the outcome of processing one order event.
type OrderProcessedEvent struct {
	BaseEvent
	EventIdentity string `json:"event_identity"`
	OrderID       string `json:"order_id"`
	ShopID        string `json:"shop_id"`
	Outcome       string `json:"outcome"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// OrderStatusChangedEvent notifies interested consumers of a persisted
// status change.
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	ShopID     string `json:"shop_id"`
	Status     string `json:"status"`
	UpdateTime int64  `json:"update_time"`
}

// Processing outcomes.
const (
	OutcomeSuccess        = "SUCCESS"
	OutcomePartialSuccess = "PARTIAL_SUCCESS"
	OutcomeFailure        = "FAILURE"
)
