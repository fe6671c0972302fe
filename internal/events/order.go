// Package events defines order lifecycle events and their NATS transport.
package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderEventsTopic        = "ordenes"
	EventOrderStatusChanged = "order.status.changed"
	EventOrderCompleted     = "order.completed"
)

// OrderEvent is published whenever an order changes status.
// Consumers (billing, client portal) rely on DocumentURL only for order.completed.
type OrderEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	ClientID    int64     `json:"client_id"`
	ChangedBy   int64     `json:"changed_by,omitempty"`

	DocumentURL  string `json:"document_url,omitempty"`
	DocumentType string `json:"document_type,omitempty"`
}

// NewOrderEvent creates an event with a fresh id
func NewOrderEvent(eventType string, occurredAt time.Time) OrderEvent {
	return OrderEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		OccurredAt: occurredAt.UTC(),
	}
}

// Subject returns the NATS subject for an event type under prefix
func Subject(prefix, eventType string) string {
	if prefix == "" {
		prefix = OrderEventsTopic
	}
	return prefix + "." + eventType
}
