package events

import (
	"context"
	"testing"
	"time"
)

func TestSubject(t *testing.T) {
	if got := Subject("", EventOrderCompleted); got != "ordenes.order.completed" {
		t.Fatalf("unexpected default subject: %s", got)
	}
	if got := Subject("acme.ordenes", EventOrderStatusChanged); got != "acme.ordenes.order.status.changed" {
		t.Fatalf("unexpected subject: %s", got)
	}
}

func TestNewOrderEvent(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.FixedZone("CLT", -3*3600))
	a := NewOrderEvent(EventOrderCompleted, at)
	b := NewOrderEvent(EventOrderCompleted, at)
	if a.EventID == "" || a.EventID == b.EventID {
		t.Fatalf("expected unique event ids, got %q and %q", a.EventID, b.EventID)
	}
	if a.OccurredAt.Location() != time.UTC || !a.OccurredAt.Equal(at) {
		t.Fatalf("expected UTC timestamp, got %v", a.OccurredAt)
	}
}

func TestLogPublisher(t *testing.T) {
	var p LogPublisher
	if err := p.Publish(context.Background(), OrderEvent{EventType: EventOrderCompleted}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
