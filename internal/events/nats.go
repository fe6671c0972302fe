package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes order events to a NATS server
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to url and publishes under subject prefix
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("ordenapp"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Publish encodes evt as JSON and flushes it within the context deadline
func (p *NATSPublisher) Publish(ctx context.Context, evt OrderEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	subject := Subject(p.prefix, evt.EventType)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	if _, ok := ctx.Deadline(); ok {
		err = p.conn.FlushWithContext(ctx)
	} else {
		err = p.conn.FlushTimeout(5 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("failed to flush %s: %w", subject, err)
	}
	return nil
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// LogPublisher only logs events, used when NATS is disabled
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, evt OrderEvent) error {
	log.Printf("📣 [events] type=%s order=%s status=%s", evt.EventType, evt.OrderNumber, evt.Status)
	return nil
}

func (LogPublisher) Close() error { return nil }
