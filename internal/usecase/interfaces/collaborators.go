// Package interfaces declares the external collaborators used by the use cases.
package interfaces

//go:generate mockgen -source=collaborators.go -destination=mocks/collaborators_mock.go -package=mock_interfaces

import (
	"context"
	"time"

	"ordenapp/internal/domain"
	"ordenapp/internal/events"
)

// IBlobStore abstracts the object store holding evidence, signatures and reports.
//
// Put is expected to overwrite an existing object at the same path, which is what
// makes a retried report upload idempotent.
type IBlobStore interface {
	Put(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
	SignedURL(ctx context.Context, objectPath string, ttl time.Duration) (string, error)
}

// IDocumentRenderer turns an execution snapshot into document bytes and their content type.
type IDocumentRenderer interface {
	Render(ctx context.Context, templateID string, snapshot *domain.ReportSnapshot) ([]byte, string, error)
}

// INotifier sends the completion email.
type INotifier interface {
	SendEmail(ctx context.Context, to, subject, body, attachmentURL string) error
}

// IEventPublisher publishes order lifecycle events.
type IEventPublisher interface {
	Publish(ctx context.Context, event events.OrderEvent) error
}
