package notifications

import (
	"context"
	"errors"
	"testing"
)

type recordingProvider struct {
	sent []EmailNotification
	err  error
}

func (r *recordingProvider) Send(ctx context.Context, n EmailNotification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func TestCompositeNotifier_SendEmail(t *testing.T) {
	t.Run("nil provider is a no-op", func(t *testing.T) {
		n := NewCompositeNotifier(nil)
		if err := n.SendEmail(context.Background(), "a@b.cl", "s", "b", ""); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("forwards attachment url", func(t *testing.T) {
		p := &recordingProvider{}
		n := NewCompositeNotifier(p)
		if err := n.SendEmail(context.Background(), "a@b.cl", "Informe", "cuerpo", "https://files/x.pdf"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.sent) != 1 || p.sent[0].AttachmentURL != "https://files/x.pdf" || p.sent[0].To != "a@b.cl" {
			t.Fatalf("unexpected notification: %+v", p.sent)
		}
	})

	t.Run("empty recipient", func(t *testing.T) {
		p := &recordingProvider{}
		n := NewCompositeNotifier(p)
		if err := n.SendEmail(context.Background(), "", "s", "b", ""); err == nil {
			t.Fatalf("expected error for empty recipient")
		}
		if len(p.sent) != 0 {
			t.Fatalf("provider must not be called")
		}
	})

	t.Run("provider error", func(t *testing.T) {
		p := &recordingProvider{err: errors.New("smtp down")}
		n := NewCompositeNotifier(p)
		if err := n.SendEmail(context.Background(), "a@b.cl", "s", "b", ""); err == nil {
			t.Fatalf("expected provider error")
		}
	})
}

func TestSMTPProvider_CancelledContext(t *testing.T) {
	p := NewSMTPProvider(SMTPConfig{Host: "localhost", Port: 2525, From: "ordenes@example.com"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Send(ctx, EmailNotification{To: "a@b.cl"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
