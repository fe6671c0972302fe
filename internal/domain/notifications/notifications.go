// Package notifications provides interfaces for sending notifications
package notifications

import (
	"context"
	"fmt"
	"log"

	"gopkg.in/gomail.v2"
)

// EmailNotification represents an email to send
type EmailNotification struct {
	To            string
	Subject       string
	Body          string
	HTML          bool
	AttachmentURL string
}

// EmailProvider defines the interface for email providers
type EmailProvider interface {
	Send(ctx context.Context, notification EmailNotification) error
}

// CompositeNotifier sends notifications through the configured provider
type CompositeNotifier struct {
	email EmailProvider
}

// NewCompositeNotifier creates a new composite notifier
func NewCompositeNotifier(email EmailProvider) *CompositeNotifier {
	return &CompositeNotifier{email: email}
}

// SendEmail sends a plain text email with an optional link to an attached document
func (n *CompositeNotifier) SendEmail(ctx context.Context, to, subject, body, attachmentURL string) error {
	if n.email == nil {
		return nil // Silently skip if not configured
	}
	if to == "" {
		return fmt.Errorf("recipient address is empty")
	}
	return n.email.Send(ctx, EmailNotification{
		To:            to,
		Subject:       subject,
		Body:          body,
		AttachmentURL: attachmentURL,
	})
}

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPProvider delivers email through an SMTP relay
type SMTPProvider struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPProvider creates an SMTP email provider
func NewSMTPProvider(cfg SMTPConfig) *SMTPProvider {
	return &SMTPProvider{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (p *SMTPProvider) Send(ctx context.Context, n EmailNotification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.cfg.From)
	m.SetHeader("To", n.To)
	m.SetHeader("Subject", n.Subject)

	body := n.Body
	contentType := "text/plain"
	if n.HTML {
		contentType = "text/html"
	}
	if n.AttachmentURL != "" {
		if n.HTML {
			body += fmt.Sprintf(`<p><a href="%s">Descargar informe</a></p>`, n.AttachmentURL)
		} else {
			body += "\n\nDescargar informe: " + n.AttachmentURL
		}
	}
	m.SetBody(contentType, body)

	if err := p.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", n.To, err)
	}
	return nil
}

// LogEmailProvider only logs emails, used in development
type LogEmailProvider struct{}

func (m *LogEmailProvider) Send(ctx context.Context, n EmailNotification) error {
	log.Printf("📧 [email] to=%s subject=%q attachment=%s", n.To, n.Subject, n.AttachmentURL)
	return nil
}
