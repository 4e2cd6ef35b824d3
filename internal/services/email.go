package services

import (
	"context"
	"fmt"
	"log/slog"

	"eventrsvp/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	if logger == nil {
		logger = slog.Default()
	}
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

// Handle renders the template named after the notification kind and sends it to the attendee.
func (s *emailService) Handle(ctx context.Context, n *domain.Notification) error {
	if n == nil {
		return fmt.Errorf("notification is nil")
	}
	if n.AttendeeEmail == "" {
		return fmt.Errorf("%w: notification %s has no recipient", domain.ErrInvalidInput, n.Kind)
	}
	subject, htmlBody, textBody, err := s.renderer.Render(string(n.Kind), n)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", n.Kind, err)
	}
	if err := s.mailer.Send(ctx, n.AttendeeEmail, subject, htmlBody, textBody); err != nil {
		return fmt.Errorf("failed to send %s email: %w", n.Kind, err)
	}
	s.logger.Info("notification email sent", "kind", n.Kind, "event_id", n.EventID, "attendee_id", n.AttendeeID)
	return nil
}
