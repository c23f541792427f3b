package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"occasio/internal/domain"
)

type emailService struct {
	mailer   domain.Mailer
	renderer domain.EmailTemplateRenderer
	logger   *slog.Logger
}

// NewEmailService returns an EmailService that uses the given Mailer and template renderer.
func NewEmailService(mailer domain.Mailer, renderer domain.EmailTemplateRenderer, logger *slog.Logger) domain.EmailService {
	return &emailService{mailer: mailer, renderer: renderer, logger: logger}
}

func (s *emailService) send(ctx context.Context, templateName string, data any, to, bcc []string) error {
	subject, htmlBody, textBody, err := s.renderer.Render(templateName, data)
	if err != nil {
		return fmt.Errorf("failed to render %s template: %w", templateName, err)
	}
	msg := domain.EmailMessage{To: to, Bcc: bcc, Subject: subject, HTML: htmlBody, Text: textBody}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrNotificationFailure, templateName, err)
	}
	s.logger.Debug("email sent", "template", templateName, "to", len(to), "bcc", len(bcc))
	return nil
}

// SendVerification sends the sign-up verification code using the "verification" template.
func (s *emailService) SendVerification(ctx context.Context, data *domain.VerificationEmailData) error {
	if data == nil {
		return errors.New("verification email data is nil")
	}
	return s.send(ctx, "verification", data, []string{data.Email}, nil)
}

// SendRegistrationConfirmation sends the "registration_confirmation" template to the participant.
func (s *emailService) SendRegistrationConfirmation(ctx context.Context, data *domain.RegistrationEmailData) error {
	if data == nil {
		return errors.New("registration email data is nil")
	}
	return s.send(ctx, "registration_confirmation", data, []string{data.Email}, nil)
}

// SendEventReminder sends one "event_reminder" email with every recipient in Bcc.
func (s *emailService) SendEventReminder(ctx context.Context, data *domain.EventReminderEmailData) error {
	if data == nil {
		return errors.New("reminder email data is nil")
	}
	if len(data.Recipients) == 0 {
		return nil
	}
	return s.send(ctx, "event_reminder", data, nil, data.Recipients)
}

// SendRSVPInvitation sends one "rsvp_invitation" email with every recipient in Bcc.
func (s *emailService) SendRSVPInvitation(ctx context.Context, data *domain.RSVPInvitationEmailData) error {
	if data == nil {
		return errors.New("rsvp invitation email data is nil")
	}
	if len(data.Recipients) == 0 {
		return nil
	}
	return s.send(ctx, "rsvp_invitation", data, nil, data.Recipients)
}
