package authkit

import (
	"context"
	"fmt"
	"log/slog"
)

// Mailer is the email collaborator. A failed send must surface as an
// error so the flows can compensate by deleting partially-committed state.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ConsoleMailer logs emails instead of sending them. Useful for
// development and tests.
type ConsoleMailer struct {
	Logger *slog.Logger
}

func (m *ConsoleMailer) Send(_ context.Context, to, subject, body string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email (console)", "to", to, "subject", subject, "body", body)
	return nil
}

// The mails the flows send. Each is a subject plus a small HTML body
// around the confirmation link; applications wanting full templating can
// wrap the Mailer.

func registrationMail(link string) (subject, body string) {
	return "Confirm your registration",
		fmt.Sprintf(`<p>Please confirm your registration by following the link below.</p><p><a href="%s">%s</a></p>`, link, link)
}

func resetPasswordMail(link string) (subject, body string) {
	return "Reset your password",
		fmt.Sprintf(`<p>To choose a new password, follow the link below.</p><p><a href="%s">%s</a></p>`, link, link)
}

func changeEmailMail(link string) (subject, body string) {
	return "Confirm your new email address",
		fmt.Sprintf(`<p>Please confirm your new email address by following the link below.</p><p><a href="%s">%s</a></p>`, link, link)
}
