// Package mailer provides production Mailer implementations for authkit.
package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// ResendMailer sends email through the Resend API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer creates a mailer sending from the given address, e.g.
// "MyApp <auth@myapp.com>".
func NewResendMailer(apiKey, from string) *ResendMailer {
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (m *ResendMailer) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
