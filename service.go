package authkit

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// FieldErrors maps an input field name to its validation messages. The
// empty key "" carries form-level errors not tied to a single field.
type FieldErrors map[string][]string

// Add appends a message for the field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Outcome is the result of a flow operation. Redirect is where to send
// the client next, Flash is the queue of messages to show once, and
// FieldErrors carries validation failures. A non-nil User means the
// caller must establish a session for that user.
type Outcome struct {
	Redirect    string      `json:"redirect,omitempty"`
	Flash       []string    `json:"flash,omitempty"`
	FieldErrors FieldErrors `json:"errors,omitempty"`
	User        *User       `json:"-"`
}

// Failed reports whether the outcome carries validation errors.
func (o *Outcome) Failed() bool {
	return len(o.FieldErrors) > 0
}

func fieldError(field, msg string) *Outcome {
	fe := FieldErrors{}
	fe.Add(field, msg)
	return &Outcome{FieldErrors: fe}
}

// Service implements the authentication flows over a Storage and a
// Mailer. It is safe for concurrent use.
type Service struct {
	Store  Storage
	Mailer Mailer
	Config *Config
	Logger *slog.Logger

	confirmations *Confirmations
}

// NewService wires a Service. The config is defaulted in place.
func NewService(store Storage, mailer Mailer, cfg *Config) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.WithDefaults()
	return &Service{
		Store:         store,
		Mailer:        mailer,
		Config:        cfg,
		Logger:        slog.Default(),
		confirmations: NewConfirmations(store, cfg),
	}
}

// Confirmations exposes the confirmation engine, mostly for tests and
// custom glue.
func (s *Service) Confirmations() *Confirmations {
	return s.confirmations
}

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func validEmail(email string) bool {
	return emailRx.MatchString(email)
}

// validatePassword checks the configured length bounds and the
// confirmation match, appending field errors for "password".
func (s *Service) validatePassword(fe FieldErrors, password, confirm string) {
	if len(password) < s.Config.PasswordMinLen || len(password) > s.Config.PasswordMaxLen {
		fe.Add("password", fmt.Sprintf("Password length must be between %d and %d characters",
			s.Config.PasswordMinLen, s.Config.PasswordMaxLen))
	}
	if password != confirm {
		fe.Add("password", s.Config.Messages.PasswordsNotMatch)
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// sendMail dispatches through the Mailer under the configured timeout.
// A timeout counts as a failed send.
func (s *Service) sendMail(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, s.Config.MailTimeout)
	defer cancel()
	if err := s.Mailer.Send(ctx, to, subject, body); err != nil {
		s.Logger.Error("mail send failed", "to", to, "subject", subject, "error", err)
		return err
	}
	return nil
}

func emailLocalPart(email string) string {
	for i := 0; i < len(email); i++ {
		if email[i] == '@' {
			return email[:i]
		}
	}
	return email
}
