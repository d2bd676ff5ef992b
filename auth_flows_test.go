package authkit_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/panyam/authkit"
	"github.com/panyam/authkit/stores"
)

// captureMailer records every sent mail instead of delivering it.
type captureMailer struct {
	mails []capturedMail
}

type capturedMail struct {
	To      string
	Subject string
	Body    string
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	m.mails = append(m.mails, capturedMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *captureMailer) last(t *testing.T) capturedMail {
	t.Helper()
	if len(m.mails) == 0 {
		t.Fatal("Expected a mail to have been sent")
	}
	return m.mails[len(m.mails)-1]
}

// failingMailer refuses every send.
type failingMailer struct{}

func (failingMailer) Send(context.Context, string, string, string) error {
	return fmt.Errorf("smtp unreachable")
}

var confirmationLinkRx = regexp.MustCompile(`/auth/confirmation/([A-Za-z0-9]+)`)

func codeFromMail(t *testing.T, mail capturedMail) string {
	t.Helper()
	m := confirmationLinkRx.FindStringSubmatch(mail.Body)
	if m == nil {
		t.Fatalf("No confirmation link in mail body: %s", mail.Body)
	}
	return m[1]
}

func newTestService(t *testing.T, mailer authkit.Mailer, cfg *authkit.Config) (*authkit.Service, *stores.FSStorage) {
	t.Helper()
	if cfg == nil {
		cfg = &authkit.Config{BaseURL: "http://example.com"}
	}
	store := stores.NewFSStorage(t.TempDir())
	return authkit.NewService(store, mailer, cfg), store
}

func register(t *testing.T, service *authkit.Service, email, password string) *authkit.Outcome {
	t.Helper()
	outcome, err := service.Register(context.Background(), email, password, password, "10.0.0.1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return outcome
}

func TestRegisterAndConfirm(t *testing.T) {
	ctx := context.Background()
	mailer := &captureMailer{}
	service, store := newTestService(t, mailer, nil)

	outcome := register(t, service, "alice@example.com", "secret123")
	if outcome.Failed() {
		t.Fatalf("Unexpected field errors: %v", outcome.FieldErrors)
	}
	if outcome.User != nil {
		t.Fatal("Registration with confirmation must not log the user in")
	}
	if outcome.Redirect != service.Config.RegistrationRequestedURL {
		t.Fatalf("Unexpected redirect: %s", outcome.Redirect)
	}

	u, err := store.GetUser(ctx, authkit.UserFilter{Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.Status != authkit.StatusConfirmation {
		t.Fatalf("Expected pending status, got %s", u.Status)
	}
	if u.Name != "alice" {
		t.Fatalf("Expected name from email local part, got %q", u.Name)
	}
	if u.CreatedIP != "10.0.0.1" {
		t.Fatalf("Expected recorded client IP, got %q", u.CreatedIP)
	}

	// Logging in before activation is refused.
	loginOutcome, err := service.Login(ctx, "alice@example.com", "secret123", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !loginOutcome.Failed() {
		t.Fatal("Expected login to fail before activation")
	}

	mail := mailer.last(t)
	if mail.To != "alice@example.com" {
		t.Fatalf("Mail sent to wrong address: %s", mail.To)
	}
	result, err := service.Confirm(ctx, codeFromMail(t, mail))
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if result.Outcome == nil || result.Outcome.User == nil {
		t.Fatal("Expected confirmation to log the user in")
	}
	if result.Outcome.User.Status != authkit.StatusActive {
		t.Fatalf("Expected active status, got %s", result.Outcome.User.Status)
	}

	// The code is single use.
	again, err := service.Confirm(ctx, codeFromMail(t, mail))
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if again.Outcome == nil || again.Outcome.Redirect != service.Config.ConfirmationErrorURL {
		t.Fatal("Expected a consumed code to hit the error page")
	}

	loginOutcome, err = service.Login(ctx, "alice@example.com", "secret123", "/dashboard")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loginOutcome.User == nil || loginOutcome.Redirect != "/dashboard" {
		t.Fatalf("Unexpected login outcome: %+v", loginOutcome)
	}
}

func TestRegisterValidation(t *testing.T) {
	service, _ := newTestService(t, &captureMailer{}, nil)

	tests := []struct {
		name     string
		email    string
		password string
		confirm  string
		field    string
	}{
		{"invalid email", "not-an-email", "secret123", "secret123", "email"},
		{"short password", "a@example.com", "abc", "abc", "password"},
		{"long password", "a@example.com", strings.Repeat("x", 40), strings.Repeat("x", 40), "password"},
		{"mismatched passwords", "a@example.com", "secret123", "secret124", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := service.Register(context.Background(), tt.email, tt.password, tt.confirm, "")
			if err != nil {
				t.Fatalf("Register failed: %v", err)
			}
			if len(outcome.FieldErrors[tt.field]) == 0 {
				t.Fatalf("Expected error on field %q, got %v", tt.field, outcome.FieldErrors)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	mailer := &captureMailer{}
	service, _ := newTestService(t, mailer, nil)

	register(t, service, "bob@example.com", "secret123")
	outcome := register(t, service, "bob@example.com", "other456")
	if len(outcome.FieldErrors["email"]) == 0 {
		t.Fatalf("Expected email error, got %v", outcome.FieldErrors)
	}
	if outcome.FieldErrors["email"][0] != service.Config.Messages.EmailExists {
		t.Fatalf("Unexpected message: %s", outcome.FieldErrors["email"][0])
	}
}

func TestRegisterReclaimsExpiredRegistration(t *testing.T) {
	ctx := context.Background()
	mailer := &captureMailer{}
	cfg := &authkit.Config{
		BaseURL:                          "http://example.com",
		RegistrationConfirmationLifetime: time.Nanosecond,
	}
	service, store := newTestService(t, mailer, cfg)

	register(t, service, "carol@example.com", "secret123")
	first, err := store.GetUser(ctx, authkit.UserFilter{Email: "carol@example.com"})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	// The earlier registration was never confirmed and has expired, so
	// the address can be registered again.
	outcome := register(t, service, "carol@example.com", "other456")
	if outcome.Failed() {
		t.Fatalf("Expected reclaim to succeed, got %v", outcome.FieldErrors)
	}
	second, err := store.GetUser(ctx, authkit.UserFilter{Email: "carol@example.com"})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("Expected a fresh account, got the stale one")
	}
	if _, err := store.GetUser(ctx, authkit.UserFilter{ID: first.ID}); !errors.Is(err, authkit.ErrUserNotFound) {
		t.Fatalf("Expected stale account deleted, got %v", err)
	}
}

func TestRegisterMailFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService(t, failingMailer{}, nil)

	outcome := register(t, service, "dave@example.com", "secret123")
	if len(outcome.FieldErrors[""]) == 0 {
		t.Fatalf("Expected a form-level error, got %v", outcome.FieldErrors)
	}
	if outcome.FieldErrors[""][0] != service.Config.Messages.CantSendMail {
		t.Fatalf("Unexpected message: %s", outcome.FieldErrors[""][0])
	}
	// Neither the user nor any confirmation may survive the failed send.
	if _, err := store.GetUser(ctx, authkit.UserFilter{Email: "dave@example.com"}); !errors.Is(err, authkit.ErrUserNotFound) {
		t.Fatalf("Expected user rolled back, got %v", err)
	}
}

func TestRegisterWithoutConfirmation(t *testing.T) {
	cfg := &authkit.Config{BaseURL: "http://example.com"}
	cfg.WithDefaults()
	cfg.SkipRegistrationConfirmation = true
	mailer := &captureMailer{}
	service, store := newTestService(t, mailer, cfg)

	outcome := register(t, service, "erin@example.com", "secret123")
	if outcome.User == nil {
		t.Fatal("Expected immediate login when confirmation is disabled")
	}
	u, err := store.GetUser(context.Background(), authkit.UserFilter{Email: "erin@example.com"})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if u.Status != authkit.StatusActive {
		t.Fatalf("Expected active status, got %s", u.Status)
	}
	if len(mailer.mails) != 0 {
		t.Fatal("Expected no confirmation mail")
	}
}

func TestLoginErrors(t *testing.T) {
	ctx := context.Background()
	cfg := &authkit.Config{BaseURL: "http://example.com"}
	cfg.WithDefaults()
	cfg.SkipRegistrationConfirmation = true
	service, store := newTestService(t, &captureMailer{}, cfg)
	register(t, service, "frank@example.com", "secret123")

	t.Run("unknown email", func(t *testing.T) {
		outcome, err := service.Login(ctx, "nobody@example.com", "secret123", "")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if got := outcome.FieldErrors["email"]; len(got) == 0 || got[0] != service.Config.Messages.UnknownEmail {
			t.Fatalf("Expected unknown-email error, got %v", outcome.FieldErrors)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		outcome, err := service.Login(ctx, "frank@example.com", "nope", "")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if got := outcome.FieldErrors["password"]; len(got) == 0 || got[0] != service.Config.Messages.WrongPassword {
			t.Fatalf("Expected wrong-password error, got %v", outcome.FieldErrors)
		}
	})

	t.Run("banned account", func(t *testing.T) {
		u, err := store.GetUser(ctx, authkit.UserFilter{Email: "frank@example.com"})
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		banned := authkit.StatusBanned
		if err := store.UpdateUser(ctx, u, authkit.UserUpdates{Status: &banned}); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		outcome, err := service.Login(ctx, "frank@example.com", "secret123", "")
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if got := outcome.FieldErrors["email"]; len(got) == 0 || got[0] != service.Config.Messages.UserBanned {
			t.Fatalf("Expected banned error, got %v", outcome.FieldErrors)
		}
	})
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	mailer := &captureMailer{}
	cfg := &authkit.Config{BaseURL: "http://example.com"}
	cfg.WithDefaults()
	cfg.SkipRegistrationConfirmation = true
	service, store := newTestService(t, mailer, cfg)
	register(t, service, "grace@example.com", "oldsecret")

	outcome, err := service.RequestPasswordReset(ctx, "grace@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if outcome.Redirect != service.Config.ResetPasswordRequestedURL {
		t.Fatalf("Unexpected redirect: %s", outcome.Redirect)
	}

	// A second request while the first confirmation is live is refused.
	outcome, err = service.RequestPasswordReset(ctx, "grace@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if got := outcome.FieldErrors["email"]; len(got) == 0 || got[0] != service.Config.Messages.OftenResetPassword {
		t.Fatalf("Expected throttle error, got %v", outcome.FieldErrors)
	}

	mail := mailer.last(t)
	result, err := service.Confirm(ctx, codeFromMail(t, mail))
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if result.Confirmation == nil || result.Action != authkit.ActionResetPassword {
		t.Fatalf("Expected a live reset confirmation, got %+v", result)
	}

	outcome, err = service.ResetPassword(ctx, result.Confirmation, "newsecret", "newsecret")
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if outcome.User == nil {
		t.Fatal("Expected reset to log the user in")
	}

	if _, err := store.GetConfirmation(ctx, authkit.ConfirmationFilter{Code: result.Confirmation.Code}); !errors.Is(err, authkit.ErrConfirmationNotFound) {
		t.Fatalf("Expected reset confirmation consumed, got %v", err)
	}

	loginOutcome, err := service.Login(ctx, "grace@example.com", "oldsecret", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !loginOutcome.Failed() {
		t.Fatal("Expected old password to stop working")
	}
	loginOutcome, err = service.Login(ctx, "grace@example.com", "newsecret", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loginOutcome.User == nil {
		t.Fatal("Expected new password to work")
	}
}

func TestPasswordResetMailFailure(t *testing.T) {
	ctx := context.Background()
	cfg := &authkit.Config{BaseURL: "http://example.com"}
	cfg.WithDefaults()
	cfg.SkipRegistrationConfirmation = true
	service, store := newTestService(t, &captureMailer{}, cfg)
	register(t, service, "heidi@example.com", "secret123")
	u, err := store.GetUser(ctx, authkit.UserFilter{Email: "heidi@example.com"})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	service.Mailer = failingMailer{}
	outcome, err := service.RequestPasswordReset(ctx, "heidi@example.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if len(outcome.FieldErrors[""]) == 0 {
		t.Fatalf("Expected a form-level error, got %v", outcome.FieldErrors)
	}
	// The failed send must not leave a confirmation that would block a
	// retry for the full lifetime.
	if _, err := store.GetConfirmation(ctx, authkit.ConfirmationFilter{UserID: u.ID, Action: authkit.ActionResetPassword}); !errors.Is(err, authkit.ErrConfirmationNotFound) {
		t.Fatalf("Expected confirmation rolled back, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	cfg := &authkit.Config{BaseURL: "http://example.com"}
	cfg.WithDefaults()
	cfg.SkipRegistrationConfirmation = true
	service, store := newTestService(t, &captureMailer{}, cfg)
	register(t, service, "ivan@example.com", "oldsecret")
	u, err := store.GetUser(ctx, authkit.UserFilter{Email: "ivan@example.com"})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	outcome, err := service.ChangePassword(ctx, u, "wrong", "newsecret", "newsecret")
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if len(outcome.FieldErrors["current_password"]) == 0 {
		t.Fatalf("Expected current-password error, got %v", outcome.FieldErrors)
	}

	outcome, err = service.ChangePassword(ctx, u, "oldsecret", "newsecret", "newsecret")
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if outcome.Failed() {
		t.Fatalf("Unexpected field errors: %v", outcome.FieldErrors)
	}
	loginOutcome, err := service.Login(ctx, "ivan@example.com", "newsecret", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loginOutcome.User == nil {
		t.Fatal("Expected new password to work")
	}
}

func TestChangeEmailFlow(t *testing.T) {
	ctx := context.Background()
	mailer := &captureMailer{}
	cfg := &authkit.Config{BaseURL: "http://example.com"}
	cfg.WithDefaults()
	cfg.SkipRegistrationConfirmation = true
	service, store := newTestService(t, mailer, cfg)
	register(t, service, "judy@example.com", "secret123")
	u, err := store.GetUser(ctx, authkit.UserFilter{Email: "judy@example.com"})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	outcome, err := service.ChangeEmail(ctx, u, "judy-new@example.com")
	if err != nil {
		t.Fatalf("ChangeEmail failed: %v", err)
	}
	if outcome.Failed() {
		t.Fatalf("Unexpected field errors: %v", outcome.FieldErrors)
	}
	if mail := mailer.last(t); mail.To != "judy-new@example.com" {
		t.Fatalf("Expected mail to the new address, got %s", mail.To)
	}

	// A repeated request replaces the pending change with the latest
	// address.
	if _, err := service.ChangeEmail(ctx, u, "judy-final@example.com"); err != nil {
		t.Fatalf("ChangeEmail failed: %v", err)
	}
	pending, err := store.GetConfirmation(ctx, authkit.ConfirmationFilter{UserID: u.ID, Action: authkit.ActionChangeEmail})
	if err != nil {
		t.Fatalf("GetConfirmation failed: %v", err)
	}
	if pending.Data != "judy-final@example.com" {
		t.Fatalf("Expected latest pending address, got %s", pending.Data)
	}

	result, err := service.Confirm(ctx, codeFromMail(t, mailer.last(t)))
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if result.Outcome == nil {
		t.Fatal("Expected a final outcome")
	}

	if _, err := store.GetUser(ctx, authkit.UserFilter{Email: "judy@example.com"}); !errors.Is(err, authkit.ErrUserNotFound) {
		t.Fatalf("Expected old email released, got %v", err)
	}
	if _, err := store.GetUser(ctx, authkit.UserFilter{Email: "judy-final@example.com"}); err != nil {
		t.Fatalf("Expected account under new email, got %v", err)
	}
}

func TestChangeEmailRejectsTakenAddress(t *testing.T) {
	ctx := context.Background()
	cfg := &authkit.Config{BaseURL: "http://example.com"}
	cfg.WithDefaults()
	cfg.SkipRegistrationConfirmation = true
	service, store := newTestService(t, &captureMailer{}, cfg)
	register(t, service, "kim@example.com", "secret123")
	register(t, service, "lee@example.com", "secret123")
	u, err := store.GetUser(ctx, authkit.UserFilter{Email: "kim@example.com"})
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}

	outcome, err := service.ChangeEmail(ctx, u, "lee@example.com")
	if err != nil {
		t.Fatalf("ChangeEmail failed: %v", err)
	}
	if got := outcome.FieldErrors["email"]; len(got) == 0 || got[0] != service.Config.Messages.EmailExists {
		t.Fatalf("Expected email-exists error, got %v", outcome.FieldErrors)
	}
}

func TestConfirmUnknownCode(t *testing.T) {
	service, _ := newTestService(t, &captureMailer{}, nil)
	result, err := service.Confirm(context.Background(), "nosuchcode")
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if result.Outcome == nil || result.Outcome.Redirect != service.Config.ConfirmationErrorURL {
		t.Fatalf("Expected error redirect, got %+v", result)
	}
}

func TestExpiredRegistrationConfirmDeletesUser(t *testing.T) {
	ctx := context.Background()
	mailer := &captureMailer{}
	cfg := &authkit.Config{
		BaseURL:                          "http://example.com",
		RegistrationConfirmationLifetime: time.Nanosecond,
	}
	service, store := newTestService(t, mailer, cfg)
	register(t, service, "mallory@example.com", "secret123")
	code := codeFromMail(t, mailer.last(t))
	time.Sleep(time.Millisecond)

	result, err := service.Confirm(ctx, code)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if result.Outcome == nil || result.Outcome.Redirect != service.Config.ConfirmationErrorURL {
		t.Fatalf("Expected error redirect, got %+v", result)
	}
	// Both the never-activated account and its confirmation are gone.
	if _, err := store.GetUser(ctx, authkit.UserFilter{Email: "mallory@example.com"}); !errors.Is(err, authkit.ErrUserNotFound) {
		t.Fatalf("Expected stale account deleted, got %v", err)
	}
	if _, err := store.GetConfirmation(ctx, authkit.ConfirmationFilter{Code: code}); !errors.Is(err, authkit.ErrConfirmationNotFound) {
		t.Fatalf("Expected confirmation deleted, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	service, _ := newTestService(t, &captureMailer{}, nil)
	outcome := service.Logout()
	if outcome.Redirect != service.Config.LogoutRedirect {
		t.Fatalf("Unexpected redirect: %s", outcome.Redirect)
	}
	if len(outcome.Flash) == 0 || outcome.Flash[0] != service.Config.Messages.LoggedOut {
		t.Fatalf("Unexpected flash: %v", outcome.Flash)
	}
}
