package authkit_test

import (
	"testing"
	"time"

	"github.com/panyam/authkit"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHKIT_BASE_URL", "https://myapp.example.com")
	t.Setenv("AUTHKIT_PASSWORD_MIN_LEN", "8")
	t.Setenv("AUTHKIT_ADMIN_EMAILS", "root@example.com,ops@example.com")

	cfg, err := authkit.ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv failed: %v", err)
	}
	if cfg.BaseURL != "https://myapp.example.com" {
		t.Fatalf("Unexpected BaseURL: %s", cfg.BaseURL)
	}
	if cfg.PasswordMinLen != 8 || cfg.PasswordMaxLen != 30 {
		t.Fatalf("Unexpected password bounds: %d..%d", cfg.PasswordMinLen, cfg.PasswordMaxLen)
	}
	if cfg.RegistrationConfirmationLifetime != 120*time.Hour {
		t.Fatalf("Unexpected lifetime: %s", cfg.RegistrationConfirmationLifetime)
	}
	if len(cfg.AdminEmails) != 2 {
		t.Fatalf("Unexpected admin emails: %v", cfg.AdminEmails)
	}
	if cfg.Messages.WrongPassword == "" {
		t.Fatal("Expected default messages to be filled in")
	}
}

func TestConfigFromEnvRequiresBaseURL(t *testing.T) {
	t.Setenv("AUTHKIT_BASE_URL", "")
	if _, err := authkit.ConfigFromEnv(); err == nil {
		t.Fatal("Expected an error without a base URL")
	}
}

func TestConfigFromEnvRejectsInvertedBounds(t *testing.T) {
	t.Setenv("AUTHKIT_BASE_URL", "https://myapp.example.com")
	t.Setenv("AUTHKIT_PASSWORD_MIN_LEN", "40")
	if _, err := authkit.ConfigFromEnv(); err == nil {
		t.Fatal("Expected an error when min exceeds max")
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := (&authkit.Config{BaseURL: "http://example.com"}).WithDefaults()
	if cfg.LoginRedirect != "/" || cfg.LogoutRedirect != "/login" {
		t.Fatalf("Unexpected redirects: %s / %s", cfg.LoginRedirect, cfg.LogoutRedirect)
	}
	if cfg.PasswordMinLen != 6 || cfg.PasswordMaxLen != 30 {
		t.Fatalf("Unexpected password bounds: %d..%d", cfg.PasswordMinLen, cfg.PasswordMaxLen)
	}
	if cfg.MailTimeout != 10*time.Second {
		t.Fatalf("Unexpected mail timeout: %s", cfg.MailTimeout)
	}
	if cfg.SkipRegistrationConfirmation {
		t.Fatal("Confirmation must be required by default")
	}
}
