package authkit

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds every recognized option as an immutable value constructed
// once at startup and passed to each component. There is no ambient global
// configuration.
type Config struct {
	// BaseURL is the external base URL used to build confirmation links,
	// e.g. "https://example.com". Required.
	BaseURL string `env:"AUTHKIT_BASE_URL" validate:"required"`

	// Redirect targets produced by the flows.
	LoginRedirect              string `env:"AUTHKIT_LOGIN_REDIRECT" envDefault:"/"`
	LogoutRedirect             string `env:"AUTHKIT_LOGOUT_REDIRECT" envDefault:"/login"`
	RegistrationRequestedURL   string `env:"AUTHKIT_REGISTRATION_REQUESTED_URL" envDefault:"/registration-requested"`
	ResetPasswordRequestedURL  string `env:"AUTHKIT_RESET_PASSWORD_REQUESTED_URL" envDefault:"/reset-password-requested"`
	ChangeEmailURL             string `env:"AUTHKIT_CHANGE_EMAIL_URL" envDefault:"/change-email"`
	ChangePasswordURL          string `env:"AUTHKIT_CHANGE_PASSWORD_URL" envDefault:"/change-password"`
	ConfirmationErrorURL       string `env:"AUTHKIT_CONFIRMATION_ERROR_URL" envDefault:"/confirmation-error"`

	// SkipRegistrationConfirmation disables the email verification step:
	// registration creates an active account and logs it in immediately.
	// By default new registrations start pending and must confirm.
	SkipRegistrationConfirmation bool `env:"AUTHKIT_SKIP_REGISTRATION_CONFIRMATION" envDefault:"false"`

	// Per-action confirmation lifetimes. A confirmation older than the
	// lifetime of its action is expired.
	RegistrationConfirmationLifetime  time.Duration `env:"AUTHKIT_REGISTRATION_CONFIRMATION_LIFETIME" envDefault:"120h" validate:"min=1m"`
	ResetPasswordConfirmationLifetime time.Duration `env:"AUTHKIT_RESET_PASSWORD_CONFIRMATION_LIFETIME" envDefault:"120h" validate:"min=1m"`
	ChangeEmailConfirmationLifetime   time.Duration `env:"AUTHKIT_CHANGE_EMAIL_CONFIRMATION_LIFETIME" envDefault:"120h" validate:"min=1m"`

	// Password length bounds for registration, reset and change flows.
	PasswordMinLen int `env:"AUTHKIT_PASSWORD_MIN_LEN" envDefault:"6" validate:"min=1"`
	PasswordMaxLen int `env:"AUTHKIT_PASSWORD_MAX_LEN" envDefault:"30" validate:"gtefield=PasswordMinLen"`

	// MailTimeout bounds every mail dispatch. A timeout is treated the
	// same as a send failure and triggers the compensating deletes.
	MailTimeout time.Duration `env:"AUTHKIT_MAIL_TIMEOUT" envDefault:"10s" validate:"min=1s"`

	// AdminEmails is the allow-list consulted by IsAdmin.
	AdminEmails []string `env:"AUTHKIT_ADMIN_EMAILS" envSeparator:","`

	// Messages is the catalog of user-visible strings surfaced by the
	// flows as flash messages and field errors.
	Messages Messages
}

// Messages holds every user-visible string the flows can produce.
type Messages struct {
	LoggedIn             string
	LoggedOut            string
	Activated            string
	UnknownEmail         string
	WrongPassword        string
	UserBanned           string
	ActivationRequired   string
	EmailExists          string
	OftenResetPassword   string
	CantSendMail         string
	PasswordsNotMatch    string
	PasswordChanged      string
	ChangeEmailRequested string
	EmailChanged         string
	AuthFailed           string
}

// DefaultMessages returns the default message catalog.
func DefaultMessages() Messages {
	return Messages{
		LoggedIn:           "You are logged in",
		LoggedOut:          "You are logged out",
		Activated:          "Your account is activated",
		UnknownEmail:       "This email is not registered",
		WrongPassword:      "Wrong password",
		UserBanned:         "This user is banned",
		ActivationRequired: "You have to activate your account via email, before you can login",
		EmailExists:        "This email is already registered",
		OftenResetPassword: "You can't request of restoring your password so often. Please, use the link we sent you recently",
		CantSendMail:       "Can't send email, try a little later",
		PasswordsNotMatch:  "Passwords must match",
		PasswordChanged:    "Your password is changed",
		ChangeEmailRequested: "Please, click on the verification link" +
			" we sent to your new email address",
		EmailChanged: "Your email is changed",
		AuthFailed:   "Authorization failed",
	}
}

// WithDefaults fills in defaults for any unset field and returns the
// config for chaining. BaseURL stays untouched: it has no default.
func (c *Config) WithDefaults() *Config {
	if c.LoginRedirect == "" {
		c.LoginRedirect = "/"
	}
	if c.LogoutRedirect == "" {
		c.LogoutRedirect = "/login"
	}
	if c.RegistrationRequestedURL == "" {
		c.RegistrationRequestedURL = "/registration-requested"
	}
	if c.ResetPasswordRequestedURL == "" {
		c.ResetPasswordRequestedURL = "/reset-password-requested"
	}
	if c.ChangeEmailURL == "" {
		c.ChangeEmailURL = "/change-email"
	}
	if c.ChangePasswordURL == "" {
		c.ChangePasswordURL = "/change-password"
	}
	if c.ConfirmationErrorURL == "" {
		c.ConfirmationErrorURL = "/confirmation-error"
	}
	if c.RegistrationConfirmationLifetime <= 0 {
		c.RegistrationConfirmationLifetime = 5 * 24 * time.Hour
	}
	if c.ResetPasswordConfirmationLifetime <= 0 {
		c.ResetPasswordConfirmationLifetime = 5 * 24 * time.Hour
	}
	if c.ChangeEmailConfirmationLifetime <= 0 {
		c.ChangeEmailConfirmationLifetime = 5 * 24 * time.Hour
	}
	if c.PasswordMinLen <= 0 {
		c.PasswordMinLen = 6
	}
	if c.PasswordMaxLen <= 0 {
		c.PasswordMaxLen = 30
	}
	if c.MailTimeout <= 0 {
		c.MailTimeout = 10 * time.Second
	}
	if c.Messages == (Messages{}) {
		c.Messages = DefaultMessages()
	}
	return c
}

// Validate checks the required fields and bounds.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: BaseURL is required")
	}
	if c.PasswordMinLen > c.PasswordMaxLen {
		return fmt.Errorf("config: PasswordMinLen %d exceeds PasswordMaxLen %d",
			c.PasswordMinLen, c.PasswordMaxLen)
	}
	return nil
}

// ConfigFromEnv builds a Config from AUTHKIT_* environment variables and
// validates it.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Messages = DefaultMessages()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
