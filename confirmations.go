package authkit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Action is the category of a confirmation.
type Action string

const (
	ActionRegistration  Action = "registration"
	ActionResetPassword Action = "reset_password"
	ActionChangeEmail   Action = "change_email"
)

// Confirmation is a single-use, time-limited token binding a user to a
// pending action. The code is the primary lookup key.
type Confirmation struct {
	Code      string    `json:"code"`
	UserID    string    `json:"user_id"`
	Action    Action    `json:"action"`
	Data      string    `json:"data,omitempty"` // payload, e.g. the pending new email
	CreatedAt time.Time `json:"created_at"`
}

// Link builds the confirmation URL for the code under baseURL.
func (c *Confirmation) Link(baseURL string) string {
	return fmt.Sprintf("%s/auth/confirmation/%s", baseURL, c.Code)
}

// Confirmations issues, looks up, expires and consumes confirmations
// against a Storage, using the per-action lifetimes from Config.
type Confirmations struct {
	store Storage
	cfg   *Config
	now   func() time.Time
}

// NewConfirmations returns an engine bound to the given store and config.
func NewConfirmations(store Storage, cfg *Config) *Confirmations {
	return &Confirmations{store: store, cfg: cfg, now: time.Now}
}

// Lifetime returns the configured lifetime for the action kind.
func (e *Confirmations) Lifetime(action Action) time.Duration {
	switch action {
	case ActionRegistration:
		return e.cfg.RegistrationConfirmationLifetime
	case ActionResetPassword:
		return e.cfg.ResetPasswordConfirmationLifetime
	case ActionChangeEmail:
		return e.cfg.ChangeEmailConfirmationLifetime
	default:
		return 0
	}
}

// Expired reports whether the confirmation has outlived its action's
// lifetime.
func (e *Confirmations) Expired(c *Confirmation) bool {
	return e.now().Sub(c.CreatedAt) > e.Lifetime(c.Action)
}

// Issue persists a new confirmation for (user, action) with an optional
// payload and returns it. Sending the email is the caller's business.
func (e *Confirmations) Issue(ctx context.Context, user *User, action Action, data string) (*Confirmation, error) {
	return e.store.CreateConfirmation(ctx, user, action, data)
}

// Lookup fetches a confirmation by code. An expired confirmation is
// deleted and reported as not found; the deletion happens exactly once, on
// the lookup that detects the expiry.
func (e *Confirmations) Lookup(ctx context.Context, code string) (*Confirmation, error) {
	c, err := e.store.GetConfirmation(ctx, ConfirmationFilter{Code: code})
	if err != nil {
		return nil, err
	}
	if e.Expired(c) {
		if err := e.store.DeleteConfirmation(ctx, c); err != nil {
			return nil, err
		}
		return nil, ErrConfirmationNotFound
	}
	return c, nil
}

// Consume deletes the confirmation. Consuming twice is caller error.
func (e *Confirmations) Consume(ctx context.Context, c *Confirmation) error {
	return e.store.DeleteConfirmation(ctx, c)
}

// IssuanceAllowed reports whether a new confirmation may be issued for
// (user, action). It is false while a live confirmation of that action
// exists; an expired one found on the way is deleted and issuance allowed.
func (e *Confirmations) IssuanceAllowed(ctx context.Context, user *User, action Action) (bool, error) {
	c, err := e.store.GetConfirmation(ctx, ConfirmationFilter{UserID: user.ID, Action: action})
	if errors.Is(err, ErrConfirmationNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if e.Expired(c) {
		if err := e.store.DeleteConfirmation(ctx, c); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
