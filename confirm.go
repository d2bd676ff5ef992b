package authkit

import (
	"context"
	"errors"
)

// ConfirmResult is what following a confirmation link produced. For
// registration and change_email the Outcome is final. For reset_password
// the Confirmation is returned live so the caller can render the
// new-password form and later call ResetPassword with it.
type ConfirmResult struct {
	Action       Action
	Confirmation *Confirmation
	Outcome      *Outcome
}

// Confirm resolves a confirmation code and applies its action. An unknown
// or expired code redirects to the configured error page; an expired
// registration code additionally deletes the never-activated account so
// the email address becomes reusable.
func (s *Service) Confirm(ctx context.Context, code string) (*ConfirmResult, error) {
	c, err := s.Store.GetConfirmation(ctx, ConfirmationFilter{Code: code})
	if errors.Is(err, ErrConfirmationNotFound) {
		return s.confirmationError(), nil
	}
	if err != nil {
		return nil, err
	}

	if s.confirmations.Expired(c) {
		if c.Action == ActionRegistration {
			u, err := s.Store.GetUser(ctx, UserFilter{ID: c.UserID})
			switch {
			case err == nil:
				// DeleteUser cascades to the confirmation.
				if err := s.Store.DeleteUser(ctx, u); err != nil {
					return nil, err
				}
			case errors.Is(err, ErrUserNotFound):
				if err := s.Store.DeleteConfirmation(ctx, c); err != nil {
					return nil, err
				}
			default:
				return nil, err
			}
		} else if err := s.Store.DeleteConfirmation(ctx, c); err != nil {
			return nil, err
		}
		return s.confirmationError(), nil
	}

	switch c.Action {
	case ActionRegistration:
		return s.confirmRegistration(ctx, c)
	case ActionResetPassword:
		return &ConfirmResult{Action: c.Action, Confirmation: c}, nil
	case ActionChangeEmail:
		return s.confirmChangeEmail(ctx, c)
	default:
		return s.confirmationError(), nil
	}
}

func (s *Service) confirmationError() *ConfirmResult {
	return &ConfirmResult{Outcome: &Outcome{Redirect: s.Config.ConfirmationErrorURL}}
}

func (s *Service) confirmRegistration(ctx context.Context, c *Confirmation) (*ConfirmResult, error) {
	u, err := s.Store.GetUser(ctx, UserFilter{ID: c.UserID})
	if err != nil {
		return nil, err
	}
	if u.Status == StatusConfirmation {
		status := StatusActive
		if err := s.Store.UpdateUser(ctx, u, UserUpdates{Status: &status}); err != nil {
			return nil, err
		}
	}
	if err := s.confirmations.Consume(ctx, c); err != nil {
		return nil, err
	}
	return &ConfirmResult{
		Action:       c.Action,
		Confirmation: c,
		Outcome: &Outcome{
			User:     u,
			Flash:    []string{s.Config.Messages.Activated, s.Config.Messages.LoggedIn},
			Redirect: s.Config.LoginRedirect,
		},
	}, nil
}

func (s *Service) confirmChangeEmail(ctx context.Context, c *Confirmation) (*ConfirmResult, error) {
	u, err := s.Store.GetUser(ctx, UserFilter{ID: c.UserID})
	if err != nil {
		return nil, err
	}
	newEmail := c.Data
	if err := s.Store.UpdateUser(ctx, u, UserUpdates{Email: &newEmail}); err != nil {
		return nil, err
	}
	if err := s.confirmations.Consume(ctx, c); err != nil {
		return nil, err
	}
	return &ConfirmResult{
		Action:       c.Action,
		Confirmation: c,
		Outcome: &Outcome{
			Flash:    []string{s.Config.Messages.EmailChanged},
			Redirect: s.Config.ChangeEmailURL,
		},
	}, nil
}
