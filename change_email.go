package authkit

import (
	"context"
	"errors"
)

// ChangeEmail starts an email change for a logged-in user. The pending
// new address rides in the confirmation's Data field and the mail goes to
// the NEW address, proving the user controls it. A repeated request
// replaces any earlier pending change, so at most one is in flight and it
// carries the latest requested address.
func (s *Service) ChangeEmail(ctx context.Context, u *User, newEmail string) (*Outcome, error) {
	if !validEmail(newEmail) {
		return fieldError("email", "Invalid email address"), nil
	}
	if newEmail == u.Email {
		return fieldError("email", "This is already your email address"), nil
	}

	if other, err := s.Store.GetUser(ctx, UserFilter{Email: newEmail}); err == nil && other.ID != u.ID {
		return fieldError("email", s.Config.Messages.EmailExists), nil
	} else if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	prev, err := s.Store.GetConfirmation(ctx, ConfirmationFilter{UserID: u.ID, Action: ActionChangeEmail})
	switch {
	case err == nil:
		if err := s.Store.DeleteConfirmation(ctx, prev); err != nil {
			return nil, err
		}
	case !errors.Is(err, ErrConfirmationNotFound):
		return nil, err
	}

	c, err := s.confirmations.Issue(ctx, u, ActionChangeEmail, newEmail)
	if err != nil {
		return nil, err
	}
	subject, body := changeEmailMail(c.Link(s.Config.BaseURL))
	if err := s.sendMail(ctx, newEmail, subject, body); err != nil {
		if derr := s.Store.DeleteConfirmation(ctx, c); derr != nil {
			s.Logger.Error("rollback: delete confirmation failed", "code", c.Code, "error", derr)
		}
		return fieldError("", s.Config.Messages.CantSendMail), nil
	}

	return &Outcome{
		Flash:    []string{s.Config.Messages.ChangeEmailRequested},
		Redirect: s.Config.ChangeEmailURL,
	}, nil
}
