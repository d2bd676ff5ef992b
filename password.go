package authkit

import (
	"context"
	"errors"
)

// RequestPasswordReset issues a reset confirmation and mails its link.
// While a live reset confirmation exists the request is refused, which
// bounds the mail volume a stranger can trigger for an address. A failed
// send deletes the fresh confirmation so the user is not locked out of
// retrying.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*Outcome, error) {
	u, err := s.Store.GetUser(ctx, UserFilter{Email: email})
	if errors.Is(err, ErrUserNotFound) {
		return fieldError("email", s.Config.Messages.UnknownEmail), nil
	}
	if err != nil {
		return nil, err
	}

	switch err := u.LoginAllowed(); {
	case errors.Is(err, ErrUserBanned):
		return fieldError("email", s.Config.Messages.UserBanned), nil
	case errors.Is(err, ErrActivationRequired):
		return fieldError("email", s.Config.Messages.ActivationRequired), nil
	case err != nil:
		return nil, err
	}

	allowed, err := s.confirmations.IssuanceAllowed(ctx, u, ActionResetPassword)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return fieldError("email", s.Config.Messages.OftenResetPassword), nil
	}

	c, err := s.confirmations.Issue(ctx, u, ActionResetPassword, "")
	if err != nil {
		return nil, err
	}
	subject, body := resetPasswordMail(c.Link(s.Config.BaseURL))
	if err := s.sendMail(ctx, u.Email, subject, body); err != nil {
		if derr := s.Store.DeleteConfirmation(ctx, c); derr != nil {
			s.Logger.Error("rollback: delete confirmation failed", "code", c.Code, "error", derr)
		}
		return fieldError("", s.Config.Messages.CantSendMail), nil
	}

	return &Outcome{Redirect: s.Config.ResetPasswordRequestedURL}, nil
}

// ResetPassword sets a new password for the user behind a valid reset
// confirmation, consumes it and logs the user in.
func (s *Service) ResetPassword(ctx context.Context, c *Confirmation, password, confirm string) (*Outcome, error) {
	fe := FieldErrors{}
	s.validatePassword(fe, password, confirm)
	if len(fe) > 0 {
		return &Outcome{FieldErrors: fe}, nil
	}

	u, err := s.Store.GetUser(ctx, UserFilter{ID: c.UserID})
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.Store.UpdateUser(ctx, u, UserUpdates{PasswordHash: &hash}); err != nil {
		return nil, err
	}
	if err := s.confirmations.Consume(ctx, c); err != nil {
		return nil, err
	}

	return &Outcome{
		User:     u,
		Flash:    []string{s.Config.Messages.PasswordChanged, s.Config.Messages.LoggedIn},
		Redirect: s.Config.LoginRedirect,
	}, nil
}

// ChangePassword changes the password of a logged-in user after verifying
// the current one.
func (s *Service) ChangePassword(ctx context.Context, u *User, current, password, confirm string) (*Outcome, error) {
	fe := FieldErrors{}
	if !checkPassword(u.PasswordHash, current) {
		fe.Add("current_password", s.Config.Messages.WrongPassword)
	}
	s.validatePassword(fe, password, confirm)
	if len(fe) > 0 {
		return &Outcome{FieldErrors: fe}, nil
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.Store.UpdateUser(ctx, u, UserUpdates{PasswordHash: &hash}); err != nil {
		return nil, err
	}

	return &Outcome{
		Flash:    []string{s.Config.Messages.PasswordChanged},
		Redirect: s.Config.ChangePasswordURL,
	}, nil
}
