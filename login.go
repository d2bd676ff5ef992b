package authkit

import (
	"context"
	"errors"
)

// Login authenticates email/password. The error messages deliberately
// distinguish an unknown email from a wrong password. backTo, when
// non-empty, overrides the configured post-login redirect.
func (s *Service) Login(ctx context.Context, email, password, backTo string) (*Outcome, error) {
	u, err := s.Store.GetUser(ctx, UserFilter{Email: email})
	if errors.Is(err, ErrUserNotFound) {
		return fieldError("email", s.Config.Messages.UnknownEmail), nil
	}
	if err != nil {
		return nil, err
	}

	if !checkPassword(u.PasswordHash, password) {
		return fieldError("password", s.Config.Messages.WrongPassword), nil
	}

	switch err := u.LoginAllowed(); {
	case errors.Is(err, ErrUserBanned):
		return fieldError("email", s.Config.Messages.UserBanned), nil
	case errors.Is(err, ErrActivationRequired):
		return fieldError("email", s.Config.Messages.ActivationRequired), nil
	case err != nil:
		return nil, err
	}

	redirect := backTo
	if redirect == "" {
		redirect = s.Config.LoginRedirect
	}
	return &Outcome{
		User:     u,
		Flash:    []string{s.Config.Messages.LoggedIn},
		Redirect: redirect,
	}, nil
}

// Logout produces the post-logout outcome. Tearing down the session is
// the caller's business.
func (s *Service) Logout() *Outcome {
	return &Outcome{
		Flash:    []string{s.Config.Messages.LoggedOut},
		Redirect: s.Config.LogoutRedirect,
	}
}
