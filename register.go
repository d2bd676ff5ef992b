package authkit

import (
	"context"
	"errors"
)

// Register creates a new account for email/password. When confirmation is
// required the account starts pending and a confirmation mail goes out; a
// failed send rolls the registration back so the email address is not left
// occupied by an unreachable account. An existing pending registration
// whose confirmation has expired is reclaimed: the stale account is
// deleted and registration proceeds.
func (s *Service) Register(ctx context.Context, email, password, confirm, clientIP string) (*Outcome, error) {
	fe := FieldErrors{}
	if !validEmail(email) {
		fe.Add("email", "Invalid email address")
	}
	s.validatePassword(fe, password, confirm)
	if len(fe) > 0 {
		return &Outcome{FieldErrors: fe}, nil
	}

	existing, err := s.Store.GetUser(ctx, UserFilter{Email: email})
	switch {
	case err == nil:
		reclaimed, err := s.reclaimExpiredRegistration(ctx, existing)
		if err != nil {
			return nil, err
		}
		if !reclaimed {
			return fieldError("email", s.Config.Messages.EmailExists), nil
		}
	case !errors.Is(err, ErrUserNotFound):
		return nil, err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	status := StatusConfirmation
	if s.Config.SkipRegistrationConfirmation {
		status = StatusActive
	}
	u, err := s.Store.CreateUser(ctx, &User{
		Email:        email,
		Name:         emailLocalPart(email),
		PasswordHash: hash,
		Status:       status,
		CreatedIP:    clientIP,
	})
	if err != nil {
		return nil, err
	}

	if s.Config.SkipRegistrationConfirmation {
		return &Outcome{
			User:     u,
			Flash:    []string{s.Config.Messages.LoggedIn},
			Redirect: s.Config.LoginRedirect,
		}, nil
	}

	c, err := s.confirmations.Issue(ctx, u, ActionRegistration, "")
	if err != nil {
		return nil, err
	}
	subject, body := registrationMail(c.Link(s.Config.BaseURL))
	if err := s.sendMail(ctx, u.Email, subject, body); err != nil {
		// Roll back so a retry of the registration can succeed.
		if derr := s.Store.DeleteConfirmation(ctx, c); derr != nil {
			s.Logger.Error("rollback: delete confirmation failed", "code", c.Code, "error", derr)
		}
		if derr := s.Store.DeleteUser(ctx, u); derr != nil {
			s.Logger.Error("rollback: delete user failed", "user", u.ID, "error", derr)
		}
		return fieldError("", s.Config.Messages.CantSendMail), nil
	}

	return &Outcome{Redirect: s.Config.RegistrationRequestedURL}, nil
}

// reclaimExpiredRegistration deletes a pending account whose registration
// confirmation is missing or expired and reports whether it did.
func (s *Service) reclaimExpiredRegistration(ctx context.Context, u *User) (bool, error) {
	if u.Status != StatusConfirmation {
		return false, nil
	}
	c, err := s.Store.GetConfirmation(ctx, ConfirmationFilter{UserID: u.ID, Action: ActionRegistration})
	switch {
	case errors.Is(err, ErrConfirmationNotFound):
		// No live confirmation: the account can never be activated.
	case err != nil:
		return false, err
	case !s.confirmations.Expired(c):
		return false, nil
	default:
		if err := s.Store.DeleteConfirmation(ctx, c); err != nil {
			return false, err
		}
	}
	if err := s.Store.DeleteUser(ctx, u); err != nil {
		return false, err
	}
	return true, nil
}
