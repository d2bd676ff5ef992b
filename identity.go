package authkit

import (
	"context"
	"errors"
)

// Assertion is a verified identity claim from a social login provider.
// Email and Name may be empty depending on what the provider shares.
type Assertion struct {
	Provider   string
	ExternalID string
	Email      string
	Name       string
}

// ResolveIdentity maps a provider assertion onto a local user, in order:
// an account already linked to (provider, external id); otherwise an
// account with the asserted email, which gets the provider link added;
// otherwise a freshly provisioned active account. Social-login users are
// never pending confirmation, but a banned account stays banned.
func (s *Service) ResolveIdentity(ctx context.Context, a *Assertion, clientIP string) (*User, error) {
	if a == nil || a.ExternalID == "" {
		return nil, ErrAuthFailed
	}

	u, err := s.Store.GetUser(ctx, UserFilter{Provider: a.Provider, ProviderID: a.ExternalID})
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	if a.Email != "" {
		u, err = s.Store.GetUser(ctx, UserFilter{Email: a.Email})
		if err == nil {
			link := &ProviderLink{Provider: a.Provider, ExternalID: a.ExternalID}
			if err := s.Store.UpdateUser(ctx, u, UserUpdates{ProviderLink: link}); err != nil {
				return nil, err
			}
			return u, nil
		}
		if !errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
	}

	name := a.Name
	if name == "" && a.Email != "" {
		name = emailLocalPart(a.Email)
	}
	if name == "" {
		name = a.ExternalID
	}

	// A random, undistributed password keeps password login unusable for
	// this account until the user explicitly resets it.
	password, err := GenerateCode(s.Config.PasswordMaxLen)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	u = &User{
		Email:        a.Email,
		Name:         name,
		PasswordHash: hash,
		Status:       StatusActive,
		CreatedIP:    clientIP,
		ProviderIDs:  map[string]string{a.Provider: a.ExternalID},
	}
	return s.Store.CreateUser(ctx, u)
}
