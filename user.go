package authkit

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a user account.
type Status string

const (
	// StatusConfirmation means the account is pending email verification
	// and cannot log in yet.
	StatusConfirmation Status = "confirmation"
	// StatusActive is a normal, usable account.
	StatusActive Status = "active"
	// StatusBanned means the account cannot log in or reset its password.
	// The core never sets this status; it is written externally (admin
	// action) and only read here.
	StatusBanned Status = "banned"
)

// Supported social login providers.
const (
	ProviderGoogle    = "google"
	ProviderVkontakte = "vkontakte"
	ProviderFacebook  = "facebook"
)

// Providers lists all supported social login providers.
func Providers() []string {
	return []string{ProviderGoogle, ProviderVkontakte, ProviderFacebook}
}

// User is a local account. It is owned by Storage and mutated only through
// explicit Storage.UpdateUser calls issued by the flows.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`

	// PasswordHash is a bcrypt hash. It is never empty: social-only
	// accounts get a hash of a random, undistributed password so that
	// password login stays unusable until an explicit reset.
	PasswordHash string `json:"password_hash"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	CreatedIP string    `json:"created_ip"`

	// ProviderIDs maps a provider name (google, vkontakte, facebook) to
	// the user's external id at that provider.
	ProviderIDs map[string]string `json:"provider_ids,omitempty"`
}

// ProviderID returns the external id linked for provider, if any.
func (u *User) ProviderID(provider string) string {
	if u.ProviderIDs == nil {
		return ""
	}
	return u.ProviderIDs[provider]
}

// LoginAllowed reports whether the account status permits login or a
// password reset request. Banned and pending accounts are rejected with
// distinct errors so the caller can surface distinct messages.
func (u *User) LoginAllowed() error {
	switch u.Status {
	case StatusActive:
		return nil
	case StatusBanned:
		return ErrUserBanned
	case StatusConfirmation:
		return ErrActivationRequired
	default:
		return fmt.Errorf("unknown user status %q", u.Status)
	}
}

// IsAdmin reports whether the user's email is on the configured admin
// allow-list. The comparison is case-insensitive.
func IsAdmin(u *User, cfg *Config) bool {
	if u == nil {
		return false
	}
	return slices.ContainsFunc(cfg.AdminEmails, func(e string) bool {
		return strings.EqualFold(e, u.Email)
	})
}
