package authkit

import (
	"context"
	"crypto/rand"
	"fmt"
)

// UserFilter selects a single user. Exactly one of ID, Email or the
// Provider/ProviderID pair should be set. Email lookups are case-sensitive,
// matching what is stored.
type UserFilter struct {
	ID         string
	Email      string
	Provider   string
	ProviderID string
}

// ConfirmationFilter selects a single confirmation, either by its unique
// code or by the (user, action) pair.
type ConfirmationFilter struct {
	Code   string
	UserID string
	Action Action
}

// UserUpdates names the fields an update operation may change. Nil fields
// are left untouched. Provider links are added via ProviderLink.
type UserUpdates struct {
	Email        *string
	Name         *string
	PasswordHash *string
	Status       *Status
	ProviderLink *ProviderLink
}

// ProviderLink binds an external provider id to a user.
type ProviderLink struct {
	Provider   string
	ExternalID string
}

// Storage is the persistence collaborator. Implementations exist for a
// relational database (stores/gorm), a document store (stores/gae) and the
// filesystem (stores). Not-found lookups return ErrUserNotFound or
// ErrConfirmationNotFound. Storage owns durability and atomicity of the
// individual operations; the core performs no in-process locking.
type Storage interface {
	// GetUser returns the user matching the filter.
	GetUser(ctx context.Context, f UserFilter) (*User, error)

	// CreateUser persists a new user, assigning ID and CreatedAt when
	// unset, and returns the stored record.
	CreateUser(ctx context.Context, u *User) (*User, error)

	// UpdateUser applies the named updates to the stored record and to u.
	UpdateUser(ctx context.Context, u *User, updates UserUpdates) error

	// DeleteUser removes the user and every confirmation it owns.
	DeleteUser(ctx context.Context, u *User) error

	// CreateConfirmation persists a new confirmation for the user with a
	// fresh globally-unique code (generate, check-exists, retry).
	CreateConfirmation(ctx context.Context, u *User, action Action, data string) (*Confirmation, error)

	// GetConfirmation returns the confirmation matching the filter.
	GetConfirmation(ctx context.Context, f ConfirmationFilter) (*Confirmation, error)

	// DeleteConfirmation removes the confirmation. Deleting an absent
	// confirmation is not an error.
	DeleteConfirmation(ctx context.Context, c *Confirmation) error

	// UserSessionID serializes the user's identity for a session.
	UserSessionID(u *User) string

	// UserIDFromString deserializes a session value back into a user id.
	UserIDFromString(s string) (string, error)
}

// codeAlphabet is the character set for confirmation codes and generated
// passwords: mixed-case alphanumerics.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// CodeLength is the length of generated confirmation codes.
const CodeLength = 30

// GenerateCode returns a cryptographically random string of the given
// length over the code alphabet. Uniqueness is not guaranteed by
// construction; callers persisting codes must check-and-retry.
func GenerateCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
