package authkit

import "errors"

var (
	// ErrUserNotFound is returned by Storage when no user matches a filter.
	ErrUserNotFound = errors.New("user not found")
	// ErrConfirmationNotFound is returned by Storage when no confirmation
	// matches a filter, and by Confirmations.Lookup for expired codes.
	ErrConfirmationNotFound = errors.New("confirmation not found")
	// ErrEmailExists is returned when registering with an email already
	// bound to a live account.
	ErrEmailExists = errors.New("email already registered")
	// ErrUnknownEmail is returned when a login or reset request names an
	// email with no account.
	ErrUnknownEmail = errors.New("email not registered")
	// ErrWrongPassword is returned when a password check fails.
	ErrWrongPassword = errors.New("wrong password")
	// ErrUserBanned is returned when a banned user attempts login or reset.
	ErrUserBanned = errors.New("user is banned")
	// ErrActivationRequired is returned when a user who has not confirmed
	// their registration attempts login or reset.
	ErrActivationRequired = errors.New("account activation required")
	// ErrResetTooOften is returned when a reset is requested while an
	// earlier reset confirmation is still live.
	ErrResetTooOften = errors.New("reset password requested too often")
	// ErrAuthFailed is returned when a social provider yields no usable
	// identity assertion.
	ErrAuthFailed = errors.New("authorization failed")
	// ErrNotAuthenticated is returned by flows that require a logged in user.
	ErrNotAuthenticated = errors.New("not authenticated")
)
