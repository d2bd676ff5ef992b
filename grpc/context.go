// Package grpc lets gRPC services authenticate requests with the same
// token authkit mints at login: an interceptor verifies the bearer token
// from the request metadata and exposes the user id to handlers.
package grpc

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// Default metadata keys. These can be customized via Config if needed.
const (
	// DefaultMetadataKeyAuthorization carries the bearer token.
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultMetadataKeyUserID carries an already-verified user id, for
	// calls forwarded by a trusted frontend that did the verification.
	DefaultMetadataKeyUserID = "x-user-id"
)

type userIDContextKey struct{}

// Config holds the metadata key configuration.
type Config struct {
	// MetadataKeyAuthorization is the metadata key checked for a bearer
	// token. Defaults to "authorization".
	MetadataKeyAuthorization string

	// MetadataKeyUserID is the metadata key checked for a pre-verified
	// user id. Defaults to "x-user-id".
	MetadataKeyUserID string

	// TrustUserIDMetadata, when true, accepts MetadataKeyUserID without a
	// token. Enable only behind a frontend that strips the key from
	// client traffic.
	TrustUserIDMetadata bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		MetadataKeyAuthorization: DefaultMetadataKeyAuthorization,
		MetadataKeyUserID:        DefaultMetadataKeyUserID,
	}
}

// EnsureDefaults fills in default values for any unset fields.
func (c *Config) EnsureDefaults() {
	if c.MetadataKeyAuthorization == "" {
		c.MetadataKeyAuthorization = DefaultMetadataKeyAuthorization
	}
	if c.MetadataKeyUserID == "" {
		c.MetadataKeyUserID = DefaultMetadataKeyUserID
	}
}

// UserIDFromContext returns the authenticated user id placed in the
// context by the interceptor, or "" when the request is anonymous.
func UserIDFromContext(ctx context.Context) string {
	if v := ctx.Value(userIDContextKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// IsAuthenticated reports whether the context carries an authenticated
// user.
func IsAuthenticated(ctx context.Context) bool {
	return UserIDFromContext(ctx) != ""
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// TokenToOutgoingContext attaches a bearer token for an outgoing call.
func TokenToOutgoingContext(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, "Bearer "+token)
}

// UserIDToOutgoingContext attaches a pre-verified user id for an outgoing
// call between trusted services.
func UserIDToOutgoingContext(ctx context.Context, userID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyUserID, userID)
}
