package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// VerifyTokenFunc validates a bearer token and returns the user id it
// asserts. Wire this to the JWT verification of the HTTP glue so both
// surfaces accept the same tokens.
type VerifyTokenFunc func(token string) (userID string, err error)

// InterceptorConfig configures the auth interceptor behavior.
type InterceptorConfig struct {
	// Config holds the metadata key configuration.
	*Config

	// VerifyToken validates bearer tokens. Required unless
	// TrustUserIDMetadata is set.
	VerifyToken VerifyTokenFunc

	// RequireAuth when true rejects unauthenticated requests.
	// When false, requests proceed but UserIDFromContext returns "".
	RequireAuth bool

	// PublicMethods is a set of method names that don't require auth.
	// Only used when RequireAuth is true.
	// Keys should be full method names like "/package.Service/Method".
	PublicMethods map[string]bool
}

// NewInterceptorConfig returns a config that requires auth for all
// methods except the given ones.
func NewInterceptorConfig(verify VerifyTokenFunc, publicMethods ...string) *InterceptorConfig {
	config := &InterceptorConfig{
		Config:        DefaultConfig(),
		VerifyToken:   verify,
		RequireAuth:   true,
		PublicMethods: make(map[string]bool),
	}
	for _, method := range publicMethods {
		config.PublicMethods[method] = true
	}
	return config
}

// OptionalAuthConfig returns a config that allows unauthenticated
// requests through while still resolving the user id when present.
func OptionalAuthConfig(verify VerifyTokenFunc) *InterceptorConfig {
	return &InterceptorConfig{
		Config:      DefaultConfig(),
		VerifyToken: verify,
		RequireAuth: false,
	}
}

// UnaryAuthInterceptor returns a unary interceptor that authenticates
// requests from their metadata and stores the user id in the context.
func UnaryAuthInterceptor(config *InterceptorConfig) grpc.UnaryServerInterceptor {
	config = ensureInterceptorConfig(config)

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		userID := config.resolveUserID(ctx)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] && userID == "" {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(withUserID(ctx, userID), req)
	}
}

// StreamAuthInterceptor returns the stream counterpart of
// UnaryAuthInterceptor.
func StreamAuthInterceptor(config *InterceptorConfig) grpc.StreamServerInterceptor {
	config = ensureInterceptorConfig(config)

	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		userID := config.resolveUserID(ctx)

		if config.RequireAuth && !config.PublicMethods[info.FullMethod] && userID == "" {
			return status.Error(codes.Unauthenticated, "authentication required")
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: withUserID(ctx, userID)})
	}
}

func ensureInterceptorConfig(config *InterceptorConfig) *InterceptorConfig {
	if config == nil {
		config = &InterceptorConfig{RequireAuth: true}
	}
	if config.Config == nil {
		config.Config = DefaultConfig()
	}
	config.Config.EnsureDefaults()
	if config.PublicMethods == nil {
		config.PublicMethods = make(map[string]bool)
	}
	return config
}

// resolveUserID authenticates the request metadata: a verified bearer
// token wins, then the trusted user id key if enabled.
func (config *InterceptorConfig) resolveUserID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}

	if config.VerifyToken != nil {
		for _, value := range md.Get(config.Config.MetadataKeyAuthorization) {
			token := strings.TrimPrefix(value, "Bearer ")
			if token == "" {
				continue
			}
			if userID, err := config.VerifyToken(token); err == nil && userID != "" {
				return userID
			}
		}
	}

	if config.Config.TrustUserIDMetadata {
		if values := md.Get(config.Config.MetadataKeyUserID); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context {
	return w.ctx
}
