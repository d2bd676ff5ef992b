package grpc_test

import (
	"context"
	"fmt"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	authgrpc "github.com/panyam/authkit/grpc"
)

func verifyStub(token string) (string, error) {
	if token == "valid-token" {
		return "user-42", nil
	}
	return "", fmt.Errorf("bad token")
}

func callUnary(t *testing.T, interceptor grpc.UnaryServerInterceptor, ctx context.Context, method string) (string, error) {
	t.Helper()
	var seenUserID string
	handler := func(ctx context.Context, req any) (any, error) {
		seenUserID = authgrpc.UserIDFromContext(ctx)
		return "ok", nil
	}
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
	return seenUserID, err
}

func TestUnaryInterceptorRequiresAuth(t *testing.T) {
	interceptor := authgrpc.UnaryAuthInterceptor(authgrpc.NewInterceptorConfig(verifyStub))

	_, err := callUnary(t, interceptor, context.Background(), "/svc/Method")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Expected Unauthenticated, got %v", err)
	}

	md := metadata.Pairs("authorization", "Bearer valid-token")
	userID, err := callUnary(t, interceptor, metadata.NewIncomingContext(context.Background(), md), "/svc/Method")
	if err != nil {
		t.Fatalf("Expected success with a valid token, got %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("Expected user id in context, got %q", userID)
	}

	md = metadata.Pairs("authorization", "Bearer forged")
	_, err = callUnary(t, interceptor, metadata.NewIncomingContext(context.Background(), md), "/svc/Method")
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("Expected Unauthenticated for a bad token, got %v", err)
	}
}

func TestUnaryInterceptorPublicMethods(t *testing.T) {
	interceptor := authgrpc.UnaryAuthInterceptor(
		authgrpc.NewInterceptorConfig(verifyStub, "/svc/Public"))

	userID, err := callUnary(t, interceptor, context.Background(), "/svc/Public")
	if err != nil {
		t.Fatalf("Expected public method to pass, got %v", err)
	}
	if userID != "" {
		t.Fatalf("Expected anonymous context, got %q", userID)
	}
}

func TestUnaryInterceptorOptionalAuth(t *testing.T) {
	interceptor := authgrpc.UnaryAuthInterceptor(authgrpc.OptionalAuthConfig(verifyStub))

	userID, err := callUnary(t, interceptor, context.Background(), "/svc/Method")
	if err != nil {
		t.Fatalf("Expected anonymous request to pass, got %v", err)
	}
	if userID != "" {
		t.Fatalf("Expected no user id, got %q", userID)
	}
}

func TestTrustedUserIDMetadata(t *testing.T) {
	config := authgrpc.NewInterceptorConfig(verifyStub)
	config.Config.TrustUserIDMetadata = true
	interceptor := authgrpc.UnaryAuthInterceptor(config)

	md := metadata.Pairs("x-user-id", "user-7")
	userID, err := callUnary(t, interceptor, metadata.NewIncomingContext(context.Background(), md), "/svc/Method")
	if err != nil {
		t.Fatalf("Expected trusted metadata to pass, got %v", err)
	}
	if userID != "user-7" {
		t.Fatalf("Expected trusted user id, got %q", userID)
	}
}
