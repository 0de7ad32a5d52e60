package main

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/auth"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/data"
)

// context key type for storing auth claims in context
type authContextKey struct{}

// getClaimsFromContext extracts auth claims from the context, if present.
func getClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return nil, false
	}
	c, ok := v.(*auth.Claims)
	return c, ok
}

// caller is the verified identity behind a request.
type caller struct {
	Role data.Role
	Name string
	ID   string // token subject; rate limits are charged to it
}

// callerFromContext reads the caller placed in ctx by the auth interceptors.
func callerFromContext(ctx context.Context) (caller, error) {
	claims, ok := getClaimsFromContext(ctx)
	if !ok {
		return caller{}, status.Errorf(codes.Unauthenticated, "missing auth claims")
	}
	role, err := data.ParseRole(claims.Role)
	if err != nil {
		return caller{}, status.Errorf(codes.PermissionDenied, "token carries no usable role")
	}
	return caller{Role: role, Name: claims.Name, ID: claims.Subject}, nil
}

// rateLimitKey charges SendMessage calls to the token subject, or to the
// display name and role when the issuer sets no subject.
func rateLimitKey(ctx context.Context, _ interface{}) string {
	c, err := callerFromContext(ctx)
	if err != nil {
		return ""
	}
	if c.ID != "" {
		return "sub:" + c.ID
	}
	return "name:" + string(c.Role) + ":" + c.Name
}

// tokenFromMetadata extracts the bearer token from the authorization header.
func tokenFromMetadata(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Errorf(codes.Unauthenticated, "missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return "", status.Errorf(codes.Unauthenticated, "missing authorization header")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeaders[0], "Bearer"))
	if token == "" {
		return "", status.Errorf(codes.Unauthenticated, "invalid token")
	}
	return token, nil
}

// authUnaryInterceptor returns a UnaryServerInterceptor that enforces JWT
// authentication on every method.
func authUnaryInterceptor(j *auth.JWTManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token, err := tokenFromMetadata(ctx)
		if err != nil {
			return nil, err
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
		}

		// attach claims into context for handlers
		ctx = context.WithValue(ctx, authContextKey{}, claims)
		return handler(ctx, req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(j *auth.JWTManager) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		token, err := tokenFromMetadata(ss.Context())
		if err != nil {
			return err
		}

		claims, err := j.VerifyToken(token)
		if err != nil {
			return status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
		}

		// wrap stream context with claims
		newCtx := context.WithValue(ss.Context(), authContextKey{}, claims)
		wrapped := grpcmiddlewareServerStream{ServerStream: ss, ctx: newCtx}
		return handler(srv, wrapped)
	}
}

// grpcmiddlewareServerStream wraps grpc.ServerStream to override Context()
type grpcmiddlewareServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context (with claims)
func (g grpcmiddlewareServerStream) Context() context.Context { return g.ctx }
