package auth

import (
	"context"
	"strings"

	authcore "github.com/NordCoder/AuthServer/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey int

const claimsKey ctxKey = 1

func ClaimsFromCtx(ctx context.Context) (authcore.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(authcore.Claims)
	return c, ok
}

var publicFullMethods = map[string]bool{
	MethodLogin:    true,
	MethodRegister: true,
	MethodPing:     true,
}

func UnaryAuthInterceptor(parse func(token string) (authcore.Claims, error)) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (interface{}, error) {
		if publicFullMethods[info.FullMethod] {
			return next(ctx, req)
		}

		token := bearer(ctx)
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		claims, err := parse(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		ctx = context.WithValue(ctx, claimsKey, claims)
		return next(ctx, req)
	}
}

func bearer(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("authorization"); len(vals) > 0 {
			v := vals[0]
			if strings.HasPrefix(strings.ToLower(v), "bearer ") {
				return strings.TrimSpace(v[7:])
			}
			return v
		}
	}
	return ""
}
