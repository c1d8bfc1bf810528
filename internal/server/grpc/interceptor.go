package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/dmitrijs2005/campusgate/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Authenticator checks an access token and resolves its subject.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (auth.Identity, *auth.Token, error)
}

// publicMethodPrefix marks methods served without a token.
const publicMethodPrefix = "/grpc.health.v1.Health/"

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if strings.HasPrefix(info.FullMethod, publicMethodPrefix) {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.GRPCAuthorizationKey); len(values) > 0 {
			accessToken = common.BearerToken(values[0])
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	id, tok, err := s.auth.Authenticate(ctx, accessToken)
	if err != nil {
		s.logger.Debug(ctx, "rpc rejected", "method", info.FullMethod, "reason", err.Error())
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	ctx = auth.ContextWithIdentity(ctx, id, tok, accessToken)
	return handler(ctx, req)
}
