// Package grpcx holds the gRPC side of pgkit: unary interceptors for request
// logging and actor attribution, and a small server that exposes the health
// service behind them.
package grpcx

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/auth"
	"github.com/dmitrijs2005/pgkit/internal/common"
	"github.com/dmitrijs2005/pgkit/internal/logging"
)

// Interceptors carries the dependencies of the unary interceptors.
type Interceptors struct {
	logger    logging.Logger
	jwtSecret []byte
	protected map[string]struct{}
}

// NewInterceptors builds interceptors. Calls to a protected full method name
// (e.g. "/grpc.health.v1.Health/Check") are rejected without a valid token.
func NewInterceptors(l logging.Logger, secretKey []byte, protected ...string) *Interceptors {
	p := make(map[string]struct{}, len(protected))
	for _, m := range protected {
		p[m] = struct{}{}
	}
	return &Interceptors{
		logger:    logging.OrNop(l).With("module", "grpc"),
		jwtSecret: secretKey,
		protected: p,
	}
}

// Chain returns the server option installing logging, then actor.
func (i *Interceptors) Chain() grpc.ServerOption {
	return grpc.ChainUnaryInterceptor(i.logUnary, i.actorUnary)
}

func (i *Interceptors) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if m, ok := req.(proto.Message); ok {
		args = append(args, "req_bytes", proto.Size(m))
	}
	if err != nil && code != codes.Unauthenticated {
		i.logger.Error(ctx, "grpc request failed", append(args, "error", err)...)
	} else {
		i.logger.Info(ctx, "grpc request", args...)
	}
	return resp, err
}

// actorUnary resolves the access_token metadata into an actor id stored with
// audit.WithActor. A token that is present must be valid.
func (i *Interceptors) actorUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}

	if len(accessToken) == 0 {
		if _, ok := i.protected[info.FullMethod]; ok {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}
		return handler(ctx, req)
	}

	actorID, err := auth.ActorIDFromToken(accessToken, i.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	return handler(audit.WithActor(ctx, actorID), req)
}
