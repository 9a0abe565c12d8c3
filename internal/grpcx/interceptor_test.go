package grpcx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/auth"
	"github.com/dmitrijs2005/pgkit/internal/common"
	"github.com/dmitrijs2005/pgkit/internal/logging"
)

const protectedMethod = "/pgkit.Records/Upsert"

func newTestInterceptors(secret string) *Interceptors {
	return NewInterceptors(logging.Nop{}, []byte(secret), protectedMethod)
}

func TestInterceptor_Unprotected_AllowsWithoutToken(t *testing.T) {
	i := newTestInterceptors("secret")

	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/OtherMethod"}
	handlerCalled := false

	h := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		if _, ok := audit.ActorFromContext(ctx); ok {
			t.Fatal("no actor expected")
		}
		return "ok", nil
	}

	resp, err := i.actorUnary(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_Protected_MissingToken(t *testing.T) {
	i := newTestInterceptors("secret")
	info := &grpc.UnaryServerInfo{FullMethod: protectedMethod}

	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := i.actorUnary(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "missing token" {
		t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
	}
}

func TestInterceptor_InvalidToken(t *testing.T) {
	i := newTestInterceptors("secret")

	md := metadata.New(map[string]string{common.AccessTokenHeaderName: "not-a-valid-jwt"})
	ctx := metadata.NewIncomingContext(context.Background(), md)

	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called for invalid token")
		return nil, nil
	}

	for _, method := range []string{protectedMethod, "/pkg.Service/OtherMethod"} {
		_, err := i.actorUnary(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, h)
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("%s: expected Unauthenticated, got %v", method, status.Code(err))
		}
	}
}

func TestInterceptor_ExpiredToken(t *testing.T) {
	secret := "secret"
	i := newTestInterceptors(secret)

	token, err := auth.GenerateToken("a1", []byte(secret), -time.Second)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.New(map[string]string{common.AccessTokenHeaderName: token}))

	_, err = i.actorUnary(ctx, nil, &grpc.UnaryServerInfo{FullMethod: protectedMethod},
		func(context.Context, any) (any, error) { return nil, nil })
	if status.Convert(err).Message() != "token expired" {
		t.Fatalf("expected 'token expired', got %v", err)
	}
}

func TestInterceptor_ValidToken_SetsActor(t *testing.T) {
	secret := "super-secret"
	i := newTestInterceptors(secret)

	actorID := "actor-123"
	token, err := auth.GenerateToken(actorID, []byte(secret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	ctx := metadata.NewIncomingContext(context.Background(),
		metadata.New(map[string]string{common.AccessTokenHeaderName: token}))
	info := &grpc.UnaryServerInfo{FullMethod: protectedMethod}

	var got string
	h := func(ctx context.Context, req any) (any, error) {
		got, _ = audit.ActorFromContext(ctx)
		return "ok", nil
	}

	resp, err := i.actorUnary(ctx, nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
	if got != actorID {
		t.Fatalf("actor not propagated in context: got %v want %v", got, actorID)
	}
}

func TestLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	i := NewInterceptors(logging.NewZapLogger(zap.New(core)), nil)

	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/M"}
	_, _ = i.logUnary(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	_, _ = i.logUnary(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Internal, "boom")
	})
	_, _ = i.logUnary(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, errors.New("plain")
	})

	ok := logs.FilterMessage("grpc request").All()
	if len(ok) != 1 {
		t.Fatalf("want 1 info entry, got %d", len(ok))
	}
	if ok[0].ContextMap()["code"] != "OK" {
		t.Fatalf("unexpected code: %v", ok[0].ContextMap()["code"])
	}

	failed := logs.FilterMessage("grpc request failed").All()
	if len(failed) != 2 {
		t.Fatalf("want 2 error entries, got %d", len(failed))
	}
	if failed[1].ContextMap()["code"] != "Unknown" {
		t.Fatalf("plain errors map to Unknown, got %v", failed[1].ContextMap()["code"])
	}
}

func TestLoggingInterceptor_RequestSize(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	i := NewInterceptors(logging.NewZapLogger(zap.New(core)), nil)

	req := &healthpb.HealthCheckRequest{Service: "pgkit"}
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	_, _ = i.logUnary(context.Background(), req, info, func(context.Context, any) (any, error) {
		return nil, nil
	})

	entries := logs.FilterMessage("grpc request").All()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	// tag byte, length byte, 5 bytes of "pgkit"
	if got := fmt.Sprint(entries[0].ContextMap()["req_bytes"]); got != "7" {
		t.Fatalf("req_bytes = %s, want 7", got)
	}
}
