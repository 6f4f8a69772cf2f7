package grpc

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/auth"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newInterceptorServer() *GRPCServer {
	return NewGRPCServer("", logging.Discard(), newMemDocuments(), testSecret, nil)
}

func incoming(token string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, token))
}

func TestAccessTokenInterceptor_PingIsOpen(t *testing.T) {
	s := newInterceptorServer()
	called := false
	_, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: rpc.PingMethod},
		func(ctx context.Context, req any) (any, error) {
			called = true
			return nil, nil
		})
	if err != nil || !called {
		t.Fatalf("ping should pass through, err=%v called=%v", err, called)
	}
}

func TestAccessTokenInterceptor_MissingToken(t *testing.T) {
	s := newInterceptorServer()
	_, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: rpc.UpsertMethod},
		func(ctx context.Context, req any) (any, error) {
			t.Fatal("handler must not be called")
			return nil, nil
		})
	st, _ := status.FromError(err)
	if st.Code() != codes.Unauthenticated || st.Message() != "missing token" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccessTokenInterceptor_ExpiredToken(t *testing.T) {
	s := newInterceptorServer()
	token, err := auth.GenerateToken("device-1", []byte(testSecret), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	_, err = s.accessTokenInterceptor(incoming(token), nil, &grpc.UnaryServerInfo{FullMethod: rpc.GetMethod},
		func(ctx context.Context, req any) (any, error) { return nil, nil })

	st, _ := status.FromError(err)
	if st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccessTokenInterceptor_InvalidToken(t *testing.T) {
	s := newInterceptorServer()
	_, err := s.accessTokenInterceptor(incoming("garbage"), nil, &grpc.UnaryServerInfo{FullMethod: rpc.GetMethod},
		func(ctx context.Context, req any) (any, error) { return nil, nil })

	st, _ := status.FromError(err)
	if st.Code() != codes.Unauthenticated || st.Message() != common.ErrInvalidToken.Error() {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAccessTokenInterceptor_ValidTokenTagsHandlerLogs(t *testing.T) {
	s := newInterceptorServer()
	token, err := auth.GenerateToken("device-7", []byte(testSecret), time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var buf bytes.Buffer
	l, err := logging.New("text", &buf)
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	_, err = s.accessTokenInterceptor(incoming(token), nil, &grpc.UnaryServerInfo{FullMethod: rpc.UpsertMethod},
		func(ctx context.Context, req any) (any, error) {
			l.Info(ctx, "handled")
			return nil, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "device_id=device-7") {
		t.Fatalf("handler log lacks device id: %q", buf.String())
	}
}
