package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// DefaultCallTimeout bounds a single remote call.
const DefaultCallTimeout = 12 * time.Second

// GRPCStore is a Store backed by the rpc.DocumentStore service.
type GRPCStore struct {
	conn    *grpc.ClientConn
	client  *rpc.DocumentStoreClient
	tokens  *TokenSource
	timeout time.Duration
}

var _ Store = (*GRPCStore)(nil)

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

// accessTokenInterceptor attaches the device token and retries once with a
// fresh token when the server reports it expired.
func (s *GRPCStore) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	token, err := s.tokens.Token()
	if err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}

	err = invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	s.tokens.Invalidate()
	if token, err = s.tokens.Token(); err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	return invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
}

// NewGRPCStore dials endpoint lazily; no I/O happens until the first call.
func NewGRPCStore(endpoint string, tokens *TokenSource, opts ...grpc.DialOption) (*GRPCStore, error) {
	s := &GRPCStore{tokens: tokens, timeout: DefaultCallTimeout}

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpoint, dialOpts...)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.client = rpc.NewDocumentStoreClient(conn)
	return s, nil
}

func (s *GRPCStore) Close() error {
	return s.conn.Close()
}

func (s *GRPCStore) Upsert(ctx context.Context, collection, key string, fields map[string]any, serverTimestampFields ...string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := rpc.UpsertRequest{
		Collection:            collection,
		Key:                   key,
		Fields:                fields,
		ServerTimestampFields: serverTimestampFields,
	}.Encode()
	if err != nil {
		return terminal("upsert", err)
	}

	if _, err := s.client.Upsert(ctx, req); err != nil {
		return mapError("upsert", err)
	}
	return nil
}

func (s *GRPCStore) Get(ctx context.Context, collection, key string) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := rpc.GetRequest{Collection: collection, Key: key}.Encode()
	if err != nil {
		return nil, terminal("get", err)
	}

	resp, err := s.client.Get(ctx, req)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, mapError("get", err)
	}
	doc, err := rpc.DecodeDocument(resp)
	if err != nil {
		return nil, terminal("get", err)
	}
	return doc.Fields, nil
}

func (s *GRPCStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		return mapError("ping", err)
	}
	return nil
}

// mapError classifies a gRPC failure.
func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return unavailable(op, err)
	}
	st, ok := status.FromError(err)
	if !ok {
		return unavailable(op, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Canceled:
		return unavailable(op, err)
	case codes.Unauthenticated, codes.PermissionDenied:
		return terminal(op, fmt.Errorf("%w: %v", common.ErrorUnauthorized, st.Message()))
	default:
		return terminal(op, err)
	}
}
