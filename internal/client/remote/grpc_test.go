package remote

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/auth"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

var testSecret = []byte("test-secret")

// fakeDocStore is an in-memory rpc.DocumentStoreServer.
type fakeDocStore struct {
	mu        sync.Mutex
	docs      map[string]map[string]any
	upsertErr error
	expireN   int
	devices   []string
}

func (f *fakeDocStore) checkToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expireN > 0 {
		f.expireN--
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	}
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(common.AccessTokenHeaderName)
	if len(vals) == 0 {
		return status.Error(codes.Unauthenticated, "missing token")
	}
	id, err := auth.DeviceIDFromToken(vals[0], testSecret)
	if err != nil {
		return status.Error(codes.Unauthenticated, err.Error())
	}
	f.devices = append(f.devices, id)
	return nil
}

func (f *fakeDocStore) Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := f.checkToken(ctx); err != nil {
		return nil, err
	}
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	req, err := rpc.DecodeUpsertRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc := f.docs[req.Collection+"/"+req.Key]
	if doc == nil {
		doc = map[string]any{}
	}
	for k, v := range req.Fields {
		doc[k] = v
	}
	for _, k := range req.ServerTimestampFields {
		doc[k] = "server-time"
	}
	f.docs[req.Collection+"/"+req.Key] = doc
	return rpc.Document{Key: req.Key, Fields: doc, UpdatedAt: time.Now()}.Encode()
}

func (f *fakeDocStore) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := f.checkToken(ctx); err != nil {
		return nil, err
	}
	req, err := rpc.DecodeGetRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[req.Collection+"/"+req.Key]
	if !ok {
		return nil, status.Error(codes.NotFound, "not found")
	}
	return rpc.Document{Key: req.Key, Fields: doc}.Encode()
}

func (f *fakeDocStore) Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func newTestStore(t *testing.T, srv *fakeDocStore) *GRPCStore {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	rpc.RegisterDocumentStoreServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	store, err := NewGRPCStore("passthrough:///bufnet", NewTokenSource("dev-1", testSecret, time.Hour),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGRPCStore_UpsertMergesAndGet(t *testing.T) {
	srv := &fakeDocStore{docs: map[string]map[string]any{}}
	store := newTestStore(t, srv)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Upsert(ctx, "users", "k1", map[string]any{"pseudo": "ada"}, "syncedAt"))
	require.NoError(t, store.Upsert(ctx, "users", "k1", map[string]any{"gradeLevel": "5"}))

	doc, err := store.Get(ctx, "users", "k1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"pseudo": "ada", "gradeLevel": "5", "syncedAt": "server-time"}, doc)

	missing, err := store.Get(ctx, "users", "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Contains(t, srv.devices, "dev-1")
}

func TestGRPCStore_RetriesOnceOnExpiredToken(t *testing.T) {
	srv := &fakeDocStore{docs: map[string]map[string]any{}, expireN: 1}
	store := newTestStore(t, srv)

	require.NoError(t, store.Upsert(context.Background(), "users", "k1", map[string]any{"a": "b"}))
}

func TestGRPCStore_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"unavailable", status.Error(codes.Unavailable, "down"), true},
		{"exhausted", status.Error(codes.ResourceExhausted, "slow down"), true},
		{"permission", status.Error(codes.PermissionDenied, "no"), false},
		{"invalid", status.Error(codes.InvalidArgument, "bad"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, &fakeDocStore{docs: map[string]map[string]any{}, upsertErr: tt.err})
			err := store.Upsert(context.Background(), "users", "k1", map[string]any{"a": "b"})
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, !tt.retryable, IsTerminal(err))
		})
	}
}

func TestMapError(t *testing.T) {
	assert.True(t, IsRetryable(mapError("op", context.DeadlineExceeded)))
	assert.True(t, IsRetryable(mapError("op", errors.New("plain transport failure"))))

	err := mapError("op", status.Error(codes.Unauthenticated, "bad token"))
	assert.True(t, IsTerminal(err))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestGRPCStore_Unreachable(t *testing.T) {
	lis := bufconn.Listen(1 << 10)
	require.NoError(t, lis.Close())

	store, err := NewGRPCStore("passthrough:///bufnet", NewTokenSource("dev-1", testSecret, time.Hour),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	defer store.Close()
	store.timeout = 200 * time.Millisecond

	err = store.Ping(context.Background())
	assert.True(t, IsRetryable(err), "%v", err)
}
