package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "smartyedu.docstore.v1.DocumentStore"

// Full method names, as seen by interceptors.
const (
	UpsertMethod = "/" + ServiceName + "/Upsert"
	GetMethod    = "/" + ServiceName + "/Get"
	PingMethod   = "/" + ServiceName + "/Ping"
)

// DocumentStoreServer is implemented by the remote store.
type DocumentStoreServer interface {
	Upsert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Ping(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
}

// RegisterDocumentStoreServer registers srv on s.
func RegisterDocumentStoreServer(s grpc.ServiceRegistrar, srv DocumentStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the DocumentStore service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Upsert", Handler: upsertHandler},
		{MethodName: "Get", Handler: getHandler},
		{MethodName: "Ping", Handler: pingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/rpc/service.go",
}

func upsertHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentStoreServer).Upsert(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: UpsertMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentStoreServer).Upsert(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentStoreServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentStoreServer).Get(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func pingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocumentStoreServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocumentStoreServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// DocumentStoreClient calls the DocumentStore service over cc.
type DocumentStoreClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentStoreClient(cc grpc.ClientConnInterface) *DocumentStoreClient {
	return &DocumentStoreClient{cc: cc}
}

func (c *DocumentStoreClient) Upsert(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, UpsertMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DocumentStoreClient) Get(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DocumentStoreClient) Ping(ctx context.Context, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, PingMethod, &emptypb.Empty{}, new(emptypb.Empty), opts...)
}
