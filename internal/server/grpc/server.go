// Package grpc exposes the document store over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/rpc"
	"github.com/dmitrijs2005/smartyedu/internal/server/models"
	"google.golang.org/grpc"
)

// DocumentService is the business layer behind the handlers.
type DocumentService interface {
	Upsert(ctx context.Context, req rpc.UpsertRequest) (*models.Document, error)
	Get(ctx context.Context, collection, key string) (*models.Document, error)
}

type GRPCServer struct {
	address   string
	documents DocumentService
	logger    logging.Logger
	jwtSecret []byte
	metrics   *Metrics
}

var _ rpc.DocumentStoreServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, ds DocumentService, secretKey string, m *Metrics) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		documents: ds,
		jwtSecret: []byte(secretKey),
		metrics:   m,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{}
	if s.metrics != nil {
		interceptors = append(interceptors, s.metrics.UnaryInterceptor)
	}
	interceptors = append(interceptors, s.accessTokenInterceptor)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	rpc.RegisterDocumentStoreServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
