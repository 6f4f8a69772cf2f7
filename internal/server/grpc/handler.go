package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/rpc"
	"github.com/dmitrijs2005/smartyedu/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Upsert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := rpc.DecodeUpsertRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Debug(ctx, "Upsert request", "collection", req.Collection, "key", req.Key)

	doc, err := s.documents.Upsert(ctx, req)
	if err != nil {
		return nil, s.mapError(ctx, "upsert", err)
	}
	return encodeDocument(doc)
}

func (s *GRPCServer) Get(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := rpc.DecodeGetRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	doc, err := s.documents.Get(ctx, req.Collection, req.Key)
	if err != nil {
		return nil, s.mapError(ctx, "get", err)
	}
	return encodeDocument(doc)
}

func (s *GRPCServer) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

func encodeDocument(doc *models.Document) (*structpb.Struct, error) {
	out, err := rpc.Document{Key: doc.Key, Fields: doc.Data, UpdatedAt: doc.UpdatedAt}.Encode()
	if err != nil {
		return nil, status.Error(codes.Internal, "encode document")
	}
	return out, nil
}

// mapError turns service errors into status codes. Storage failures become
// Unavailable so that clients retry them.
func (s *GRPCServer) mapError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error(ctx, op+" failed", "error", err)
		return status.Error(codes.Unavailable, "storage unavailable")
	}
}
