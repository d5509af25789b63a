package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/rpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: rpc.StatusOK}, nil
}

func (s *GRPCServer) GetChanges(ctx context.Context, req *rpc.GetChangesRequest) (*rpc.GetChangesResponse, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	list, serverTime, err := s.items.Changes(ctx, userID, req.Since)
	if err != nil {
		s.logger.Error(ctx, "get changes failed", "user", userID, "error", err)
		return nil, toStatus(err)
	}

	resp := &rpc.GetChangesResponse{Items: make([]rpc.Item, 0, len(list)), ServerTime: serverTime}
	for _, it := range list {
		resp.Items = append(resp.Items, toRPC(it))
	}
	return resp, nil
}

// PushItem reports a lost race in-band so the winning copy reaches the
// client; Aborted is used only when that copy is unavailable.
func (s *GRPCServer) PushItem(ctx context.Context, req *rpc.PushItemRequest) (*rpc.PushItemResponse, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	res, err := s.items.Push(ctx, userID, fromRPC(req.Item))
	if err != nil {
		s.logger.Error(ctx, "push failed", "user", userID, "item", req.Item.ID, "error", err)
		return nil, toStatus(err)
	}

	if res.Accepted {
		s.logger.Debug(ctx, "item stored", "user", userID, "item", req.Item.ID, "version", req.Item.Version)
		return &rpc.PushItemResponse{Accepted: true}, nil
	}

	s.logger.Info(ctx, "push rejected", "user", userID, "item", req.Item.ID, "version", req.Item.Version)
	if res.Current == nil {
		return nil, status.Error(codes.Aborted, common.ErrVersionConflict.Error())
	}
	current := toRPC(res.Current)
	return &rpc.PushItemResponse{Accepted: false, Current: &current}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
