// Package grpc exposes the authority over gRPC: the service descriptor,
// request handlers and the access-token interceptor.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/logging"
	"github.com/dmitrijs2005/refkeeper/internal/server/models"
	"github.com/dmitrijs2005/refkeeper/internal/server/services"
	"google.golang.org/grpc"
)

// ItemService is the business logic consumed by the handlers.
type ItemService interface {
	Push(ctx context.Context, userID string, item *models.Item) (*services.PushResult, error)
	Changes(ctx context.Context, userID string, since time.Time) ([]*models.Item, time.Time, error)
}

type GRPCServer struct {
	address   string
	items     ItemService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, items ItemService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		items:     items,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))

	RegisterAuthorityServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
