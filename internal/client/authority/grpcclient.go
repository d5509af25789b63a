package authority

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/refkeeper/internal/client/identity"
	"github.com/dmitrijs2005/refkeeper/internal/client/models"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/dmitrijs2005/refkeeper/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// GRPCClient talks to the authority over gRPC with the JSON codec.
type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	cc          grpc.ClientConnInterface
	identity    identity.Provider
	pingTimeout time.Duration
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method != rpc.MethodPing {
		token, err := c.identity.AccessToken(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
		}
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// NewGRPCClient dials lazily; the first call opens the connection.
func NewGRPCClient(endpointURL string, id identity.Provider, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, identity: id, pingTimeout: 3 * time.Second}

	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(rpc.CodecName)),
	}
	conn, err := grpc.NewClient(endpointURL, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create authority client: %w", err)
	}
	c.conn = conn
	c.cc = conn
	return c, nil
}

func (c *GRPCClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *GRPCClient) Ping(ctx context.Context) error {
	var resp rpc.PingResponse
	if err := c.cc.Invoke(ctx, rpc.MethodPing, &rpc.PingRequest{}, &resp); err != nil {
		return mapError(err)
	}
	if resp.Status != rpc.StatusOK {
		return common.ErrUnavailable
	}
	return nil
}

func (c *GRPCClient) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	return c.Ping(ctx) == nil
}

func (c *GRPCClient) GetChanges(ctx context.Context, since time.Time) ([]models.Item, time.Time, error) {
	var resp rpc.GetChangesResponse
	if err := c.cc.Invoke(ctx, rpc.MethodGetChanges, &rpc.GetChangesRequest{Since: since}, &resp); err != nil {
		return nil, time.Time{}, mapError(err)
	}

	out := make([]models.Item, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, fromRPC(it))
	}
	return out, resp.ServerTime.UTC(), nil
}

func (c *GRPCClient) PushItem(ctx context.Context, item *models.Item) error {
	var resp rpc.PushItemResponse
	if err := c.cc.Invoke(ctx, rpc.MethodPushItem, &rpc.PushItemRequest{Item: toRPC(item)}, &resp); err != nil {
		err = mapError(err)
		if err == common.ErrVersionConflict {
			return &VersionConflictError{ItemID: item.ID}
		}
		return err
	}
	if !resp.Accepted {
		conflict := &VersionConflictError{ItemID: item.ID}
		if resp.Current != nil {
			cur := fromRPC(*resp.Current)
			conflict.Current = &cur
		}
		return conflict
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return common.ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return common.ErrUnavailable
	case codes.Aborted, codes.FailedPrecondition:
		return common.ErrVersionConflict
	case codes.NotFound:
		return common.ErrNotFound
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
