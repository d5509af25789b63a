package grpc

import (
	"context"

	"github.com/dmitrijs2005/refkeeper/internal/rpc"
	"google.golang.org/grpc"
)

// AuthorityServer is the server side of rpc.ServiceName.
type AuthorityServer interface {
	Ping(context.Context, *rpc.PingRequest) (*rpc.PingResponse, error)
	GetChanges(context.Context, *rpc.GetChangesRequest) (*rpc.GetChangesResponse, error)
	PushItem(context.Context, *rpc.PushItemRequest) (*rpc.PushItemResponse, error)
}

// unaryHandler adapts an AuthorityServer method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(AuthorityServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthorityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthorityServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthorityServiceDesc describes the authority for grpc.Server.RegisterService.
// Messages travel with the rpc JSON codec.
var AuthorityServiceDesc = grpc.ServiceDesc{
	ServiceName: rpc.ServiceName,
	HandlerType: (*AuthorityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ping",
			Handler:    unaryHandler(rpc.MethodPing, AuthorityServer.Ping),
		},
		{
			MethodName: "GetChanges",
			Handler:    unaryHandler(rpc.MethodGetChanges, AuthorityServer.GetChanges),
		},
		{
			MethodName: "PushItem",
			Handler:    unaryHandler(rpc.MethodPushItem, AuthorityServer.PushItem),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "refkeeper/v1/authority",
}

// RegisterAuthorityServer registers srv on s.
func RegisterAuthorityServer(s grpc.ServiceRegistrar, srv AuthorityServer) {
	s.RegisterService(&AuthorityServiceDesc, srv)
}
