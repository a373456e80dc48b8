package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/nexi-lab/nexus-sub005/api/nexusv1"
)

// ServiceName is the gRPC service path nexus registers under, mirroring
// the shape of an openfga.v1.OpenFGAService style path without carrying a
// .proto definition: method dispatch here is done by hand against
// nexusv1's plain structs, decoded by jsonCodec instead of protobuf.
const ServiceName = "nexus.v1.Authorization"

// Handler is implemented by Server and is the seam tests mock against
// without needing a live gRPC transport.
type Handler interface {
	Check(ctx context.Context, req *nexusv1.CheckRequest) (*nexusv1.CheckResponse, error)
	BulkCheck(ctx context.Context, req *nexusv1.BulkCheckRequest) (*nexusv1.BulkCheckResponse, error)
	Filter(ctx context.Context, req *nexusv1.FilterRequest) (*nexusv1.FilterResponse, error)
	Expand(ctx context.Context, req *nexusv1.ExpandRequest) (*nexusv1.ExpandResponse, error)
	WriteTuple(ctx context.Context, req *nexusv1.WriteTupleRequest) (*nexusv1.WriteTupleResponse, error)
	DeleteTuple(ctx context.Context, req *nexusv1.DeleteTupleRequest) (*nexusv1.DeleteTupleResponse, error)
	Explain(ctx context.Context, req *nexusv1.ExplainRequest) (*nexusv1.ExplainResponse, error)
	Watch(req *nexusv1.WatchRequest, stream WatchServer) error
}

// WatchServer is the narrow slice of grpc.ServerStream Watch needs, kept
// as an interface so it can be faked in tests without a real connection.
type WatchServer interface {
	Send(*nexusv1.WatchResponse) error
	Context() context.Context
}

type watchServerStream struct{ grpc.ServerStream }

func (w *watchServerStream) Send(m *nexusv1.WatchResponse) error { return w.ServerStream.SendMsg(m) }

func unaryHandler[Req, Resp any](call func(h Handler, ctx context.Context, req *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		h := srv.(Handler)
		if interceptor == nil {
			return call(h, ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName}
		return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
			return call(h, ctx, req.(*Req))
		})
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: unaryHandler(Handler.Check)},
		{MethodName: "BulkCheck", Handler: unaryHandler(Handler.BulkCheck)},
		{MethodName: "Filter", Handler: unaryHandler(Handler.Filter)},
		{MethodName: "Expand", Handler: unaryHandler(Handler.Expand)},
		{MethodName: "WriteTuple", Handler: unaryHandler(Handler.WriteTuple)},
		{MethodName: "DeleteTuple", Handler: unaryHandler(Handler.DeleteTuple)},
		{MethodName: "Explain", Handler: unaryHandler(Handler.Explain)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				req := new(nexusv1.WatchRequest)
				if err := stream.RecvMsg(req); err != nil {
					return err
				}
				return srv.(Handler).Watch(req, &watchServerStream{stream})
			},
		},
	},
}
