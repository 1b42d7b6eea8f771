package grpc_control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tafetcher.v1.Control"

// ControlServer is the server API of tafetcher.v1.Control. Every method takes
// google.protobuf.Empty and answers with a google.protobuf.Struct.
type ControlServer interface {
	StartOHLC(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopOHLC(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	OHLCStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListSubscriptions(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// -----------------------------------------------------------------------------

type controlCall func(ControlServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func unary(name string, call controlCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(emptypb.Empty)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControlServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ControlServer), ctx, req.(*emptypb.Empty))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Control_ServiceDesc describes tafetcher.v1.Control for grpc.Server.
var Control_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("StartOHLC", ControlServer.StartOHLC),
		unary("StopOHLC", ControlServer.StopOHLC),
		unary("OHLCStatus", ControlServer.OHLCStatus),
		unary("ListSubscriptions", ControlServer.ListSubscriptions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tafetcher/v1/control.proto",
}

// RegisterControlServer registers srv on s.
func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&Control_ServiceDesc, srv)
}

// -----------------------------------------------------------------------------
// Client
// -----------------------------------------------------------------------------

type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

func (c *ControlClient) invoke(ctx context.Context, method string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ControlClient) StartOHLC(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StartOHLC", opts...)
}

func (c *ControlClient) StopOHLC(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopOHLC", opts...)
}

func (c *ControlClient) OHLCStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "OHLCStatus", opts...)
}

func (c *ControlClient) ListSubscriptions(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListSubscriptions", opts...)
}
