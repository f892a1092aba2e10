package oracle

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const timeWindowMethod = "/tokenvesting.oracle.v1.TimeOracle/TimeWindow"

// TimeOracleServer is the server API for the TimeOracle gRPC service.
//
// Messages are protobuf well-known wrapper types: the request carries the
// 32-byte oracle account, the reply 16 bytes of big-endian start then end.
type TimeOracleServer interface {
	TimeWindow(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// UnimplementedTimeOracleServer can be embedded to have forward compatible implementations.
type UnimplementedTimeOracleServer struct{}

func (UnimplementedTimeOracleServer) TimeWindow(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method TimeWindow not implemented")
}

// RegisterTimeOracleServer registers the TimeOracle service on a gRPC server.
func RegisterTimeOracleServer(s grpc.ServiceRegistrar, srv TimeOracleServer) {
	s.RegisterService(&TimeOracle_ServiceDesc, srv)
}

// TimeOracleClient is the client API for the TimeOracle gRPC service.
type TimeOracleClient interface {
	TimeWindow(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
}

type timeOracleClient struct{ cc grpc.ClientConnInterface }

func NewTimeOracleClient(cc grpc.ClientConnInterface) TimeOracleClient {
	return &timeOracleClient{cc: cc}
}

func (c *timeOracleClient) TimeWindow(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	err := c.cc.Invoke(ctx, timeWindowMethod, in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func _TimeOracle_TimeWindow_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TimeOracleServer).TimeWindow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: timeWindowMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TimeOracleServer).TimeWindow(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// TimeOracle_ServiceDesc is the grpc.ServiceDesc for TimeOracle service.
var TimeOracle_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "tokenvesting.oracle.v1.TimeOracle",
	HandlerType: (*TimeOracleServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TimeWindow", Handler: _TimeOracle_TimeWindow_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "oracle.proto",
}
