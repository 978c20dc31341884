package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hashauth.ingestion.v1.ProductIngestion"

const (
	submitProductMethod = "/" + ServiceName + "/SubmitProduct"
	authProductMethod   = "/" + ServiceName + "/AuthProduct"
	getStatusMethod     = "/" + ServiceName + "/GetStatus"
)

// ProductIngestionServer is the server side of the ingestion service.
// Products travel as google.protobuf.Struct objects with the JSON field names
// of the HTTP API; numbers beyond 2^53 must be sent as decimal strings.
type ProductIngestionServer interface {
	SubmitProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AuthProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// ServiceDesc describes the ingestion service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProductIngestionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitProduct", Handler: submitProductHandler},
		{MethodName: "AuthProduct", Handler: authProductHandler},
		{MethodName: "GetStatus", Handler: getStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "hashauth/ingestion/v1/product_ingestion",
}

// Register mounts srv on s.
func Register(s grpc.ServiceRegistrar, srv ProductIngestionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func submitProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductIngestionServer).SubmitProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitProductMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProductIngestionServer).SubmitProduct(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func authProductHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductIngestionServer).AuthProduct(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: authProductMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProductIngestionServer).AuthProduct(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProductIngestionServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ProductIngestionServer).GetStatus(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls the ingestion service over a client connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client using cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) SubmitProduct(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, submitProductMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AuthProduct(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, authProductMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context, requestID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getStatusMethod, wrapperspb.String(requestID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
