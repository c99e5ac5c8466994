package functions

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName  = "agencyhub.functions.v1.Functions"
	invokeMethod = "/" + ServiceName + "/Invoke"
)

// FunctionsServer is the server API of the Functions service. Requests and
// responses are google.protobuf.Struct: {name, body} in, the function result out.
type FunctionsServer interface {
	Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FunctionsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Invoke", Handler: invokeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agencyhub/functions/v1/functions.proto",
}

func RegisterFunctionsServer(s grpc.ServiceRegistrar, srv FunctionsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func invokeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FunctionsServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: invokeMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(FunctionsServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Server exposes a Local registry over gRPC
type Server struct {
	local *Local
}

func NewServer(local *Local) *Server {
	return &Server{local: local}
}

func (s *Server) Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.GetFields()["name"].GetStringValue()
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "Function name is required")
	}
	var body map[string]any
	if b := req.GetFields()["body"].GetStructValue(); b != nil {
		body = b.AsMap()
	}

	out, err := s.local.Invoke(ctx, name, body)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownFunction):
			return nil, status.Error(codes.Unimplemented, err.Error())
		case errors.Is(err, ErrInvalidArgument):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, ErrNotFound):
			return nil, status.Error(codes.NotFound, err.Error())
		}
		log.Error().Err(err).Str("function", name).Msg("Function failed")
		return nil, status.Error(codes.Internal, "Internal server error")
	}

	resp, err := structpb.NewStruct(out)
	if err != nil {
		log.Error().Err(err).Str("function", name).Msg("Failed to encode function result")
		return nil, status.Error(codes.Internal, "Internal server error")
	}
	return resp, nil
}

// Client invokes functions on a remote Server
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Invoke(ctx context.Context, name string, body map[string]any) (map[string]any, error) {
	if body == nil {
		body = map[string]any{}
	}
	req, err := structpb.NewStruct(map[string]any{"name": name, "body": body})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, invokeMethod, req, out); err != nil {
		return nil, fromStatus(err)
	}
	return out.AsMap(), nil
}

// fromStatus maps gRPC status codes back to the package sentinels
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", ErrUnknownFunction, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	}
	return err
}
