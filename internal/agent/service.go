package agent

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gophvault.agent.v1.VaultAgent"

// Full method names, also used by the auth interceptor.
const (
	MethodStatus   = "/" + ServiceName + "/Status"
	MethodUnlock   = "/" + ServiceName + "/Unlock"
	MethodLock     = "/" + ServiceName + "/Lock"
	MethodSearch   = "/" + ServiceName + "/Search"
	MethodGetEntry = "/" + ServiceName + "/GetEntry"
	MethodTOTP     = "/" + ServiceName + "/TOTP"
	MethodTouch    = "/" + ServiceName + "/Touch"
)

// VaultAgentServer is the server API. Messages are protobuf well-known
// types, so no generated code is needed.
type VaultAgentServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Unlock(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Lock(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Search(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetEntry(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	TOTP(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Touch(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func method[Req, Resp proto.Message](name string, newReq func() Req, call func(VaultAgentServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VaultAgentServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VaultAgentServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func newEmpty() *emptypb.Empty { return &emptypb.Empty{} }
func newString() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }
func newBytes() *wrapperspb.BytesValue { return &wrapperspb.BytesValue{} }

// ServiceDesc describes VaultAgent for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultAgentServer)(nil),
	Methods: []grpc.MethodDesc{
		method("Status", newEmpty, VaultAgentServer.Status),
		method("Unlock", newBytes, VaultAgentServer.Unlock),
		method("Lock", newEmpty, VaultAgentServer.Lock),
		method("Search", newString, VaultAgentServer.Search),
		method("GetEntry", newString, VaultAgentServer.GetEntry),
		method("TOTP", newString, VaultAgentServer.TOTP),
		method("Touch", newEmpty, VaultAgentServer.Touch),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophvault/agent/v1/agent.proto",
}
