package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// TriageServiceName is the fully qualified gRPC service name.
	TriageServiceName = "platformtriage.v1.Triage"
	// DiagnoseFullMethod is the full method name of the unary Diagnose call.
	DiagnoseFullMethod = "/" + TriageServiceName + "/Diagnose"
)

// TriageServer is the server API for the Triage service. Payloads are
// google.protobuf.Struct so the wire shape matches the JSON report.
type TriageServer interface {
	Diagnose(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTriageServer attaches srv to s.
func RegisterTriageServer(s grpc.ServiceRegistrar, srv TriageServer) {
	s.RegisterService(&TriageServiceDesc, srv)
}

func triageDiagnoseHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TriageServer).Diagnose(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: DiagnoseFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(TriageServer).Diagnose(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// TriageServiceDesc describes the Triage service for grpc.Server.
var TriageServiceDesc = grpc.ServiceDesc{
	ServiceName: TriageServiceName,
	HandlerType: (*TriageServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Diagnose",
			Handler:    triageDiagnoseHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "platformtriage/v1/triage.proto",
}

// TriageClient is the client API for the Triage service.
type TriageClient interface {
	Diagnose(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type triageClient struct {
	cc grpc.ClientConnInterface
}

// NewTriageClient wraps a client connection.
func NewTriageClient(cc grpc.ClientConnInterface) TriageClient {
	return &triageClient{cc: cc}
}

func (c *triageClient) Diagnose(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DiagnoseFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
