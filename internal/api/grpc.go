package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/healthdash/healthfeeds/internal/services"
)

// DashboardServiceName is the fully qualified gRPC service name.
const DashboardServiceName = "healthfeeds.v1.Dashboard"

// DashboardServer is the gRPC contract. Requests carry the dataset or page name;
// responses are the same JSON documents served over HTTP, as google.protobuf.Struct.
type DashboardServer interface {
	GetDataset(ctx context.Context, name *wrapperspb.StringValue) (*structpb.Struct, error)
	GetPage(ctx context.Context, page *wrapperspb.StringValue) (*structpb.Struct, error)
}

// RegisterDashboardServer attaches srv to a gRPC registrar.
func RegisterDashboardServer(s grpc.ServiceRegistrar, srv DashboardServer) {
	s.RegisterService(&dashboardServiceDesc, srv)
}

var dashboardServiceDesc = grpc.ServiceDesc{
	ServiceName: DashboardServiceName,
	HandlerType: (*DashboardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDataset", Handler: getDatasetHandler},
		{MethodName: "GetPage", Handler: getPageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "healthfeeds/v1/dashboard.proto",
}

func getDatasetHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DashboardServer).GetDataset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + DashboardServiceName + "/GetDataset"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DashboardServer).GetDataset(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getPageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DashboardServer).GetPage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + DashboardServiceName + "/GetPage"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DashboardServer).GetPage(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

type dashboardServer struct {
	dashboard Dashboard
}

// NewDashboardServer adapts the dashboard service to the gRPC contract.
func NewDashboardServer(dashboard Dashboard) DashboardServer {
	return &dashboardServer{dashboard: dashboard}
}

func (s *dashboardServer) GetDataset(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "dataset name is required")
	}
	res, err := s.dashboard.Dataset(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

func (s *dashboardServer) GetPage(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "page name is required")
	}
	res, err := s.dashboard.Page(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, services.ErrUnknownDataset), errors.Is(err, services.ErrUnknownPage):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, services.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct round-trips through JSON so gRPC clients see the HTTP field names.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return out, nil
}
