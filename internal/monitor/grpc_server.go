package monitor

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// RunMonitorServiceName is the fully qualified gRPC service name.
const RunMonitorServiceName = "panelopt.v1.RunMonitor"

const (
	getStatusMethod      = "/" + RunMonitorServiceName + "/GetStatus"
	getGenerationsMethod = "/" + RunMonitorServiceName + "/GetGenerations"
)

// RunMonitorServer is the server API of the RunMonitor service. Messages are
// well-known protobuf types so no generated code is needed.
type RunMonitorServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetGenerations accepts {"limit": N}.
	GetGenerations(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RunMonitorServiceDesc describes the RunMonitor service for grpc.Server.
var RunMonitorServiceDesc = grpc.ServiceDesc{
	ServiceName: RunMonitorServiceName,
	HandlerType: (*RunMonitorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "GetGenerations", Handler: getGenerationsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "panelopt/v1/monitor.proto",
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RunMonitorServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RunMonitorServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getGenerationsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RunMonitorServer).GetGenerations(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getGenerationsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RunMonitorServer).GetGenerations(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPCServer implements RunMonitorServer on a RunStore.
type GRPCServer struct {
	store *RunStore
}

// NewGRPCServer creates the RunMonitor implementation.
func NewGRPCServer(store *RunStore) *GRPCServer {
	return &GRPCServer{store: store}
}

// Register adds the RunMonitor and health services to s and returns the
// health server so callers can flip serving status.
func Register(s *grpc.Server, store *RunStore) *health.Server {
	s.RegisterService(&RunMonitorServiceDesc, NewGRPCServer(store))
	hs := health.NewServer()
	hs.SetServingStatus(RunMonitorServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

func (s *GRPCServer) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	r := s.store.Snapshot()
	out, err := structpb.NewStruct(map[string]any{
		"id":              r.ID,
		"mode":            r.Mode,
		"status":          string(r.Status),
		"state":           r.State,
		"generation":      r.Generation,
		"generations":     r.Generations,
		"evaluations":     r.Evaluations,
		"best":            floatList(r.Best),
		"best_objectives": floatList(r.BestObjectives),
		"feasible":        r.Feasible,
		"error":           r.Error,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *GRPCServer) GetGenerations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := 0
	if req != nil {
		if v, ok := req.GetFields()["limit"]; ok {
			n := v.GetNumberValue()
			if n < 0 {
				return nil, status.Error(codes.InvalidArgument, "limit must be non-negative")
			}
			limit = int(n)
		}
	}

	gens := s.store.Generations(limit)
	list := make([]any, 0, len(gens))
	for _, g := range gens {
		list = append(list, map[string]any{
			"index":           g.Index,
			"evaluations":     g.Evaluations,
			"best":            floatList(g.Best),
			"best_objectives": floatList(g.BestObjectives),
			"feasible":        g.Feasible,
			"feasible_count":  g.FeasibleCount,
			"mean_objective":  g.MeanObjective,
		})
	}
	out, err := structpb.NewStruct(map[string]any{"generations": list})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func floatList(v []float64) []any {
	out := make([]any, len(v))
	for i, f := range v {
		out[i] = f
	}
	return out
}

// RunMonitorClient calls the RunMonitor service.
type RunMonitorClient struct {
	cc grpc.ClientConnInterface
}

// NewRunMonitorClient wraps a client connection.
func NewRunMonitorClient(cc grpc.ClientConnInterface) *RunMonitorClient {
	return &RunMonitorClient{cc: cc}
}

// GetStatus fetches the run snapshot.
func (c *RunMonitorClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getStatusMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetGenerations fetches up to limit recent generations.
func (c *RunMonitorClient) GetGenerations(ctx context.Context, limit int, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getGenerationsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
