package grpc_control

import (
	"context"
	"time"

	"ta-fetcher/src/app"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlService implements ControlServer over the application context.
type ControlService struct {
	App    *app.AppContext
	Logger *logger.Logger
	Health *health.Server
}

// NewControlService creates a new instance of ControlService
func NewControlService(a *app.AppContext, log *logger.Logger) *ControlService {
	return &ControlService{
		App:    a,
		Logger: log,
		Health: health.NewServer(),
	}
}

// -----------------------------------------------------------------------------

// NewServer builds a grpc.Server carrying the control and health services.
func NewServer(s *ControlService, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	RegisterControlServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.Health)
	return srv
}

// -----------------------------------------------------------------------------

// WatchHealth reports SERVING while the vendor session is logged in, checking
// every interval until ctx is done.
func (s *ControlService) WatchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.updateHealth()
		select {
		case <-ctx.Done():
			s.Health.Shutdown()
			return
		case <-ticker.C:
		}
	}
}

func (s *ControlService) updateHealth() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.App.Session.Ready() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.Health.SetServingStatus("", st)
	s.Health.SetServingStatus(ServiceName, st)
}

// -----------------------------------------------------------------------------

func statusStruct(code models.StatusCode, st models.MStatusData) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(map[string]interface{}{
		"success":     code.IsSuccess(),
		"status_code": int(code),
		"status":      code.String(),
		"name":        st.Name,
		"active":      st.Active,
		"message":     st.Status,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (s *ControlService) StartOHLC(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	code := s.App.OHLC.Start()
	s.Logger.Info("gRPC: StartOHLC -> %s", code)
	return statusStruct(code, s.App.OHLC.Status())
}

// -----------------------------------------------------------------------------

func (s *ControlService) StopOHLC(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	code := s.App.OHLC.Stop()
	s.Logger.Info("gRPC: StopOHLC -> %s", code)
	return statusStruct(code, s.App.OHLC.Status())
}

// -----------------------------------------------------------------------------

func (s *ControlService) OHLCStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return statusStruct(models.StatusOK, s.App.OHLC.Status())
}

// -----------------------------------------------------------------------------

func (s *ControlService) ListSubscriptions(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	symbols := s.App.Session.List()
	list := make([]interface{}, len(symbols))
	for i, sym := range symbols {
		list[i] = sym
	}

	out, err := structpb.NewStruct(map[string]interface{}{
		"success":     true,
		"status_code": int(models.StatusOK),
		"status":      models.StatusOK.String(),
		"symbols":     list,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}
