package grpc_control

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"ta-fetcher/src/app"
	"ta-fetcher/src/config"
	"ta-fetcher/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func newTestClient(t *testing.T) (*ControlClient, healthpb.HealthClient, *ControlService) {
	t.Helper()
	m := config.Defaults()
	m.Storage.DBPath = filepath.Join(t.TempDir(), "ta.db")
	m.Catalog.Symbols = []string{"2330"}
	m.Market.MIC = "none"
	m.OHLC.VendorWaitAttempts = 1000
	m.OHLC.VendorWaitInterval = 10

	a, err := app.New(&config.Config{MConfig: m}, "")
	require.NoError(t, err)
	t.Cleanup(a.Close)

	svc := NewControlService(a, logger.NewLogger(nil, "ControlServiceTest"))
	srv := NewServer(svc)
	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewControlClient(conn), healthpb.NewHealthClient(conn), svc
}

// -----------------------------------------------------------------------------

func TestStartStopOHLC(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := client.StopOHLC(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SERVICE_NOT_RUNNING", out.Fields["status"].GetStringValue())
	assert.False(t, out.Fields["success"].GetBoolValue())

	// The vendor is never logged in, so the pass keeps waiting until stopped.
	out, err = client.StartOHLC(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(200), out.Fields["status_code"].GetNumberValue())

	out, err = client.StartOHLC(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SERVICE_IS_RUNNING", out.Fields["status"].GetStringValue())

	out, err = client.OHLCStatus(ctx)
	require.NoError(t, err)
	assert.True(t, out.Fields["active"].GetBoolValue())
	assert.Equal(t, "Updating: ", out.Fields["message"].GetStringValue())

	out, err = client.StopOHLC(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", out.Fields["status"].GetStringValue())
}

func TestListSubscriptionsEmpty(t *testing.T) {
	client, _, _ := newTestClient(t)

	out, err := client.ListSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out.Fields["symbols"].GetListValue().GetValues())
}

func TestHealthFollowsSession(t *testing.T) {
	_, hc, svc := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.WatchHealth(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, "OK", svc.App.Session.Connect(ctx).String())
	require.Eventually(t, func() bool {
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		return err == nil && resp.Status == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)
}
