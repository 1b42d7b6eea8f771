package main

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"ta-fetcher/src/app"
	"ta-fetcher/src/config"
	"ta-fetcher/src/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	require.NoError(t, lis.Close())
	return port
}

func newServersApp(t *testing.T, httpPort, grpcPort int) *app.AppContext {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := config.Defaults()
	m.Storage.DBPath = filepath.Join(t.TempDir(), "ta.db")
	m.Catalog.Symbols = []string{"2330"}
	m.Market.MIC = "none"
	m.Host = "127.0.0.1"
	m.Port = httpPort
	m.GrpcHost = "127.0.0.1"
	m.GrpcPort = grpcPort

	a, err := app.New(&config.Config{MConfig: m}, "")
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

// -----------------------------------------------------------------------------

func TestRunServersGRPCPortTakenStartsNothing(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	httpPort := freePort(t)
	a := newServersApp(t, httpPort, taken.Addr().(*net.TCPAddr).Port)

	done := make(chan error, 1)
	go func() { done <- runServers(context.Background(), a, logger.NewLogger(nil, "ServersTest")) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "listen for gRPC")
	case <-time.After(3 * time.Second):
		t.Fatal("runServers did not return on a failed gRPC listen")
	}

	// The HTTP port was never bound
	lis, err := net.Listen("tcp", net.JoinHostPort(a.Config.Host, strconv.Itoa(httpPort)))
	require.NoError(t, err)
	lis.Close()
}

func TestRunServersStopsOnCancel(t *testing.T) {
	a := newServersApp(t, freePort(t), freePort(t))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runServers(ctx, a, logger.NewLogger(nil, "ServersTest")) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServers did not stop")
	}
}
