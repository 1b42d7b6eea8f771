package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"

	"ta-fetcher/src/app"
	pb "ta-fetcher/src/grpc_control"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/server"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 15 * time.Second

// -----------------------------------------------------------------------------

// runServers runs the HTTP and gRPC control servers until ctx is done, then
// stops both gracefully. The first server error cancels the other.
func runServers(ctx context.Context, a *app.AppContext, appLogger *logger.Logger) error {
	// Bind gRPC first so a failed listen leaves nothing running
	port := a.Config.GrpcPort
	if port == 0 {
		port = 50051 // Default fallback
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", a.Config.GrpcHost, port))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	controlService := pb.NewControlService(a, logger.NewLogger(a.Config.Model(), "ControlService"))
	grpcServer := pb.NewServer(controlService)

	g, gctx := errgroup.WithContext(ctx)

	// 1. HTTP control surface
	httpServer := server.NewFastAPIServer(a, logger.NewLogger(a.Config.Model(), "HTTPServer"))
	g.Go(httpServer.Start)

	// 2. gRPC Control Server
	g.Go(func() error {
		appLogger.Info("Starting gRPC Control Server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		controlService.WatchHealth(gctx, time.Second)
		return nil
	})

	// 3. Graceful stop once the run ends or a server fails
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Stopping control servers...")

		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-stopCtx.Done():
			grpcServer.Stop()
		}
		return httpServer.Stop(stopCtx)
	})

	return g.Wait()
}

// -----------------------------------------------------------------------------

// restart replaces the process image with a fresh copy of the binary.
func restart(appLogger *logger.Logger) {
	exe, err := os.Executable()
	if err != nil {
		appLogger.Critical("Restart failed: %v", err)
	}
	appLogger.Info("Restarting %s", exe)
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		appLogger.Critical("Restart failed: %v", err)
	}
}
