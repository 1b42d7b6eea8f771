package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ta-fetcher/src/app"
	"ta-fetcher/src/config"
	"ta-fetcher/src/logger"
)

// -----------------------------------------------------------------------------

func main() {

	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envFile := flag.String("env", ".env", "path to the env file holding API_ and SQL_ secrets")
	flag.Parse()

	// 2. Load config and secrets
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := conf.LoadSecrets(*envFile); err != nil {
		fmt.Printf("Error loading secrets: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.Model(), conf.Name)

	// 4. Setup Components
	a, err := app.New(conf, *configPath)
	if err != nil {
		appLogger.Critical("Failed to build application: %v", err)
	}

	// 5. Lifecycle: SIGINT/SIGTERM or /shutdown end the run
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runCtx := a.Start(ctx)

	// 6. Serve until the run context is done
	if err := runServers(runCtx, a, appLogger); err != nil {
		appLogger.Error("Server failed: %v", err)
	}

	// 7. Cleanup
	a.Close()

	if a.RestartRequested() {
		stop()
		restart(appLogger)
	}
}
