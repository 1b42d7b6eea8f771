package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ta-fetcher/src/analysis"
	"ta-fetcher/src/bridge"
	"ta-fetcher/src/config"
	datasource "ta-fetcher/src/data_source"
	"ta-fetcher/src/helpers"
	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/runtime"
	"ta-fetcher/src/server/hub"
	"ta-fetcher/src/utils"
)

// -----------------------------------------------------------------------------
// AppContext owns every long-lived component of the service. It is built once
// at startup and handed to the HTTP and gRPC servers.
// -----------------------------------------------------------------------------

type AppContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     *logger.Logger

	Store     interfaces.IStore
	Network   interfaces.INetworkManager
	Connector interfaces.IVendorConnector
	Session   *datasource.Session
	Catalog   interfaces.ISymbolCatalog

	Handoff   *utils.Handoff
	Cache     *utils.MemoryManager
	Calendar  *utils.TradingCalendar
	Scheduler *utils.MarketScheduler
	Rollup    *analysis.AnalysisFacade
	Bridge    *bridge.CallbackBridge
	OHLC      *runtime.OHLCRuntime
	Tick      *runtime.TickRuntime
	Hub       *hub.Hub

	cancel    context.CancelFunc
	restart   atomic.Bool
	closeOnce sync.Once
}

// -----------------------------------------------------------------------------

// New wires the components described by cfg. The store is initialized; the
// vendor session is not connected until Start.
func New(cfg *config.Config, configPath string) (*AppContext, error) {
	m := cfg.Model()
	loc := cfg.Location()

	a := &AppContext{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger.NewLogger(m, m.Name),
	}

	store, err := setupStore(m, loc, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Store = store

	a.Network = setupNetwork(m)
	a.Calendar = utils.NewTradingCalendar(m.Market.MIC, loc, m.Market.OpenHour, m.Market.CloseHour)
	a.Scheduler = utils.NewMarketScheduler(a.Calendar, logger.NewLogger(m, "MarketScheduler"))
	a.Handoff = utils.NewHandoff()
	a.Rollup = analysis.NewAnalysisFacade(m, loc, logger.NewLogger(m, "Analysis"))
	a.Hub = hub.NewHub(logger.NewLogger(m, "Hub"))

	cacheLimit := helpers.CacheMemoryLimitMB()
	a.Logger.Info("Bar cache memory limit set to %d MB", cacheLimit)
	cacheBars := m.Bridge.CacheBars
	if cacheBars <= 0 {
		// Enough for the whole backfill window
		cacheBars = utils.CalculateMaxBars(m.OHLC.StartDateOffsetDays+1, 1)
	}
	a.Cache = utils.NewMemoryManager(cacheLimit, cacheBars, logger.NewLogger(m, "MemoryManager"))

	a.Catalog, err = setupCatalog(m, store, a.Network, a.Logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	a.Connector, err = setupConnector(m, a.Network, a.Calendar, loc)
	if err != nil {
		store.Close()
		return nil, err
	}

	a.Session, err = datasource.NewSession(m, a.Connector, loc, logger.NewLogger(m, "Session"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("vendor session: %w", err)
	}

	a.OHLC = runtime.NewOHLCRuntime(m, store, a.Session, a.Catalog, a.Handoff, a.Calendar, loc,
		logger.NewLogger(m, runtime.OHLCRuntimeName))
	a.OHLC.Publisher = a.Hub

	a.Tick = runtime.NewTickRuntime(m, store, a.Session, a.Catalog, a.Calendar, loc,
		logger.NewLogger(m, runtime.TickRuntimeName))
	a.Tick.Publisher = a.Hub

	a.Bridge = bridge.NewCallbackBridge(m, store, a.Session, a.Handoff, a.Cache, a.Rollup, loc,
		logger.NewLogger(m, "CallbackBridge"))
	a.Bridge.Publisher = a.Hub
	a.Bridge.SetRunState(a.OHLC)
	a.Connector.SetCallbacks(a.Bridge)

	return a, nil
}

// -----------------------------------------------------------------------------

// Start runs the background parts of the service under ctx: the event hub,
// the vendor login, the resume of an interrupted pass and the after-close
// scheduler. The returned context is cancelled by RequestShutdown.
func (a *AppContext) Start(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	go a.Hub.Run(ctx)

	go func() {
		if code := a.Session.Connect(ctx); !code.IsSuccess() {
			a.Logger.Warning("Vendor login at startup: %s", code)
		}
	}()

	if _, err := a.OHLC.Load(ctx); err != nil {
		a.Logger.Error("Failed to load %s state: %v", runtime.OHLCRuntimeName, err)
	}

	if a.Config.OHLC.AutoStartAfterClose {
		go a.Scheduler.Run(ctx, func(context.Context) {
			a.Logger.Info("Scheduled backfill: %s", a.OHLC.Start())
		})
	}

	return ctx
}

// -----------------------------------------------------------------------------

// RequestShutdown cancels the context returned by Start.
func (a *AppContext) RequestShutdown() {
	if a.cancel != nil {
		a.cancel()
	}
}

// RequestRestart shuts down and marks the process for re-execution.
func (a *AppContext) RequestRestart() {
	a.restart.Store(true)
	a.RequestShutdown()
}

// RestartRequested reports whether RequestRestart was called.
func (a *AppContext) RestartRequested() bool {
	return a.restart.Load()
}

// -----------------------------------------------------------------------------

// Close stops the runtimes and releases the vendor session and the store.
// Safe to call more than once.
func (a *AppContext) Close() {
	a.closeOnce.Do(func() {
		a.RequestShutdown()
		a.OHLC.Shutdown()
		a.Tick.Stop()

		if err := a.Session.Close(); err != nil {
			a.Logger.Warning("Closing vendor session: %v", err)
		}

		done := make(chan struct{})
		go func() {
			a.Bridge.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			a.Logger.Warning("Callback bridge did not drain in time (%d pending)", a.Bridge.Pending())
		}

		if err := a.Store.Close(); err != nil {
			a.Logger.Warning("Closing store: %v", err)
		}
		a.Logger.Info("Shutdown complete.")
	})
}
