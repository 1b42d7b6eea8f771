package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ta-fetcher/src/app"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	App    *app.AppContext
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine
	srv    *http.Server
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(a *app.AppContext, logger *logger.Logger) *FastAPIServer {
	cfg := a.Config.Model()

	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		App:    a,
		Config: cfg,
		Logger: logger,
		engine: gin.New(),
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"POST", "GET", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "Cache-Control", requestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Length", requestIDHeader}

	s.engine.Use(
		gin.Recovery(),
		requestID(),
		s.accessLog(),
		cors.New(corsConfig),
	)

	// setup web routes
	s.setupRoutes()

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	ep := s.Config.Endpoint

	// Process level
	s.engine.GET(ep.Snapshot, s.snapshot)
	s.engine.POST(ep.Shutdown, s.shutdown)
	s.engine.POST(ep.Restart, s.restart)

	// WebSocket endpoint
	s.engine.GET("/ws", s.App.Hub.HandleWebSocket)

	ta := s.engine.Group(ep.Prefix)
	ta.GET(ep.Snapshot, s.status)
	ta.POST(ep.Service, s.connect)

	ta.PUT(ep.Subscription+"/:symbol", s.subscribe)
	ta.DELETE(ep.Subscription+"/:symbol", s.unsubscribe)
	ta.GET(ep.Subscriptions, s.listSubscriptions)
	ta.POST(ep.Subscriptions, s.subscribeAll)
	ta.GET("/unsuball", s.unsubscribeAll)

	ta.POST(ep.OHLC+ep.Service, s.startOHLC)
	ta.DELETE(ep.OHLC+ep.Service, s.stopOHLC)
	ta.GET(ep.OHLC+ep.Service, s.ohlcStatus)
	ta.GET(ep.OHLC+"/:symbol", s.cachedBars)
	ta.PUT(ep.OHLC+"/:symbol", s.backfillSymbol)
	ta.GET(ep.OHLCD+"/:symbol", s.dailyBars)

	ta.POST(ep.Tick+ep.Service, s.startTick)
	ta.DELETE(ep.Tick+ep.Service, s.stopTick)
	ta.GET(ep.Tick+ep.Service, s.tickStatus)

	ta.GET(ep.Info, s.getInfo)
	ta.PUT(ep.Info, s.putInfo)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler exposes the router, mainly for tests.
func (s *FastAPIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------

// Start serves until Stop is called. A clean stop returns nil.
func (s *FastAPIServer) Start() error {
	s.Logger.Info("Starting server on %s", s.srv.Addr)

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop drains in-flight requests until ctx expires.
func (s *FastAPIServer) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s %d %s [%s]",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString(requestIDHeader))
	}
}
