package server

import (
	"fmt"
	"strings"

	"ta-fetcher/src/models"

	"github.com/gin-gonic/gin"
)

const defaultBarLimit = 100

// -----------------------------------------------------------------------------
// Process
// -----------------------------------------------------------------------------

func (s *FastAPIServer) snapshot(c *gin.Context) {
	respond(c, models.StatusOK, "", nil)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) shutdown(c *gin.Context) {
	respond(c, models.StatusAccepted, "shutting down", nil)
	s.Logger.Info("Shutdown requested over HTTP")
	s.App.RequestShutdown()
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) restart(c *gin.Context) {
	respond(c, models.StatusAccepted, "restarting", nil)
	s.Logger.Info("Restart requested over HTTP")
	s.App.RequestRestart()
}

// -----------------------------------------------------------------------------
// Vendor session
// -----------------------------------------------------------------------------

func (s *FastAPIServer) status(c *gin.Context) {
	loc := s.App.Config.Location()
	session := models.MStatusData{Name: s.App.Session.Name(), Active: s.App.Session.Ready(), Status: "Logged out."}
	if session.Active {
		session.Status = "Logged in."
	}

	respond(c, models.StatusOK, "", nil,
		models.NewResponseData(models.DataTypeStatus, loc, session.Metadata(), nil),
		models.NewResponseData(models.DataTypeStatus, loc, s.App.OHLC.Status().Metadata(), nil),
		models.NewResponseData(models.DataTypeStatus, loc, s.App.Tick.Status().Metadata(), nil),
		models.NewResponseData(models.DataTypeOHLC, loc, map[string]interface{}{"symbols": s.App.Cache.SymbolCount()}, s.App.Cache.Snapshot()),
	)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) connect(c *gin.Context) {
	code := s.App.Session.Connect(c.Request.Context())
	respond(c, code, "", nil)
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

func symbolParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("symbol"))
}

func (s *FastAPIServer) subscribe(c *gin.Context) {
	symbol := symbolParam(c)
	code, err := s.App.Session.Subscribe(symbol)
	respond(c, code, symbol, err)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) unsubscribe(c *gin.Context) {
	symbol := symbolParam(c)
	code, err := s.App.Session.Unsubscribe(symbol)
	respond(c, code, symbol, err)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) listSubscriptions(c *gin.Context) {
	symbols := s.App.Session.List()
	respond(c, models.StatusOK, "", nil, models.NewResponseData(
		models.DataTypeSymbols, s.App.Config.Location(),
		map[string]interface{}{"count": len(symbols)}, symbols,
	))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) subscribeAll(c *gin.Context) {
	if !s.App.Session.Ready() {
		respond(c, models.StatusServiceUnavailable, "", fmt.Errorf("vendor session not logged in"))
		return
	}
	universe, err := s.App.Catalog.List(c.Request.Context())
	if err != nil {
		respond(c, models.StatusBadGateway, "", err)
		return
	}

	added := s.App.Session.SubscribeAll(universe)
	if added == nil {
		added = []string{}
	}
	respond(c, models.StatusAccepted, "", nil, models.NewResponseData(
		models.DataTypeSymbols, s.App.Config.Location(),
		map[string]interface{}{"count": len(added), "universe": len(universe)}, added,
	))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) unsubscribeAll(c *gin.Context) {
	n := s.App.Session.UnsubscribeAll()
	respond(c, models.StatusAccepted, fmt.Sprintf("%d unsubscribed", n), nil)
}

// -----------------------------------------------------------------------------
// OHLC runtime
// -----------------------------------------------------------------------------

func (s *FastAPIServer) startOHLC(c *gin.Context) {
	respond(c, s.App.OHLC.Start(), "", nil)
}

func (s *FastAPIServer) stopOHLC(c *gin.Context) {
	respond(c, s.App.OHLC.Stop(), "", nil)
}

func (s *FastAPIServer) ohlcStatus(c *gin.Context) {
	st := s.App.OHLC.Status()
	respond(c, models.StatusOK, st.Status, nil,
		models.NewResponseData(models.DataTypeStatus, s.App.Config.Location(), st.Metadata(), nil))
}

// -----------------------------------------------------------------------------

// cachedBars serves the newest bars of symbol from the cache, or from the
// store when the symbol was not seen since startup.
func (s *FastAPIServer) cachedBars(c *gin.Context) {
	symbol := symbolParam(c)
	limit := queryLimit(c, defaultBarLimit)

	source := "cache"
	bars := s.App.Cache.GetLatest(symbol, limit)
	if len(bars) == 0 {
		source = "store"
		var err error
		bars, err = s.App.Store.QueryOHLC(c.Request.Context(), symbol, false, limit)
		if err != nil {
			respond(c, models.StatusInternalServerError, symbol, err)
			return
		}
	}
	if len(bars) == 0 {
		respond(c, models.StatusNotFound, symbol, nil)
		return
	}

	respond(c, models.StatusOK, symbol, nil, models.NewResponseData(
		models.DataTypeOHLC, s.App.Config.Location(),
		map[string]interface{}{"symbol": symbol, "count": len(bars), "source": source}, bars,
	))
}

// -----------------------------------------------------------------------------

// backfillSymbol runs a one-shot pass for symbol and waits for its outcome.
func (s *FastAPIServer) backfillSymbol(c *gin.Context) {
	symbol := symbolParam(c)
	code, rt := s.App.OHLC.BackfillSymbol(c.Request.Context(), symbol)
	respond(c, code, rt.String(), nil, models.NewResponseData(
		models.DataTypeStatus, s.App.Config.Location(),
		map[string]interface{}{"symbol": symbol, "result": rt.String()}, nil,
	))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) dailyBars(c *gin.Context) {
	symbol := symbolParam(c)
	bars, err := s.App.Store.QueryOHLC(c.Request.Context(), symbol, true, queryLimit(c, defaultBarLimit))
	if err != nil {
		respond(c, models.StatusInternalServerError, symbol, err)
		return
	}
	if len(bars) == 0 {
		respond(c, models.StatusNotFound, symbol, nil)
		return
	}

	metadata := s.App.Rollup.Summarize(bars)
	metadata["symbol"] = symbol
	respond(c, models.StatusOK, symbol, nil,
		models.NewResponseData(models.DataTypeOHLC, s.App.Config.Location(), metadata, bars))
}

// -----------------------------------------------------------------------------
// Tick runtime
// -----------------------------------------------------------------------------

func (s *FastAPIServer) startTick(c *gin.Context) {
	respond(c, s.App.Tick.Start(), "", nil)
}

func (s *FastAPIServer) stopTick(c *gin.Context) {
	respond(c, s.App.Tick.Stop(), "", nil)
}

func (s *FastAPIServer) tickStatus(c *gin.Context) {
	st := s.App.Tick.Status()
	metadata := st.Metadata()
	metadata["stored"] = s.App.Tick.Stored()
	respond(c, models.StatusOK, st.Status, nil,
		models.NewResponseData(models.DataTypeStatus, s.App.Config.Location(), metadata, nil))
}

// -----------------------------------------------------------------------------
// Runtime config
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getInfo(c *gin.Context) {
	persisted, err := s.App.Store.LoadRuntimeConfig(c.Request.Context(), s.App.OHLC.Status().Name)
	if err != nil {
		respond(c, models.StatusInternalServerError, "", err)
		return
	}

	respond(c, models.StatusOK, "", nil, models.NewResponseData(
		models.DataTypeInfo, s.App.Config.Location(),
		map[string]interface{}{"name": s.App.Config.Name, "persisted": persisted.Info()},
		s.App.OHLC.Info(),
	))
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) putInfo(c *gin.Context) {
	if err := s.App.OHLC.Save(c.Request.Context()); err != nil {
		respond(c, models.StatusInternalServerError, "", err)
		return
	}
	respond(c, models.StatusAccepted, "", nil, models.NewResponseData(
		models.DataTypeInfo, s.App.Config.Location(),
		map[string]interface{}{"name": s.App.Config.Name}, s.App.OHLC.Info(),
	))
}
