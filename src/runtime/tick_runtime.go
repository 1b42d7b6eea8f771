package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
	"ta-fetcher/src/utils"

	"golang.org/x/sync/errgroup"
)

const TickRuntimeName = "TickRuntime"

// tickSession is the part of the vendor session the tick pass uses.
type tickSession interface {
	vendorReady
	HistoricalTicks(ctx context.Context, product string, date time.Time) ([]models.MTickRow, models.RtCode, error)
}

// -----------------------------------------------------------------------------
// TickRuntime backfills historical trades day by day for every symbol.
// -----------------------------------------------------------------------------

type TickRuntime struct {
	Config    *models.MConfig
	Store     interfaces.ITickSink
	Session   tickSession
	Catalog   interfaces.ISymbolCatalog
	Calendar  *utils.TradingCalendar
	Publisher interfaces.IEventPublisher
	Location  *time.Location
	Logger    *logger.Logger
	Now       func() time.Time

	ctrl    sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.RWMutex
	updating string
	stored   atomic.Int64
}

// -----------------------------------------------------------------------------

func NewTickRuntime(
	cfg *models.MConfig,
	store interfaces.ITickSink,
	session tickSession,
	catalog interfaces.ISymbolCatalog,
	cal *utils.TradingCalendar,
	loc *time.Location,
	log *logger.Logger,
) *TickRuntime {
	if loc == nil {
		loc = time.UTC
	}
	return &TickRuntime{
		Config:   cfg,
		Store:    store,
		Session:  session,
		Catalog:  catalog,
		Calendar: cal,
		Location: loc,
		Logger:   log,
		Now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

func (r *TickRuntime) Start() models.StatusCode {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()

	if r.IsRunning() {
		return models.StatusServiceIsRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.cancel = cancel
	r.stored.Store(0)
	r.running.Store(true)
	go r.task(ctx, r.stop, r.done)

	r.Logger.Info("Tick backfill started")
	return models.StatusOK
}

// -----------------------------------------------------------------------------

func (r *TickRuntime) Stop() models.StatusCode {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()

	if !r.IsRunning() {
		return models.StatusServiceNotRunning
	}
	close(r.stop)
	r.cancel()
	<-r.done

	r.Logger.Info("Tick backfill stopped")
	publish(r.Publisher, TickRuntimeName, "stopped", "", "", r.Status())
	return models.StatusAccepted
}

// -----------------------------------------------------------------------------

func (r *TickRuntime) IsRunning() bool {
	return r.running.Load()
}

// -----------------------------------------------------------------------------

func (r *TickRuntime) Status() models.MStatusData {
	active := r.IsRunning()
	status := statusStopped
	if active {
		r.mu.RLock()
		if r.updating != "" {
			status = statusUpdating + r.updating
		} else {
			status = statusWaiting
		}
		r.mu.RUnlock()
	}
	return models.MStatusData{Name: TickRuntimeName, Active: active, Status: status}
}

// -----------------------------------------------------------------------------

// CheckTime reports whether now falls within the configured market hours.
func (r *TickRuntime) CheckTime(now time.Time) bool {
	if r.Calendar == nil {
		return true
	}
	return r.Calendar.CheckTime(now)
}

// -----------------------------------------------------------------------------

// Stored returns the number of ticks written by the current or last pass.
func (r *TickRuntime) Stored() int64 {
	return r.stored.Load()
}

// -----------------------------------------------------------------------------

func (r *TickRuntime) task(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("Tick task panicked: %v", rec)
		}
		r.running.Store(false)
		close(done)
	}()

	interval := time.Duration(r.Config.OHLC.VendorWaitInterval) * time.Millisecond
	if !waitVendor(r.Session, r.Config.OHLC.VendorWaitAttempts, interval, stop) {
		r.Logger.Warning("Vendor session not ready, tick pass abandoned")
		return
	}

	symbols, err := r.Catalog.List(ctx)
	if err != nil {
		r.Logger.Error("Failed to list symbols: %v", err)
		return
	}

	limit := r.Config.Tick.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, symbol := range symbols {
		if gctx.Err() != nil {
			break
		}
		symbol := symbol
		g.Go(func() error {
			r.backfill(gctx, symbol)
			return nil
		})
	}
	g.Wait()

	if ctx.Err() == nil {
		r.Logger.Info("Tick pass complete (%d symbols, %d ticks)", len(symbols), r.stored.Load())
		publish(r.Publisher, TickRuntimeName, "completed", "", "", models.MStatusData{
			Name: TickRuntimeName, Status: statusStopped,
		})
	}
}

// -----------------------------------------------------------------------------

// backfill fetches every trading day of symbol from its resume point through today.
func (r *TickRuntime) backfill(ctx context.Context, symbol string) {
	r.mu.Lock()
	r.updating = symbol
	r.mu.Unlock()

	now := r.Now().In(r.Location)
	from := midnight(now, r.Location).AddDate(0, 0, -r.Config.Tick.StartDateOffsetDays)

	latest, err := r.Store.LatestTickDate(ctx, symbol)
	if err != nil {
		r.Logger.Warning("Latest tick of %s unknown: %v", symbol, err)
	} else if latest != nil {
		if next := midnight(*latest, r.Location).AddDate(0, 0, 1); next.After(from) {
			from = next
		}
	}

	for _, day := range r.days(from, now) {
		if ctx.Err() != nil {
			return
		}

		rows, code, err := r.Session.HistoricalTicks(ctx, symbol, day)
		switch {
		case err != nil:
			r.Logger.Warning("%s: %s %s: %v", models.RtAPIError, symbol, day.Format(models.DateLayout), err)
			continue
		case code == models.RtDataError:
			r.Logger.Info("%s is up to date", symbol)
			continue
		case code == models.RtEmptyData:
			r.Logger.Debug("%s: no trades on %s", symbol, day.Format(models.DateLayout))
			continue
		case code != models.RtSuccess:
			r.Logger.Warning("%s: %s %s", code, symbol, day.Format(models.DateLayout))
			continue
		}

		if len(rows) == 0 {
			continue
		}
		if err := r.Store.UpsertTicks(ctx, symbol, rows); err != nil {
			r.Logger.Error("Failed to store %d ticks of %s: %v", len(rows), symbol, err)
			continue
		}
		r.stored.Add(int64(len(rows)))
		r.Logger.Debug("Stored %d ticks of %s on %s", len(rows), symbol, day.Format(models.DateLayout))
	}
	publish(r.Publisher, TickRuntimeName, "symbol_done", symbol, models.RtSuccess.String(), r.Status())
}

// -----------------------------------------------------------------------------

func (r *TickRuntime) days(from, to time.Time) []time.Time {
	if r.Calendar != nil {
		return r.Calendar.TradingDays(from, to)
	}
	var out []time.Time
	for d := midnight(from, r.Location); !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
