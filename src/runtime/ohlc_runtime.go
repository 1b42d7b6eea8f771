package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"ta-fetcher/src/helpers"
	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
	"ta-fetcher/src/utils"
)

const OHLCRuntimeName = "OHLCRuntime"

// ohlcSession is the part of the vendor session the coordinator drives.
type ohlcSession interface {
	vendorReady
	Key(symbol string, start time.Time) models.MSubscriptionKey
	SubscribeKey(key models.MSubscriptionKey) error
	UnsubscribeKey(key models.MSubscriptionKey) error
}

// pass describes one run of the coordinator task.
type pass struct {
	universe func(ctx context.Context) ([]string, error)
	resume   bool               // honor and persist the cursor
	result   chan models.RtCode // last token of the pass, for one-shot runs
}

// -----------------------------------------------------------------------------
// OHLCRuntime walks the symbol universe one subscription at a time, waiting
// for the callback bridge to hand back each symbol's completion token.
// -----------------------------------------------------------------------------

type OHLCRuntime struct {
	Config    *models.MConfig
	Store     interfaces.IConfigStore
	Session   ohlcSession
	Catalog   interfaces.ISymbolCatalog
	Handoff   *utils.Handoff
	Calendar  *utils.TradingCalendar
	Publisher interfaces.IEventPublisher
	Location  *time.Location
	Logger    *logger.Logger
	Now       func() time.Time

	ctrl    sync.Mutex // serializes Start, Stop and one-shot runs
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	mu      sync.RWMutex
	state   models.MRuntimeConfig
	current string // symbol in flight, for Status
}

// -----------------------------------------------------------------------------

func NewOHLCRuntime(
	cfg *models.MConfig,
	store interfaces.IConfigStore,
	session ohlcSession,
	catalog interfaces.ISymbolCatalog,
	handoff *utils.Handoff,
	cal *utils.TradingCalendar,
	loc *time.Location,
	log *logger.Logger,
) *OHLCRuntime {
	if loc == nil {
		loc = time.UTC
	}
	return &OHLCRuntime{
		Config:   cfg,
		Store:    store,
		Session:  session,
		Catalog:  catalog,
		Handoff:  handoff,
		Calendar: cal,
		Location: loc,
		Logger:   log,
		Now:      time.Now,
		state:    models.MRuntimeConfig{Name: OHLCRuntimeName},
	}
}

// -----------------------------------------------------------------------------
// Control
// -----------------------------------------------------------------------------

// Start launches a backfill pass over the catalog, resuming at the cursor.
func (r *OHLCRuntime) Start() models.StatusCode {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()

	if r.IsRunning() {
		return models.StatusServiceIsRunning
	}
	r.launch(pass{universe: r.Catalog.List, resume: true})
	r.Logger.Info("Backfill pass started")
	return models.StatusOK
}

// -----------------------------------------------------------------------------

// Stop clears the run signal, waits for the task to exit and persists the cursor.
func (r *OHLCRuntime) Stop() models.StatusCode {
	return r.halt(false)
}

// Shutdown stops the task for process exit. The persisted is_active flag is
// kept so the next process resumes the pass on Load.
func (r *OHLCRuntime) Shutdown() models.StatusCode {
	return r.halt(true)
}

func (r *OHLCRuntime) halt(keepActive bool) models.StatusCode {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()
	return r.haltLocked(keepActive)
}

// haltLocked joins the running task. Callers hold ctrl.
func (r *OHLCRuntime) haltLocked(keepActive bool) models.StatusCode {
	if !r.IsRunning() {
		return models.StatusServiceNotRunning
	}
	close(r.stop)
	<-r.done

	if !keepActive {
		r.mu.Lock()
		r.state.IsActive = false
		r.mu.Unlock()
		if err := r.Save(context.Background()); err != nil {
			r.Logger.Error("Failed to persist cursor on stop: %v", err)
		}
	}

	r.Logger.Info("Backfill pass stopped")
	publish(r.Publisher, OHLCRuntimeName, "stopped", "", "", r.Status())
	return models.StatusAccepted
}

// -----------------------------------------------------------------------------

// IsRunning reports whether a task is alive.
func (r *OHLCRuntime) IsRunning() bool {
	return r.running.Load()
}

// -----------------------------------------------------------------------------

// Status reads the in-memory cursor; it never blocks on the task. Before the
// first symbol is reached it reports the cursor being resumed, if any.
func (r *OHLCRuntime) Status() models.MStatusData {
	active := r.IsRunning()
	status := statusStopped
	if active {
		r.mu.RLock()
		symbol := r.current
		if symbol == "" && r.state.UpdatingSymbol != nil {
			symbol = *r.state.UpdatingSymbol
		}
		r.mu.RUnlock()
		status = statusUpdating + symbol
	}
	return models.MStatusData{Name: OHLCRuntimeName, Active: active, Status: status}
}

// -----------------------------------------------------------------------------

// CheckTime reports whether now falls within the configured market hours.
func (r *OHLCRuntime) CheckTime(now time.Time) bool {
	if r.Calendar == nil {
		return true
	}
	return r.Calendar.CheckTime(now)
}

// -----------------------------------------------------------------------------
// Persisted state
// -----------------------------------------------------------------------------

// Load overlays the persisted state and resumes a pass that was active when
// the process went down. While a task runs the in-memory state is kept.
func (r *OHLCRuntime) Load(ctx context.Context) (models.MRuntimeConfig, error) {
	if r.IsRunning() {
		return r.snapshot(), nil
	}

	stored, err := r.Store.LoadRuntimeConfig(ctx, OHLCRuntimeName)
	if err != nil {
		return r.snapshot(), fmt.Errorf("load runtime config: %w", err)
	}

	r.mu.Lock()
	r.state.IsActive = stored.IsActive
	r.state.UpdatingSymbol = stored.UpdatingSymbol
	r.mu.Unlock()

	if stored.IsActive {
		r.Logger.Info("Resuming backfill pass at %v", r.Info()[models.KeyUpdatingSymbol])
		r.Start()
	}
	return r.snapshot(), nil
}

// -----------------------------------------------------------------------------

// Save persists the in-memory state.
func (r *OHLCRuntime) Save(ctx context.Context) error {
	return r.Store.SaveRuntimeConfig(ctx, r.snapshot())
}

// -----------------------------------------------------------------------------

// Info returns the state as served by /info.
func (r *OHLCRuntime) Info() map[string]interface{} {
	return r.snapshot().Info()
}

// -----------------------------------------------------------------------------

func (r *OHLCRuntime) snapshot() models.MRuntimeConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := r.state
	if r.state.UpdatingSymbol != nil {
		s := *r.state.UpdatingSymbol
		out.UpdatingSymbol = &s
	}
	return out
}

// -----------------------------------------------------------------------------

// track records the symbol in flight. Resumable passes also move the cursor.
func (r *OHLCRuntime) track(p pass, symbol *string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = ""
	if symbol != nil {
		r.current = *symbol
	}
	if p.resume {
		r.state.UpdatingSymbol = symbol
		r.state.IsActive = active
	}
}

// clearCursor marks the pass complete once its last symbol is done.
func (r *OHLCRuntime) clearCursor(p pass) {
	if !p.resume {
		return
	}
	r.mu.Lock()
	r.state.UpdatingSymbol = nil
	r.mu.Unlock()
}

// -----------------------------------------------------------------------------
// One-shot
// -----------------------------------------------------------------------------

// BackfillSymbol runs a single-symbol pass and waits for it. The persisted
// cursor is left untouched. TASK_IS_RUNNING is returned while a pass runs.
func (r *OHLCRuntime) BackfillSymbol(ctx context.Context, symbol string) (models.StatusCode, models.RtCode) {
	r.ctrl.Lock()
	if r.IsRunning() {
		r.ctrl.Unlock()
		return models.StatusTaskIsRunning, models.RtFail
	}
	result := make(chan models.RtCode, 1)
	r.launch(pass{
		universe: func(context.Context) ([]string, error) { return []string{symbol}, nil },
		result:   result,
	})
	done := r.done
	r.ctrl.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		if r.stopLaunched(done) {
			return models.StatusRequestRejected, models.RtFail
		}
	}

	select {
	case code := <-result:
		return models.StatusOK, code
	default:
		return models.StatusServiceUnavailable, models.RtAPIError
	}
}

// stopLaunched stops the task identified by done if it is still the current
// one. It reports false when that task already finished on its own.
func (r *OHLCRuntime) stopLaunched(done chan struct{}) bool {
	r.ctrl.Lock()
	defer r.ctrl.Unlock()

	select {
	case <-done:
		return false
	default:
	}
	if r.done != done {
		return false
	}
	return r.haltLocked(false) == models.StatusAccepted
}

// -----------------------------------------------------------------------------
// Task
// -----------------------------------------------------------------------------

// launch starts the task goroutine. Callers hold ctrl.
func (r *OHLCRuntime) launch(p pass) {
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running.Store(true)
	go r.task(p, r.stop, r.done)
}

// -----------------------------------------------------------------------------

func (r *OHLCRuntime) task(p pass, stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		if rec := recover(); rec != nil {
			r.Logger.Error("Backfill task panicked: %v", rec)
		}
		r.mu.Lock()
		r.current = ""
		r.mu.Unlock()
		r.running.Store(false)
		close(done)
	}()

	ctx := context.Background()
	interval := time.Duration(r.Config.OHLC.VendorWaitInterval) * time.Millisecond
	if !waitVendor(r.Session, r.Config.OHLC.VendorWaitAttempts, interval, stop) {
		r.Logger.Warning("Vendor session not ready, backfill pass abandoned")
		return
	}

	symbols, err := p.universe(ctx)
	if err != nil {
		r.Logger.Error("Failed to list symbols: %v", err)
		return
	}
	if len(symbols) == 0 {
		r.Logger.Warning("Symbol universe is empty")
		return
	}

	first := 0
	if p.resume {
		first = r.resumeIndex(symbols)
	}
	publish(r.Publisher, OHLCRuntimeName, "started", symbols[first], "", r.Status())

	startDate := r.Now().In(r.Location).AddDate(0, 0, -r.Config.OHLC.StartDateOffsetDays)
	timeout := time.Duration(r.Config.OHLC.SymbolTimeout) * time.Second
	last := models.RtFail

	for i := first; i < len(symbols); i++ {
		symbol := symbols[i]

		select {
		case <-stop:
			r.Logger.Info("Run signal cleared before %s", symbol)
			return
		default:
		}

		cursor := symbol
		r.track(p, &cursor, true)
		if p.resume {
			if err := r.Save(ctx); err != nil {
				r.Logger.Error("Failed to persist cursor %s, pass aborted: %v", symbol, err)
				return
			}
		}
		publish(r.Publisher, OHLCRuntimeName, "updating", symbol, "", r.Status())

		code, aborted := r.process(ctx, p, symbol, startDate, timeout, stop, i == len(symbols)-1)
		if aborted {
			return
		}
		last = code
		publish(r.Publisher, OHLCRuntimeName, "symbol_done", symbol, code.String(), r.Status())
	}

	r.track(p, nil, false)
	if p.resume {
		if err := r.Save(ctx); err != nil {
			r.Logger.Error("Failed to persist completed pass: %v", err)
		}
	}
	if p.result != nil {
		p.result <- last
	}
	r.Logger.Info("Backfill pass complete (%d symbols)", len(symbols)-first)
	publish(r.Publisher, OHLCRuntimeName, "completed", "", last.String(), models.MStatusData{
		Name: OHLCRuntimeName, Status: statusStopped,
	})
}

// -----------------------------------------------------------------------------

// process subscribes symbol, waits for its token and unsubscribes. aborted is
// true when the wait was interrupted by the run signal.
func (r *OHLCRuntime) process(ctx context.Context, p pass, symbol string, startDate time.Time, timeout time.Duration, stop <-chan struct{}, lastSymbol bool) (code models.RtCode, aborted bool) {
	key := r.Session.Key(symbol, startDate)

	r.Handoff.Drain()
	if err := r.Session.SubscribeKey(key); err != nil {
		r.Logger.Warning("%s: subscribe %s from %s failed: %v", models.RtAPIError, symbol, key.DateBegin(), err)
		if lastSymbol {
			r.clearCursor(p)
		}
		return models.RtAPIError, false
	}
	r.Logger.Debug("Subscribed %s %s %s from %s", symbol, key.IndicatorType, key.BarInterval, key.DateBegin())

	code, err := r.Handoff.Wait(ctx, stop, timeout)
	switch {
	case err == nil && code == models.RtSuccess:
		r.Logger.Info("%s backfilled", symbol)
	case err == nil:
		r.Logger.Info("%s: %s", symbol, code)
	case errors.Is(err, helpers.ErrHandoffTimeout):
		r.Logger.Warning("No completion for %s within %s, moving on", symbol, timeout)
		code = models.RtDataError
	default:
		r.Logger.Info("Wait for %s interrupted: %v", symbol, err)
		r.unsubscribe(key)
		return models.RtFail, true
	}

	if lastSymbol {
		r.clearCursor(p)
	}
	r.unsubscribe(key)
	return code, false
}

// -----------------------------------------------------------------------------

func (r *OHLCRuntime) unsubscribe(key models.MSubscriptionKey) {
	if err := r.Session.UnsubscribeKey(key); err != nil {
		r.Logger.Warning("%s: unsubscribe %s failed: %v", models.RtAPIError, key.ProductID, err)
	}
}

// -----------------------------------------------------------------------------

// resumeIndex returns the position of the cursor in symbols, or 0.
func (r *OHLCRuntime) resumeIndex(symbols []string) int {
	r.mu.RLock()
	cursor := r.state.UpdatingSymbol
	r.mu.RUnlock()

	if cursor == nil {
		return 0
	}
	for i, s := range symbols {
		if s == *cursor {
			r.Logger.Info("Resuming at %s (%d/%d)", s, i+1, len(symbols))
			return i
		}
	}
	r.Logger.Warning("Cursor %s not in universe, starting from %s", *cursor, symbols[0])
	return 0
}
