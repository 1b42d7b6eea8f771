package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"ta-fetcher/src/analysis"
	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
	"ta-fetcher/src/utils"

	"github.com/google/uuid"
)

// ConnStatusSink receives login outcomes (the vendor session).
type ConnStatusSink interface {
	SetConnStatus(ok bool)
}

// -----------------------------------------------------------------------------
// CallbackBridge turns vendor callbacks into persistence jobs and hands the
// outcome of each historical batch to the coordinator.
// -----------------------------------------------------------------------------

type CallbackBridge struct {
	Store     interfaces.IResultSink
	Session   ConnStatusSink
	Handoff   *utils.Handoff
	Cache     *utils.MemoryManager
	Rollup    *analysis.AnalysisFacade
	Publisher interfaces.IEventPublisher
	Location  *time.Location
	Logger    *logger.Logger

	pool     *WorkerPool
	handlers map[models.IndicatorKind]resultHandler
	runState atomic.Value // interfaces.IRunState
}

// -----------------------------------------------------------------------------

func NewCallbackBridge(
	cfg *models.MConfig,
	store interfaces.IResultSink,
	session ConnStatusSink,
	handoff *utils.Handoff,
	cache *utils.MemoryManager,
	rollup *analysis.AnalysisFacade,
	loc *time.Location,
	log *logger.Logger,
) *CallbackBridge {
	if loc == nil {
		loc = time.UTC
	}
	return &CallbackBridge{
		Store:    store,
		Session:  session,
		Handoff:  handoff,
		Cache:    cache,
		Rollup:   rollup,
		Location: loc,
		Logger:   log,
		pool:     NewWorkerPool(cfg.Bridge.Workers, cfg.Bridge.QueueSize, logger.NewLogger(cfg, "WorkerPool")),
		handlers: newHandlerTable(),
	}
}

// -----------------------------------------------------------------------------

// SetRunState registers the coordinator whose running state gates token posting.
func (b *CallbackBridge) SetRunState(rs interfaces.IRunState) {
	b.runState.Store(rs)
}

func (b *CallbackBridge) running() bool {
	rs, _ := b.runState.Load().(interfaces.IRunState)
	return rs != nil && rs.IsRunning()
}

// -----------------------------------------------------------------------------
// ICallbacks
// -----------------------------------------------------------------------------

func (b *CallbackBridge) OnConnStatus(ok bool) {
	if b.Session != nil {
		b.Session.SetConnStatus(ok)
	}
}

// -----------------------------------------------------------------------------

func (b *CallbackBridge) OnUpdate(kind models.IndicatorKind, pre, last models.MIndicatorResult) {
	if bar, err := last.Bar.WithDatetime(b.Location); err == nil && b.Cache != nil {
		b.Cache.AddBars(bar.Product, bar)
	}

	b.submit(func(ctx context.Context) {
		rows, _, err := b.decode(kind, []models.MIndicatorResult{pre})
		if err != nil {
			b.Logger.Warning("Update for %s dropped: %v", pre.Bar.Product, err)
			return
		}
		if err := b.Store.UpsertOHLC(ctx, rows); err != nil {
			b.Logger.Error("Upsert of %s bar %d failed: %v", pre.Bar.Product, pre.Bar.TimeSn, err)
		}
	})
}

// -----------------------------------------------------------------------------

func (b *CallbackBridge) OnRcvDone(kind models.IndicatorKind, batch []models.MIndicatorResult) {
	b.submit(func(ctx context.Context) {
		b.complete(ctx, kind, batch)
	})
}

// -----------------------------------------------------------------------------

func (b *CallbackBridge) submit(job Job) {
	if !b.pool.Submit(job) {
		b.Logger.Warning("Bridge closed, callback dropped")
	}
}

// -----------------------------------------------------------------------------

// complete stores a historical batch and posts exactly one token for it.
func (b *CallbackBridge) complete(ctx context.Context, kind models.IndicatorKind, batch []models.MIndicatorResult) {
	code := models.RtDataError
	defer func() {
		if r := recover(); r != nil {
			b.Logger.Error("Batch handling panicked: %v", r)
			code = models.RtDataError
		}
		b.post(code)
	}()

	code = b.store(ctx, kind, batch)
}

// -----------------------------------------------------------------------------

func (b *CallbackBridge) store(ctx context.Context, kind models.IndicatorKind, batch []models.MIndicatorResult) models.RtCode {
	if len(batch) == 0 {
		b.Logger.Info("Empty %s batch received", kind)
		return models.RtDataError
	}

	rows, values, err := b.decode(kind, batch)
	if err != nil {
		b.Logger.Error("Batch rejected: %v", err)
		return models.RtDataError
	}
	product := rows[0].Product

	if err := b.Store.UpsertOHLC(ctx, rows); err != nil {
		b.Logger.Error("Upsert of %d %s bars failed: %v", len(rows), product, err)
		return models.RtDataError
	}

	if b.Rollup != nil {
		if daily := b.Rollup.DailyRollup(rows); len(daily) > 0 {
			if err := b.Store.UpsertDailyOHLC(ctx, daily); err != nil {
				b.Logger.Error("Upsert of %d %s daily bars failed: %v", len(daily), product, err)
				return models.RtDataError
			}
		}
	}

	if b.Cache != nil {
		b.Cache.AddBars(product, rows...)
	}

	b.Logger.Debug("Stored %d %s bars for %s", len(rows), kind, product)
	b.publish(models.MStatusEvent{
		Event:  "rcv_done",
		Symbol: product,
		Code:   models.RtSuccess.String(),
		Values: values,
		Extra:  map[string]interface{}{"rows": len(rows), "indicator": kind.String()},
	})
	return models.RtSuccess
}

// -----------------------------------------------------------------------------

func (b *CallbackBridge) post(code models.RtCode) {
	if !b.running() {
		b.Logger.Debug("Coordinator idle, %s token dropped", code)
		return
	}
	if !b.Handoff.Post(code) {
		b.Logger.Warning("Handoff slot occupied, %s token dropped", code)
	}
}

// -----------------------------------------------------------------------------

func (b *CallbackBridge) publish(ev models.MStatusEvent) {
	if b.Publisher == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Source = "CallbackBridge"
	ev.Timestamp = time.Now().UnixMilli()
	b.Publisher.Publish(ev)
}

// -----------------------------------------------------------------------------

// decode validates a batch through the handler of kind and returns its bars
// with Datetime filled, plus the indicator values of the newest result.
func (b *CallbackBridge) decode(kind models.IndicatorKind, batch []models.MIndicatorResult) ([]models.MOHLCRow, map[string]float64, error) {
	h, ok := b.handlers[kind]
	if !ok {
		return nil, nil, fmt.Errorf("no handler for indicator %s", kind)
	}

	rows := make([]models.MOHLCRow, 0, len(batch))
	var values map[string]float64
	for _, r := range batch {
		bar, v, err := h(r, b.Location)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, bar)
		values = v
	}
	return rows, values, nil
}

// -----------------------------------------------------------------------------

// Pending returns the number of queued callback jobs.
func (b *CallbackBridge) Pending() int {
	return b.pool.Pending()
}

// -----------------------------------------------------------------------------

// Close runs the queued jobs and stops the workers.
func (b *CallbackBridge) Close() {
	b.pool.Close()
	done, failed := b.pool.Stats()
	b.Logger.Info("Callback bridge closed (%d jobs done, %d failed)", done, failed)
}
