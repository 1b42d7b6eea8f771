package simulated

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
	"ta-fetcher/src/utils"
)

const smaWindow = 5

// Connector is an in-process vendor producing deterministic bars and ticks.
// Subscriptions deliver their history asynchronously after Delay.
type Connector struct {
	Logger   *logger.Logger
	Location *time.Location
	Calendar *utils.TradingCalendar
	Delay    time.Duration
	Now      func() time.Time

	callbacks atomic.Value // interfaces.ICallbacks
	loggedIn  atomic.Bool

	mu     sync.Mutex
	active map[string]models.MSubscriptionKey
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
}

// -----------------------------------------------------------------------------

func NewConnector(loc *time.Location, cal *utils.TradingCalendar, log *logger.Logger) *Connector {
	if loc == nil {
		loc = time.UTC
	}
	return &Connector{
		Logger:   log,
		Location: loc,
		Calendar: cal,
		Delay:    50 * time.Millisecond,
		Now:      time.Now,
		active:   make(map[string]models.MSubscriptionKey),
		closed:   make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

func (c *Connector) Name() string { return "simulated" }

func (c *Connector) SetCallbacks(cb interfaces.ICallbacks) {
	c.callbacks.Store(cb)
}

func (c *Connector) cb() interfaces.ICallbacks {
	cb, _ := c.callbacks.Load().(interfaces.ICallbacks)
	return cb
}

// -----------------------------------------------------------------------------

// async runs fn after Delay unless the connector closes first.
func (c *Connector) async(fn func(cb interfaces.ICallbacks)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-c.closed:
			return
		case <-time.After(c.Delay):
		}
		if cb := c.cb(); cb != nil {
			fn(cb)
		}
	}()
}

// -----------------------------------------------------------------------------

func (c *Connector) Login(ctx context.Context, username, password string) error {
	if c.cb() == nil {
		return fmt.Errorf("callbacks not set")
	}
	c.async(func(cb interfaces.ICallbacks) {
		c.loggedIn.Store(true)
		cb.OnConnStatus(true)
	})
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connector) Subscribe(key models.MSubscriptionKey) error {
	if !c.loggedIn.Load() {
		return fmt.Errorf("not logged in")
	}
	if _, ok := models.IndicatorSpecs[key.IndicatorType]; !ok {
		return fmt.Errorf("unsupported indicator %s", key.IndicatorType)
	}

	c.mu.Lock()
	c.active[key.ProductID] = key
	c.mu.Unlock()

	c.async(func(cb interfaces.ICallbacks) {
		batch := c.History(key)
		cb.OnRcvDone(key.IndicatorType, batch)
		if n := len(batch); n > 0 {
			cb.OnUpdate(key.IndicatorType, batch[n-1], batch[n-1])
		}
	})
	return nil
}

// -----------------------------------------------------------------------------

func (c *Connector) Unsubscribe(key models.MSubscriptionKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.active[key.ProductID]; !ok {
		return fmt.Errorf("%s not subscribed", key.ProductID)
	}
	delete(c.active, key.ProductID)
	return nil
}

// -----------------------------------------------------------------------------

// History generates the bars of key from its start date up to now.
func (c *Connector) History(key models.MSubscriptionKey) []models.MIndicatorResult {
	now := c.Now().In(c.Location)
	step := barMinutes(key.BarInterval)
	base := basePrice(key.ProductID)

	var results []models.MIndicatorResult
	var closes []float64

	for _, day := range c.tradingDays(key.StartDate, now) {
		date := day.Year()*10000 + int(day.Month())*100 + day.Day()
		open := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, c.Location)

		for m := step; m <= utils.BarsPerSession; m += step {
			at := open.Add(time.Duration(m) * time.Minute)
			if at.After(now) {
				break
			}

			n := float64(len(closes))
			price := math.Round((base+5*math.Sin(n/40)+0.5*math.Cos(n/3))*100) / 100
			prev := price
			if len(closes) > 0 {
				prev = closes[len(closes)-1]
			}
			closes = append(closes, price)

			sn := at.Hour()*100 + at.Minute()
			bar := models.MOHLCRow{
				Datetime:   at,
				Date:       date,
				Product:    key.ProductID,
				TimeSn:     sn,
				TimeSnDply: sn,
				Quantity:   int64(10 + len(closes)%7),
				Volume:     int64(1000 + 37*(len(closes)%11)),
				OPrice:     prev,
				HPrice:     math.Max(prev, price) + 0.5,
				LPrice:     math.Min(prev, price) - 0.5,
				CPrice:     price,
			}

			values := map[string]float64{"Value": mean(closes, smaWindow)}
			results = append(results, models.MIndicatorResult{
				Kind:   key.IndicatorType,
				Bar:    bar,
				Values: models.IndicatorSpecs[key.IndicatorType].Build(values),
			})
		}
	}
	return results
}

// -----------------------------------------------------------------------------

func (c *Connector) tradingDays(from, to time.Time) []time.Time {
	if c.Calendar != nil {
		return c.Calendar.TradingDays(from, to)
	}
	var days []time.Time
	from, to = from.In(c.Location), to.In(c.Location)
	for d := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, c.Location); !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

// -----------------------------------------------------------------------------

// HistoricalTicks returns DATA_ERROR for a day that is not complete yet and
// EMPTY_DATA for a non-trading day.
func (c *Connector) HistoricalTicks(ctx context.Context, product string, date time.Time) ([]models.MTickRow, models.RtCode, error) {
	if !c.loggedIn.Load() {
		return nil, models.RtAPIError, fmt.Errorf("not logged in")
	}
	if err := ctx.Err(); err != nil {
		return nil, models.RtFail, err
	}

	day := date.In(c.Location)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.Location)
	if utils.IsToday(day, c.Now()) {
		return nil, models.RtDataError, nil
	}
	if len(c.tradingDays(day, day)) == 0 {
		return nil, models.RtEmptyData, nil
	}

	base := basePrice(product)
	rows := make([]models.MTickRow, 0, 60)
	for i := 0; i < 60; i++ {
		// One trade every 4.5 minutes from 09:00:00.250
		secs := 9*3600 + i*270
		matchTime := float64(secs/3600*10000+secs%3600/60*100+secs%60) + 0.25
		dt, err := models.TickDatetime(matchTime, day)
		if err != nil {
			return nil, models.RtDataError, err
		}
		price := math.Round((base+math.Sin(float64(i)/5))*100) / 100
		rows = append(rows, models.MTickRow{
			Datetime:      dt,
			Prod:          product,
			Sequence:      int64(i + 1),
			MatchTime:     matchTime,
			MatchPrice:    price,
			MatchQuantity: int64(1 + i%5),
			MatchVolume:   int64(1 + i),
			BS:            1 + i%2,
			BP1Pre:        price - 0.5,
			SP1Pre:        price + 0.5,
		})
	}
	return rows, models.RtSuccess, nil
}

// -----------------------------------------------------------------------------

func (c *Connector) Close() error {
	c.once.Do(func() { close(c.closed) })
	c.wg.Wait()
	c.loggedIn.Store(false)
	return nil
}

// -----------------------------------------------------------------------------

func barMinutes(b models.BarKind) int {
	switch b {
	case models.BarK3m:
		return 3
	case models.BarK5m:
		return 5
	}
	return 1
}

func basePrice(product string) float64 {
	h := fnv.New32a()
	h.Write([]byte(product))
	return float64(20 + h.Sum32()%900)
}

func mean(values []float64, window int) float64 {
	if len(values) < window {
		window = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return math.Round(sum/float64(window)*100) / 100
}
