package utils

import (
	"context"
	"sync"
	"time"

	"ta-fetcher/src/logger"
)

// MarketScheduler fires a job once per trading day after the market closes.
type MarketScheduler struct {
	Calendar *TradingCalendar
	Logger   *logger.Logger
	Interval time.Duration

	mu      sync.Mutex
	lastRun string
	now     func() time.Time
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(cal *TradingCalendar, l *logger.Logger) *MarketScheduler {
	return &MarketScheduler{
		Calendar: cal,
		Logger:   l,
		Interval: time.Minute,
		now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

// MarketOpen reports whether the market is open right now.
func (ms *MarketScheduler) MarketOpen() bool {
	return ms.Calendar.IsOpenOnMinute(ms.now())
}

// -----------------------------------------------------------------------------

// Due reports whether job should run at now, and marks the day as run if so.
func (ms *MarketScheduler) Due(now time.Time) bool {
	if !ms.Calendar.AfterClose(now) {
		return false
	}

	day := ms.Calendar.local(now).Format("20060102")

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.lastRun == day {
		return false
	}
	ms.lastRun = day
	return true
}

// -----------------------------------------------------------------------------

// Run checks the calendar every Interval and calls job once per trading day
// after close, until ctx is done.
func (ms *MarketScheduler) Run(ctx context.Context, job func(ctx context.Context)) {
	ticker := time.NewTicker(ms.Interval)
	defer ticker.Stop()

	ms.Logger.Info("MarketScheduler: auto-start after close enabled (check every %s)", ms.Interval)

	for {
		if ms.Due(ms.now()) {
			ms.Logger.Info("MarketScheduler: market closed, running scheduled job")
			job(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
