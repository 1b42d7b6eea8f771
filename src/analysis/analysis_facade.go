package analysis

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"ta-fetcher/src/analysis/core"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
)

const secondsPerDay = 24 * 60 * 60

type AnalysisFacade struct {
	Config   *models.MConfig
	Location *time.Location
	Logger   *logger.Logger

	closeSn int
}

// -----------------------------------------------------------------------------

func NewAnalysisFacade(cfg *models.MConfig, loc *time.Location, log *logger.Logger) *AnalysisFacade {
	if loc == nil {
		loc = time.UTC
	}

	closeHour := cfg.Market.CloseHour
	if closeHour == "" {
		closeHour = "13:30"
	}
	closeSn, err := strconv.Atoi(strings.ReplaceAll(closeHour, ":", ""))
	if err != nil {
		closeSn = 1330
	}

	return &AnalysisFacade{
		Config:   cfg,
		Location: loc,
		Logger:   log,
		closeSn:  closeSn,
	}
}

// -----------------------------------------------------------------------------

// zoneOffset returns the offset of the exchange zone at t in seconds.
func (a *AnalysisFacade) zoneOffset(t time.Time) int64 {
	_, offset := t.In(a.Location).Zone()
	return int64(offset)
}

// -----------------------------------------------------------------------------

func sortedByTime(rows []models.MOHLCRow) ([]models.MOHLCRow, []int64) {
	sorted := make([]models.MOHLCRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Datetime.Before(sorted[j].Datetime)
	})

	timestamps := make([]int64, len(sorted))
	for i, r := range sorted {
		timestamps[i] = r.Datetime.Unix()
	}
	return sorted, timestamps
}

// -----------------------------------------------------------------------------

func fold(group []models.MOHLCRow) core.OHLCV {
	n := len(group)
	opens, highs, lows, closes := make([]float64, n), make([]float64, n), make([]float64, n), make([]float64, n)
	quantities, volumes := make([]int64, n), make([]int64, n)
	for i, r := range group {
		opens[i], highs[i], lows[i], closes[i] = r.OPrice, r.HPrice, r.LPrice, r.CPrice
		quantities[i], volumes[i] = r.Quantity, r.Volume
	}
	return core.ComputeOHLCV(opens, highs, lows, closes, quantities, volumes)
}

// -----------------------------------------------------------------------------

// DailyRollup folds intraday bars of one product into one bar per exchange
// day, stamped at the session close.
func (a *AnalysisFacade) DailyRollup(rows []models.MOHLCRow) []models.MOHLCRow {
	if len(rows) == 0 {
		return []models.MOHLCRow{}
	}

	sorted, timestamps := sortedByTime(rows)
	r := &TimeSeriesResampler{Offset: a.zoneOffset(sorted[0].Datetime)}

	var daily []models.MOHLCRow
	for _, group := range ResampleData(r, timestamps, sorted, secondsPerDay) {
		if len(group) == 0 {
			continue
		}
		bar := fold(group)

		local := group[0].Datetime.In(a.Location)
		date, _ := strconv.Atoi(local.Format(models.DateLayout))
		closeAt := time.Date(local.Year(), local.Month(), local.Day(), a.closeSn/100, a.closeSn%100, 0, 0, a.Location)

		daily = append(daily, models.MOHLCRow{
			Datetime:   closeAt,
			Date:       date,
			Product:    group[0].Product,
			TimeSn:     a.closeSn,
			TimeSnDply: a.closeSn,
			Quantity:   bar.Quantity,
			Volume:     bar.Volume,
			OPrice:     bar.Open,
			HPrice:     bar.High,
			LPrice:     bar.Low,
			CPrice:     bar.Close,
		})
	}
	return daily
}

// -----------------------------------------------------------------------------

// Resample folds intraday bars into bars of the given width in minutes. Each
// output bar carries the time of the last input bar it contains.
func (a *AnalysisFacade) Resample(rows []models.MOHLCRow, minutes int) []models.MOHLCRow {
	if minutes <= 1 || len(rows) == 0 {
		return rows
	}

	sorted, timestamps := sortedByTime(rows)
	r := &TimeSeriesResampler{Offset: a.zoneOffset(sorted[0].Datetime)}

	var out []models.MOHLCRow
	for _, group := range ResampleData(r, timestamps, sorted, int64(minutes)*60) {
		if len(group) == 0 {
			continue
		}
		bar := fold(group)
		last := group[len(group)-1]
		last.OPrice, last.HPrice, last.LPrice, last.CPrice = bar.Open, bar.High, bar.Low, bar.Close
		last.Quantity, last.Volume = bar.Quantity, bar.Volume
		out = append(out, last)
	}
	return out
}

// -----------------------------------------------------------------------------

// Summarize describes the newest daily bar against the preceding ones.
func (a *AnalysisFacade) Summarize(daily []models.MOHLCRow) map[string]interface{} {
	summary := map[string]interface{}{"days": len(daily)}
	if len(daily) == 0 {
		return summary
	}

	sorted, _ := sortedByTime(daily)
	last := sorted[len(sorted)-1]
	summary["last_close"] = last.CPrice
	summary["last_date"] = last.Date

	if len(sorted) < 2 {
		return summary
	}

	closes := make([]float64, len(sorted))
	volumes := make([]float64, len(sorted))
	for i, r := range sorted {
		closes[i] = r.CPrice
		volumes[i] = float64(r.Volume)
	}

	history := volumes[:len(volumes)-1]
	mean, std := core.CalculateMeanStd(history)

	summary["change_pct"] = core.CalculateChangePercent(last.CPrice, sorted[len(sorted)-2].CPrice)
	summary["volume_zscore"] = core.CalculateZScore(volumes[len(volumes)-1], mean, std)
	summary["price_volume_corr"] = core.CalculateCorrelation(closes, volumes)
	return summary
}
