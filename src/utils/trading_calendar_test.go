package utils

import (
	"testing"
	"time"

	"ta-fetcher/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taipei(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	return loc
}

func fallbackCalendar(t *testing.T) *TradingCalendar {
	tc := NewTradingCalendar("none", taipei(t), "09:00", "13:30")
	require.True(t, tc.Fallback)
	return tc
}

func TestCheckTime(t *testing.T) {
	tc := fallbackCalendar(t)
	loc := taipei(t)

	assert.False(t, tc.CheckTime(time.Date(2024, 1, 2, 8, 59, 0, 0, loc)))
	assert.True(t, tc.CheckTime(time.Date(2024, 1, 2, 9, 0, 0, 0, loc)))
	assert.True(t, tc.CheckTime(time.Date(2024, 1, 2, 13, 30, 0, 0, loc)))
	assert.False(t, tc.CheckTime(time.Date(2024, 1, 2, 13, 31, 0, 0, loc)))

	open := NewTradingCalendar("none", loc, "", "")
	assert.True(t, open.CheckTime(time.Date(2024, 1, 2, 3, 0, 0, 0, loc)))
}

func TestTradingDaysSkipsWeekend(t *testing.T) {
	tc := fallbackCalendar(t)
	loc := taipei(t)

	// Thu 2024-01-04 .. Tue 2024-01-09
	days := tc.TradingDays(time.Date(2024, 1, 4, 15, 0, 0, 0, loc), time.Date(2024, 1, 9, 8, 0, 0, 0, loc))
	require.Len(t, days, 4)
	assert.Equal(t, "20240104", days[0].Format("20060102"))
	assert.Equal(t, "20240105", days[1].Format("20060102"))
	assert.Equal(t, "20240108", days[2].Format("20060102"))
	assert.Equal(t, "20240109", days[3].Format("20060102"))
}

func TestIsOpenOnMinuteFallback(t *testing.T) {
	tc := fallbackCalendar(t)
	loc := taipei(t)

	assert.True(t, tc.IsOpenOnMinute(time.Date(2024, 1, 2, 10, 0, 0, 0, loc)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2024, 1, 2, 14, 0, 0, 0, loc)))
	assert.False(t, tc.IsOpenOnMinute(time.Date(2024, 1, 6, 10, 0, 0, 0, loc)))
}

func TestIsToday(t *testing.T) {
	loc := taipei(t)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, loc)

	assert.True(t, IsToday(time.Date(2024, 1, 2, 0, 0, 0, 0, loc), now))
	assert.False(t, IsToday(time.Date(2024, 1, 1, 0, 0, 0, 0, loc), now))
}

func TestSchedulerDueOncePerTradingDay(t *testing.T) {
	tc := fallbackCalendar(t)
	loc := taipei(t)
	ms := NewMarketScheduler(tc, logger.NewLogger(nil, "MarketScheduler"))

	assert.False(t, ms.Due(time.Date(2024, 1, 2, 12, 0, 0, 0, loc)), "market still open")
	assert.True(t, ms.Due(time.Date(2024, 1, 2, 14, 0, 0, 0, loc)))
	assert.False(t, ms.Due(time.Date(2024, 1, 2, 15, 0, 0, 0, loc)), "already ran today")
	assert.False(t, ms.Due(time.Date(2024, 1, 6, 15, 0, 0, 0, loc)), "saturday")
	assert.True(t, ms.Due(time.Date(2024, 1, 8, 14, 0, 0, 0, loc)))
}
