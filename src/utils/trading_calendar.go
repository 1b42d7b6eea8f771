package utils

import (
	"log"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers session questions for one exchange using scmhub/calendar.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location

	// Optional session bounds as minutes after midnight; -1 when unset.
	openMinute  int
	closeMinute int
}

// -----------------------------------------------------------------------------

// NewTradingCalendar loads the calendar of mic (ISO 10383, e.g. "xtai").
// openHour and closeHour are "HH:MM" or empty. loc is used when the
// calendar cannot be loaded.
func NewTradingCalendar(mic string, loc *time.Location, openHour, closeHour string) *TradingCalendar {
	tc := &TradingCalendar{
		openMinute:  parseHourMinute(openHour),
		closeMinute: parseHourMinute(closeHour),
	}

	cal := calendar.GetCalendar(strings.ToLower(mic))
	if cal == nil {
		if loc == nil {
			loc = time.UTC
		}
		log.Printf("WARNING: Failed to load calendar for MIC '%s'. Using simple fallback (Mon-Fri in %s).", mic, loc)
		tc.Fallback = true
		tc.Timezone = loc
		return tc
	}

	tc.Calendar = cal
	tc.Timezone = cal.Loc
	if tc.Timezone == nil {
		tc.Timezone = loc
	}
	return tc
}

// -----------------------------------------------------------------------------

func parseHourMinute(s string) int {
	if s == "" {
		return -1
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) local(t time.Time) time.Time {
	if tc.Timezone != nil {
		return t.In(tc.Timezone)
	}
	return t
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	date = tc.local(date)

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	t = tc.local(t)

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}
		open, close := tc.openMinute, tc.closeMinute
		if open < 0 {
			open = parseHourMinute(DefaultOpenHour)
		}
		if close < 0 {
			close = parseHourMinute(DefaultCloseHour)
		}
		m := t.Hour()*60 + t.Minute()
		return m >= open && m < close
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// CheckTime reports whether now lies inside the configured open/close hours.
// Unset bounds do not constrain.
func (tc *TradingCalendar) CheckTime(now time.Time) bool {
	now = tc.local(now)
	m := now.Hour()*60 + now.Minute()

	if tc.openMinute >= 0 && m < tc.openMinute {
		return false
	}
	if tc.closeMinute >= 0 && m > tc.closeMinute {
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// AfterClose reports whether now is past the close of a trading day.
func (tc *TradingCalendar) AfterClose(now time.Time) bool {
	now = tc.local(now)
	if !tc.IsTradingDay(now) {
		return false
	}
	close := tc.closeMinute
	if close < 0 {
		close = parseHourMinute(DefaultCloseHour)
	}
	return now.Hour()*60+now.Minute() >= close
}

// -----------------------------------------------------------------------------

// TradingDays returns the trading days in [from, to] as local midnights.
func (tc *TradingCalendar) TradingDays(from, to time.Time) []time.Time {
	from, to = tc.local(from), tc.local(to)
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location())

	var days []time.Time
	for !day.After(last) {
		if tc.IsTradingDay(day) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}
	return days
}

// -----------------------------------------------------------------------------

// IsToday reports whether date is within a day of now, i.e. its data may still
// be incomplete.
func IsToday(date, now time.Time) bool {
	return !date.Add(24 * time.Hour).Before(now)
}
