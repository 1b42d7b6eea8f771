package utils

import "math"

// -----------------------------------------------------------------------------

// A TWSE session runs 09:00-13:30, 270 one-minute bars.
const (
	BarsPerSession   = 270
	DefaultCacheBars = 500
)

// Session hours used when the configuration leaves them empty.
const (
	DefaultOpenHour  = "09:00"
	DefaultCloseHour = "13:30"
)

// -----------------------------------------------------------------------------

// CalculateMaxBars returns the cache size needed to hold days sessions of bars
// at the given bar width in minutes.
func CalculateMaxBars(days, barMinutes int) int {
	if barMinutes <= 0 {
		barMinutes = 1
	}
	return int(math.Ceil(float64(days) * BarsPerSession / float64(barMinutes)))
}
