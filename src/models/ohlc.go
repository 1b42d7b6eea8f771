package models

import (
	"fmt"
	"time"
)

// DatetimeLayout is the storage layout for bar and tick timestamps (exchange local time).
const DatetimeLayout = "2006-01-02 15:04:05.000000"

// DateLayout is the vendor's compact date layout.
const DateLayout = "20060102"

// -----------------------------------------------------------------------------

// MOHLCRow is one K bar as delivered by the vendor, keyed by Datetime.
type MOHLCRow struct {
	Datetime   time.Time `json:"datetime"`
	Date       int       `json:"Date"`
	Product    string    `json:"Product"`
	TimeSn     int       `json:"TimeSn"`
	TimeSnDply int       `json:"TimeSn_Dply"`
	Quantity   int64     `json:"Quantity"`
	Volume     int64     `json:"Volume"`
	OPrice     float64   `json:"OPrice"`
	HPrice     float64   `json:"HPrice"`
	LPrice     float64   `json:"LPrice"`
	CPrice     float64   `json:"CPrice"`
}

// -----------------------------------------------------------------------------

// KBarDatetime combines a YYYYMMDD date and an HHMM bar sequence into a timestamp.
// Sequences shorter than four digits are left-padded ("901" is 09:01).
func KBarDatetime(date int, timeSn int, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if timeSn < 0 || timeSn > 2359 {
		return time.Time{}, fmt.Errorf("invalid bar sequence %d", timeSn)
	}
	raw := fmt.Sprintf("%08d%04d", date, timeSn)
	t, err := time.ParseInLocation("200601021504", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid bar date/time %d %d: %w", date, timeSn, err)
	}
	return t, nil
}

// -----------------------------------------------------------------------------

// WithDatetime fills Datetime from Date and TimeSn.
func (r MOHLCRow) WithDatetime(loc *time.Location) (MOHLCRow, error) {
	dt, err := KBarDatetime(r.Date, r.TimeSn, loc)
	if err != nil {
		return r, err
	}
	r.Datetime = dt
	return r, nil
}
