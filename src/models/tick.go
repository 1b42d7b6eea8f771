package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MTickRow is one historical trade print.
type MTickRow struct {
	Datetime      time.Time `json:"datetime"`
	Prod          string    `json:"Prod"`
	Sequence      int64     `json:"Sequence"`
	MatchTime     float64   `json:"Match_Time"`
	MatchPrice    float64   `json:"Match_Price"`
	MatchQuantity int64     `json:"Match_Quantity"`
	MatchVolume   int64     `json:"Match_Volume"`
	IsTryMatch    bool      `json:"Is_TryMatch"`
	BS            int       `json:"BS"`
	BP1Pre        float64   `json:"BP_1_Pre"`
	SP1Pre        float64   `json:"SP_1_Pre"`
}

// -----------------------------------------------------------------------------

// TickDatetime combines a trade date with an HHMMSS.ffffff match time.
// The match time is rounded to microseconds; an integer part shorter than six
// digits is treated as left-padded ("93000.5" is 09:30:00.5).
func TickDatetime(matchTime float64, date time.Time) (time.Time, error) {
	d := decimal.NewFromFloat(matchTime).Round(6)
	if d.IsNegative() {
		return time.Time{}, fmt.Errorf("invalid match time %v", matchTime)
	}

	whole := d.IntPart()
	micros := d.Sub(decimal.NewFromInt(whole)).Shift(6).IntPart()

	hh := int(whole / 10000)
	mm := int(whole/100) % 100
	ss := int(whole % 100)
	if hh > 23 || mm > 59 || ss > 59 {
		return time.Time{}, fmt.Errorf("invalid match time %v", matchTime)
	}

	y, m, day := date.Date()
	return time.Date(y, m, day, hh, mm, ss, int(micros)*int(time.Microsecond), date.Location()), nil
}
