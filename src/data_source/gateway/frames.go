package gateway

import (
	"fmt"
	"time"

	"ta-fetcher/src/models"

	"github.com/shopspring/decimal"
)

// Stream event names.
const (
	eventConnStatus = "conn_status"
	eventUpdate     = "update"
	eventRcvDone    = "rcv_done"
)

// frame is one message of the gateway stream.
type frame struct {
	Event string       `json:"event"`
	OK    bool         `json:"ok"`
	Kind  string       `json:"kind"`
	Pre   *wireResult  `json:"pre,omitempty"`
	Last  *wireResult  `json:"last,omitempty"`
	Batch []wireResult `json:"batch,omitempty"`
}

type wireBar struct {
	Date       int             `json:"Date"`
	Product    string          `json:"Product"`
	TimeSn     int             `json:"TimeSn"`
	TimeSnDply int             `json:"TimeSn_Dply"`
	Quantity   int64           `json:"Quantity"`
	Volume     int64           `json:"Volume"`
	OPrice     decimal.Decimal `json:"OPrice"`
	HPrice     decimal.Decimal `json:"HPrice"`
	LPrice     decimal.Decimal `json:"LPrice"`
	CPrice     decimal.Decimal `json:"CPrice"`
}

type wireResult struct {
	KBar   wireBar                    `json:"kbar"`
	Values map[string]decimal.Decimal `json:"values"`
}

type wireTick struct {
	Prod          string          `json:"Prod"`
	Sequence      int64           `json:"Sequence"`
	MatchTime     decimal.Decimal `json:"Match_Time"`
	MatchPrice    decimal.Decimal `json:"Match_Price"`
	MatchQuantity int64           `json:"Match_Quantity"`
	MatchVolume   int64           `json:"Match_Volume"`
	IsTryMatch    bool            `json:"Is_TryMatch"`
	BS            int             `json:"BS"`
	BP1Pre        decimal.Decimal `json:"BP_1_Pre"`
	SP1Pre        decimal.Decimal `json:"SP_1_Pre"`
}

type loginResponse struct {
	OK      bool   `json:"ok"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

type ackResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type ticksResponse struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Ticks   []wireTick `json:"ticks"`
}

// -----------------------------------------------------------------------------

func f64(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// -----------------------------------------------------------------------------

// decodeResult converts a wire result through the indicator lookup table.
func decodeResult(kind models.IndicatorKind, w wireResult, loc *time.Location) (models.MIndicatorResult, error) {
	spec, ok := models.IndicatorSpecs[kind]
	if !ok {
		return models.MIndicatorResult{}, fmt.Errorf("unsupported indicator kind %d", kind)
	}

	bar := models.MOHLCRow{
		Date:       w.KBar.Date,
		Product:    w.KBar.Product,
		TimeSn:     w.KBar.TimeSn,
		TimeSnDply: w.KBar.TimeSnDply,
		Quantity:   w.KBar.Quantity,
		Volume:     w.KBar.Volume,
		OPrice:     f64(w.KBar.OPrice),
		HPrice:     f64(w.KBar.HPrice),
		LPrice:     f64(w.KBar.LPrice),
		CPrice:     f64(w.KBar.CPrice),
	}
	bar, err := bar.WithDatetime(loc)
	if err != nil {
		return models.MIndicatorResult{}, err
	}

	fields := make(map[string]float64, len(spec.Fields))
	for _, name := range spec.Fields {
		if v, ok := w.Values[name]; ok {
			fields[name] = f64(v)
		}
	}

	return models.MIndicatorResult{Kind: kind, Bar: bar, Values: spec.Build(fields)}, nil
}

// -----------------------------------------------------------------------------

// encodeResult is the inverse of decodeResult.
func encodeResult(r models.MIndicatorResult) wireResult {
	values := make(map[string]decimal.Decimal)
	if r.Values != nil {
		for k, v := range r.Values.Fields() {
			values[k] = decimal.NewFromFloat(v)
		}
	}
	return wireResult{
		KBar: wireBar{
			Date:       r.Bar.Date,
			Product:    r.Bar.Product,
			TimeSn:     r.Bar.TimeSn,
			TimeSnDply: r.Bar.TimeSnDply,
			Quantity:   r.Bar.Quantity,
			Volume:     r.Bar.Volume,
			OPrice:     decimal.NewFromFloat(r.Bar.OPrice),
			HPrice:     decimal.NewFromFloat(r.Bar.HPrice),
			LPrice:     decimal.NewFromFloat(r.Bar.LPrice),
			CPrice:     decimal.NewFromFloat(r.Bar.CPrice),
		},
		Values: values,
	}
}

// -----------------------------------------------------------------------------

func decodeTick(w wireTick, date time.Time) (models.MTickRow, error) {
	matchTime := f64(w.MatchTime)
	dt, err := models.TickDatetime(matchTime, date)
	if err != nil {
		return models.MTickRow{}, err
	}
	return models.MTickRow{
		Datetime:      dt,
		Prod:          w.Prod,
		Sequence:      w.Sequence,
		MatchTime:     matchTime,
		MatchPrice:    f64(w.MatchPrice),
		MatchQuantity: w.MatchQuantity,
		MatchVolume:   w.MatchVolume,
		IsTryMatch:    w.IsTryMatch,
		BS:            w.BS,
		BP1Pre:        f64(w.BP1Pre),
		SP1Pre:        f64(w.SP1Pre),
	}, nil
}
