package models

import (
	"fmt"
	"sort"
	"strings"
)

// -----------------------------------------------------------------------------
// Indicator and bar kinds accepted by the vendor subscription API.
// -----------------------------------------------------------------------------

type IndicatorKind int

const (
	IndicatorSMA IndicatorKind = iota + 1
	IndicatorEMA
	IndicatorWMA
	IndicatorSAR
	IndicatorRSI
	IndicatorMACD
	IndicatorKD
	IndicatorCDP
	IndicatorBBands
)

type BarKind int

const (
	BarK1m BarKind = iota + 1
	BarK3m
	BarK5m
)

var barNames = map[BarKind]string{
	BarK1m: "K_1m",
	BarK3m: "K_3m",
	BarK5m: "K_5m",
}

func (b BarKind) String() string {
	return barNames[b]
}

// ParseBarKind resolves a name such as "K_1m".
func ParseBarKind(name string) (BarKind, error) {
	for k, n := range barNames {
		if strings.EqualFold(n, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown bar kind %q", name)
}

// -----------------------------------------------------------------------------
// Per-kind result variants
// -----------------------------------------------------------------------------

// MIndicatorValues is the kind-specific part of an indicator result.
type MIndicatorValues interface {
	Kind() IndicatorKind
	Fields() map[string]float64
}

type MMovingAverage struct {
	Of    IndicatorKind
	Value float64
}

type MSAR struct {
	SAR       float64
	EPh       float64
	EPl       float64
	AF        float64
	RaiseFall float64
}

type MRSI struct {
	RSI   float64
	UpDn  float64
	UpAvg float64
	DnAvg float64
}

type MMACD struct {
	DIF float64
	OSC float64
}

type MKD struct {
	K float64
	D float64
}

type MCDP struct {
	CDP float64
	AH  float64
	NH  float64
	AL  float64
	NL  float64
}

type MBBands struct {
	MA  float64
	UB2 float64
	LB2 float64
}

func (v MMovingAverage) Kind() IndicatorKind { return v.Of }
func (v MSAR) Kind() IndicatorKind           { return IndicatorSAR }
func (v MRSI) Kind() IndicatorKind           { return IndicatorRSI }
func (v MMACD) Kind() IndicatorKind          { return IndicatorMACD }
func (v MKD) Kind() IndicatorKind            { return IndicatorKD }
func (v MCDP) Kind() IndicatorKind           { return IndicatorCDP }
func (v MBBands) Kind() IndicatorKind        { return IndicatorBBands }

func (v MMovingAverage) Fields() map[string]float64 { return map[string]float64{"Value": v.Value} }
func (v MSAR) Fields() map[string]float64 {
	return map[string]float64{"SAR": v.SAR, "EPh": v.EPh, "EPl": v.EPl, "AF": v.AF, "RaiseFall": v.RaiseFall}
}
func (v MRSI) Fields() map[string]float64 {
	return map[string]float64{"RSI": v.RSI, "UpDn": v.UpDn, "UpAvg": v.UpAvg, "DnAvg": v.DnAvg}
}
func (v MMACD) Fields() map[string]float64 { return map[string]float64{"DIF": v.DIF, "OSC": v.OSC} }
func (v MKD) Fields() map[string]float64   { return map[string]float64{"K": v.K, "D": v.D} }
func (v MCDP) Fields() map[string]float64 {
	return map[string]float64{"CDP": v.CDP, "AH": v.AH, "NH": v.NH, "AL": v.AL, "NL": v.NL}
}
func (v MBBands) Fields() map[string]float64 {
	return map[string]float64{"MA": v.MA, "UB2": v.UB2, "LB2": v.LB2}
}

// MIndicatorResult is one vendor result: the bar it was computed on plus the
// indicator values for its kind.
type MIndicatorResult struct {
	Kind   IndicatorKind
	Bar    MOHLCRow
	Values MIndicatorValues
}

// -----------------------------------------------------------------------------
// Lookup table
// -----------------------------------------------------------------------------

// IndicatorSpec describes one indicator kind: its wire name, the value fields it
// carries and how to build its variant from decoded fields.
type IndicatorSpec struct {
	Name   string
	Fields []string
	Build  func(f map[string]float64) MIndicatorValues
}

func movingAverage(kind IndicatorKind) func(map[string]float64) MIndicatorValues {
	return func(f map[string]float64) MIndicatorValues {
		return MMovingAverage{Of: kind, Value: f["Value"]}
	}
}

var IndicatorSpecs = map[IndicatorKind]IndicatorSpec{
	IndicatorSMA: {Name: "SMA", Fields: []string{"Value"}, Build: movingAverage(IndicatorSMA)},
	IndicatorEMA: {Name: "EMA", Fields: []string{"Value"}, Build: movingAverage(IndicatorEMA)},
	IndicatorWMA: {Name: "WMA", Fields: []string{"Value"}, Build: movingAverage(IndicatorWMA)},
	IndicatorSAR: {Name: "SAR", Fields: []string{"SAR", "EPh", "EPl", "AF", "RaiseFall"}, Build: func(f map[string]float64) MIndicatorValues {
		return MSAR{SAR: f["SAR"], EPh: f["EPh"], EPl: f["EPl"], AF: f["AF"], RaiseFall: f["RaiseFall"]}
	}},
	IndicatorRSI: {Name: "RSI", Fields: []string{"RSI", "UpDn", "UpAvg", "DnAvg"}, Build: func(f map[string]float64) MIndicatorValues {
		return MRSI{RSI: f["RSI"], UpDn: f["UpDn"], UpAvg: f["UpAvg"], DnAvg: f["DnAvg"]}
	}},
	IndicatorMACD: {Name: "MACD", Fields: []string{"DIF", "OSC"}, Build: func(f map[string]float64) MIndicatorValues {
		return MMACD{DIF: f["DIF"], OSC: f["OSC"]}
	}},
	IndicatorKD: {Name: "KD", Fields: []string{"K", "D"}, Build: func(f map[string]float64) MIndicatorValues {
		return MKD{K: f["K"], D: f["D"]}
	}},
	IndicatorCDP: {Name: "CDP", Fields: []string{"CDP", "AH", "NH", "AL", "NL"}, Build: func(f map[string]float64) MIndicatorValues {
		return MCDP{CDP: f["CDP"], AH: f["AH"], NH: f["NH"], AL: f["AL"], NL: f["NL"]}
	}},
	IndicatorBBands: {Name: "BBands", Fields: []string{"MA", "UB2", "LB2"}, Build: func(f map[string]float64) MIndicatorValues {
		return MBBands{MA: f["MA"], UB2: f["UB2"], LB2: f["LB2"]}
	}},
}

// -----------------------------------------------------------------------------

func (k IndicatorKind) String() string {
	if spec, ok := IndicatorSpecs[k]; ok {
		return spec.Name
	}
	return fmt.Sprintf("INDICATOR_%d", int(k))
}

// ParseIndicatorKind resolves a wire name such as "SMA" or "BBands".
func ParseIndicatorKind(name string) (IndicatorKind, error) {
	for k, spec := range IndicatorSpecs {
		if strings.EqualFold(spec.Name, name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown indicator kind %q", name)
}

// IndicatorNames lists every supported indicator name in kind order.
func IndicatorNames() []string {
	kinds := make([]int, 0, len(IndicatorSpecs))
	for k := range IndicatorSpecs {
		kinds = append(kinds, int(k))
	}
	sort.Ints(kinds)

	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, IndicatorSpecs[IndicatorKind(k)].Name)
	}
	return names
}
