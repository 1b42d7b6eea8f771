package models

import (
	"time"
)

// MRuntimeConfig is the resumable state of a runtime, persisted as (name, key, value) rows.
type MRuntimeConfig struct {
	Name           string  `json:"name"`
	IsActive       bool    `json:"is_active"`
	UpdatingSymbol *string `json:"updating_symbol"`
}

// Runtime config row keys.
const (
	KeyIsActive       = "is_active"
	KeyUpdatingSymbol = "updating_symbol"
)

// MConfigRow is one persisted (name, key, value) row.
type MConfigRow struct {
	Name  string
	Key   string
	Value *string
}

// -----------------------------------------------------------------------------

// Rows flattens the config into store rows. A nil UpdatingSymbol becomes a NULL value.
func (c MRuntimeConfig) Rows() []MConfigRow {
	active := "false"
	if c.IsActive {
		active = "true"
	}
	var symbol *string
	if c.UpdatingSymbol != nil {
		s := *c.UpdatingSymbol
		symbol = &s
	}
	return []MConfigRow{
		{Name: c.Name, Key: KeyIsActive, Value: &active},
		{Name: c.Name, Key: KeyUpdatingSymbol, Value: symbol},
	}
}

// -----------------------------------------------------------------------------

// ApplyRows overlays stored rows onto c. Unknown keys are ignored.
func (c *MRuntimeConfig) ApplyRows(rows []MConfigRow) {
	for _, r := range rows {
		switch r.Key {
		case KeyIsActive:
			c.IsActive = r.Value != nil && *r.Value == "true"
		case KeyUpdatingSymbol:
			if r.Value == nil || *r.Value == "" {
				c.UpdatingSymbol = nil
			} else {
				s := *r.Value
				c.UpdatingSymbol = &s
			}
		}
	}
}

// Info returns the config as the key/value map served by /info.
func (c MRuntimeConfig) Info() map[string]interface{} {
	var symbol interface{}
	if c.UpdatingSymbol != nil {
		symbol = *c.UpdatingSymbol
	}
	return map[string]interface{}{
		KeyIsActive:       c.IsActive,
		KeyUpdatingSymbol: symbol,
	}
}

// -----------------------------------------------------------------------------

// MSubscriptionKey identifies one live vendor subscription.
type MSubscriptionKey struct {
	ProductID     string        `json:"product_id"`
	IndicatorType IndicatorKind `json:"indicator_type"`
	BarInterval   BarKind       `json:"bar_interval"`
	StartDate     time.Time     `json:"start_date"`
}

// DateBegin renders StartDate in the vendor's YYYYMMDD layout.
func (k MSubscriptionKey) DateBegin() string {
	return k.StartDate.Format(DateLayout)
}

// -----------------------------------------------------------------------------

// MStatusData is the status snapshot of a runtime.
type MStatusData struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Status string `json:"status"`
}

// Metadata returns the snapshot as a response metadata map.
func (s MStatusData) Metadata() map[string]interface{} {
	return map[string]interface{}{
		"name":   s.Name,
		"active": s.Active,
		"status": s.Status,
	}
}

// MStatusEvent is pushed to websocket clients whenever a runtime changes state.
type MStatusEvent struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Event     string                 `json:"event"`
	Symbol    string                 `json:"symbol,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Values    map[string]float64     `json:"values,omitempty"`
	Status    *MStatusData           `json:"status,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}
